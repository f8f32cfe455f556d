package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/middleware"
	"wapulse/internal/services"
)

type BillingHandler struct {
	billing services.BillingService
}

func NewBillingHandler(billing services.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

type createOrderRequest struct {
	PlanID string `json:"plan_id" binding:"required,uuid"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required,hexadecimal"`
}

// @Summary      List plans
// @Tags         Billing
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  models.Plan
// @Router       /plans [get]
func (h *BillingHandler) Plans(c *gin.Context) {
	plans, err := h.billing.Plans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// @Summary      Create payment order
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createOrderRequest  true  "Plan"
// @Success      201   {object}  services.OrderResult
// @Router       /billing/orders [post]
func (h *BillingHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.billing.CreateOrder(c.Request.Context(), middleware.AccountID(c), req.PlanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary      Verify payment
// @Description  Checks the gateway signature and activates the subscription
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      verifyPaymentRequest  true  "Gateway callback fields"
// @Success      200   {object}  models.Subscription
// @Failure      400   {object}  map[string]string
// @Router       /billing/verify [post]
func (h *BillingHandler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.billing.VerifyPayment(c.Request.Context(), middleware.AccountID(c), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// @Summary      Active subscription
// @Tags         Billing
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /billing/subscription [get]
func (h *BillingHandler) Subscription(c *gin.Context) {
	sub, plan, err := h.billing.ActiveSubscription(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		if errors.Is(err, services.ErrNoSubscription) {
			c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub, "plan": plan})
}

// @Summary      Download invoice
// @Tags         Billing
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path  string  true  "Payment id"
// @Success      200  {file}  binary
// @Router       /billing/payments/{id}/invoice [get]
func (h *BillingHandler) Invoice(c *gin.Context) {
	data, filename, err := h.billing.Invoice(c.Request.Context(), middleware.AccountID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}
