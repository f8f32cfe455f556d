package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/middleware"
	"wapulse/internal/models"
	"wapulse/internal/services"
)

type AuthHandler struct {
	accounts services.AccountService
	otp      services.OTPService
	resets   services.PasswordResetService
	billing  services.BillingService
}

func NewAuthHandler(accounts services.AccountService, otp services.OTPService, resets services.PasswordResetService, billing services.BillingService) *AuthHandler {
	return &AuthHandler{accounts: accounts, otp: otp, resets: resets, billing: billing}
}

type signupInitiateRequest struct {
	Name     string `json:"name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Mobile   string `json:"mobile" binding:"required,mobile"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type signupVerifyRequest struct {
	Mobile    string `json:"mobile" binding:"required,mobile"`
	MobileOTP string `json:"mobileOTP" binding:"required,len=6,numeric"`
	Email     string `json:"email" binding:"omitempty,email"`
}

type loginCodeRequest struct {
	Mobile string `json:"mobile" binding:"required,mobile"`
}

type loginCodeVerifyRequest struct {
	Mobile string `json:"mobile" binding:"required,mobile"`
	Code   string `json:"code" binding:"required,len=6,numeric"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type updateProfileRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=1,max=120"`
	Company   *string `json:"company" binding:"omitempty,max=200"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,url"`
}

type confirmCodeRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

type meResponse struct {
	Account      *models.Account      `json:"account"`
	Subscription *models.Subscription `json:"subscription"`
	Plan         *models.Plan         `json:"plan"`
}

// @Summary      Start signup
// @Description  Sends a one-time code to the email and to the mobile number
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupInitiateRequest  true  "Signup data"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /signup/initiate [post]
func (h *AuthHandler) SignupInitiate(c *gin.Context) {
	var req signupInitiateRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.otp.InitiateSignup(c.Request.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "OTP sent"})
}

// @Summary      Complete signup
// @Description  Verifies the mobile code, creates the account and its workspace and returns a session token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupVerifyRequest  true  "Mobile and code"
// @Success      200   {object}  services.SessionResult
// @Failure      400   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /signup/verify [post]
func (h *AuthHandler) SignupVerify(c *gin.Context) {
	var req signupVerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.otp.VerifySignup(c.Request.Context(), req.Mobile, req.MobileOTP)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Login
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  services.SessionResult
// @Failure      401    {object}  map[string]string
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Request a login code
// @Description  Sends a login code by SMS. Unknown numbers get the same answer.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginCodeRequest  true  "Mobile"
// @Success      200   {object}  map[string]string
// @Router       /login/otp/request [post]
func (h *AuthHandler) RequestLoginCode(c *gin.Context) {
	var req loginCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.otp.RequestLoginCode(c.Request.Context(), req.Mobile); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "OTP sent"})
}

// @Summary      Login with a code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginCodeVerifyRequest  true  "Mobile and code"
// @Success      200   {object}  services.SessionResult
// @Failure      400   {object}  map[string]string
// @Router       /login/otp/verify [post]
func (h *AuthHandler) VerifyLoginCode(c *gin.Context) {
	var req loginCodeVerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.otp.VerifyLoginCode(c.Request.Context(), req.Mobile, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Forgot password
// @Description  Emails a reset link valid for 15 minutes
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Email"
// @Success      200   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.resets.RequestReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "password reset link sent"})
}

// @Summary      Reset password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Token and new password"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Router       /reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.resets.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "password updated"})
}

// @Summary      Current account
// @Description  Returns the account with its active subscription and plan, both null when there is none
// @Tags         Account
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  map[string]string
// @Router       /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	acct, err := h.accounts.GetByID(ctx, middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := meResponse{Account: acct}
	sub, plan, err := h.billing.ActiveSubscription(ctx, acct.ID)
	switch {
	case err == nil:
		resp.Subscription, resp.Plan = sub, plan
	case errors.Is(err, services.ErrNoSubscription):
	default:
		slog.Warn("[auth][me] subscription lookup", "account_id", acct.ID, "err", err)
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Update profile
// @Tags         Account
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateProfileRequest  true  "Fields to change"
// @Success      200   {object}  models.Account
// @Router       /me [put]
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	acct, err := h.accounts.UpdateProfile(c.Request.Context(), middleware.AccountID(c), services.ProfileUpdate{
		Name:      req.Name,
		Company:   req.Company,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

// @Summary      Send email verification code
// @Tags         Account
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Router       /me/verify-email [post]
func (h *AuthHandler) RequestEmailVerification(c *gin.Context) {
	if err := h.otp.RequestEmailVerification(c.Request.Context(), middleware.AccountID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "OTP sent"})
}

// @Summary      Confirm email verification code
// @Tags         Account
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      confirmCodeRequest  true  "Code"
// @Success      200   {object}  models.Account
// @Router       /me/verify-email/confirm [post]
func (h *AuthHandler) ConfirmEmailVerification(c *gin.Context) {
	var req confirmCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	acct, err := h.otp.ConfirmEmailVerification(c.Request.Context(), middleware.AccountID(c), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}
