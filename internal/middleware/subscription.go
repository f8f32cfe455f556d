package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wapulse/internal/models"
	"wapulse/internal/services"
)

type SubscriptionLookup interface {
	ActiveSubscription(ctx context.Context, accountID string) (*models.Subscription, *models.Plan, error)
}

// RequireSubscription admits callers with a subscription that has not yet
// ended and exposes it with its plan to handlers.
func RequireSubscription(subs SubscriptionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := AccountID(c)
		if accountID == "" {
			abort(c, http.StatusUnauthorized, "not authenticated")
			return
		}

		sub, plan, err := subs.ActiveSubscription(c.Request.Context(), accountID)
		if err != nil {
			if errors.Is(err, services.ErrNoSubscription) {
				abort(c, http.StatusForbidden, "no active subscription, please upgrade your plan")
				return
			}
			slog.Error("[middleware][subscription] lookup", "account_id", accountID, "err", err)
			abort(c, http.StatusInternalServerError, "internal server error")
			return
		}

		c.Set(ctxSubscription, sub)
		c.Set(ctxPlan, plan)
		c.Next()
	}
}
