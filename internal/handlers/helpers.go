package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"wapulse/internal/authz"
	"wapulse/internal/services"
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

type fieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// RegisterValidators installs the custom binding tags on gin's validator and
// makes field errors report JSON names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("capability", func(fl validator.FieldLevel) bool {
		_, ok := authz.ParseCapability(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(strings.ReplaceAll(fl.Field().String(), " ", ""))
	})
}

// bindJSON binds the body and answers 400 itself when it does not validate.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, fieldError{Field: fe.Field(), Msg: validationMessage(fe)})
		}
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request", "errors": out})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request body"})
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "mobile":
		return "must be a valid mobile number"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "capability":
		return fmt.Sprintf("unknown capability %q", fe.Value())
	case "timezone":
		return "must be an IANA timezone"
	}
	return "is invalid"
}

// respondError maps service errors onto status codes. Unknown errors are
// logged and hidden from the client.
func respondError(c *gin.Context, err error) {
	status, sentinel := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("[http] internal error", "path", c.Request.URL.Path, "err", err)
		c.JSON(status, gin.H{"msg": "internal server error"})
		return
	}
	if status == http.StatusBadGateway {
		slog.Warn("[http] upstream error", "path", c.Request.URL.Path, "err", err)
		c.JSON(status, gin.H{"msg": "upstream service unavailable, try again later"})
		return
	}
	c.JSON(status, gin.H{"msg": strings.TrimPrefix(err.Error(), sentinel.Error()+": ")})
}

var errorStatus = []struct {
	err    error
	status int
}{
	{services.ErrValidation, http.StatusBadRequest},
	{services.ErrInvalidOrExpired, http.StatusBadRequest},
	{services.ErrInvalidCode, http.StatusBadRequest},
	{services.ErrWhatsAppNotConnected, http.StatusBadRequest},
	{services.ErrInvalidSignature, http.StatusBadRequest},
	{services.ErrUnauthorized, http.StatusUnauthorized},
	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrNoSubscription, http.StatusForbidden},
	{services.ErrPlanLimit, http.StatusForbidden},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrConflict, http.StatusConflict},
	{services.ErrEmailTaken, http.StatusConflict},
	{services.ErrMobileTaken, http.StatusConflict},
	{services.ErrBroadcastRunning, http.StatusConflict},
	{services.ErrTooManyAttempts, http.StatusTooManyRequests},
	{services.ErrUpstream, http.StatusBadGateway},
	{services.ErrDispatcherUnavailable, http.StatusServiceUnavailable},
}

func classify(err error) (int, error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.err
		}
	}
	return http.StatusInternalServerError, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
