package services

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrEmailTaken         = errors.New("email already registered")
	ErrMobileTaken        = errors.New("mobile already registered")
	ErrInvalidOrExpired   = errors.New("invalid or expired code")
	ErrInvalidCode        = errors.New("invalid code")
	ErrMissingContext     = errors.New("verification context missing")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrUpstream           = errors.New("upstream failure")

	ErrNoSubscription        = errors.New("no active subscription, upgrade plan")
	ErrPlanLimit             = errors.New("plan limit reached, upgrade plan")
	ErrWhatsAppNotConnected  = errors.New("whatsapp is not connected")
	ErrBroadcastRunning      = errors.New("broadcast is still running")
	ErrInvalidSignature      = errors.New("invalid payment signature")
	ErrDispatcherUnavailable = errors.New("broadcast queue is full, try again later")
)
