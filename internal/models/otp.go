package models

import "time"

type OTPPurpose string

const (
	PurposeSignup        OTPPurpose = "SIGNUP"
	PurposeLogin2FA      OTPPurpose = "LOGIN_2FA"
	PurposePasswordReset OTPPurpose = "PASSWORD_RESET"
	PurposeVerifyContact OTPPurpose = "VERIFY_CONTACT"
)

type DeliveryMethod string

const (
	MethodEmail    DeliveryMethod = "EMAIL"
	MethodWhatsApp DeliveryMethod = "WHATSAPP"
	MethodSMS      DeliveryMethod = "SMS"
)

// OneTimeCode is a single-purpose, single-identifier code record. Identifier
// is the raw contact string (email or mobile), never an account id.
// Only the hash of the code is stored.
type OneTimeCode struct {
	ID                    string         `db:"id" json:"id"`
	Identifier            string         `db:"identifier" json:"identifier"`
	Purpose               OTPPurpose     `db:"purpose" json:"purpose"`
	CodeHash              string         `db:"code_hash" json:"-"`
	Method                DeliveryMethod `db:"method" json:"method"`
	Attempts              int            `db:"attempts" json:"attempts"`
	ExpiresAt             time.Time      `db:"expires_at" json:"expires_at"`
	PendingRegistrationID *string        `db:"pending_registration_id" json:"pending_registration_id,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
}

func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// PendingRegistration holds the account fields collected at signup until the
// mobile code is verified. It expires together with its codes.
type PendingRegistration struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Mobile       string    `db:"mobile" json:"mobile"`
	PasswordHash string    `db:"password_hash" json:"-"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
