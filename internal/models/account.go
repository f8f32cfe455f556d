package models

import "time"

// Account is a person who can sign in. Email and mobile are both unique.
type Account struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	Mobile           string    `db:"mobile" json:"mobile"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	EmailVerified    bool      `db:"email_verified" json:"email_verified"`
	MobileVerified   bool      `db:"mobile_verified" json:"mobile_verified"`
	WhatsAppVerified bool      `db:"whatsapp_verified" json:"whatsapp_verified"`
	Company          string    `db:"company" json:"company"`
	AvatarURL        string    `db:"avatar_url" json:"avatar_url"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
