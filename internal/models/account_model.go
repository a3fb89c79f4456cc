package models

import (
	"time"
)

// Account holds the encrypted X credentials of one connected identity. ClientID and
// ClientSecret belong to the account's own developer app.
type Account struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	AccessToken    string    `db:"access_token" json:"-"`
	RefreshToken   string    `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	ClientID       string    `db:"client_id" json:"-"`
	ClientSecret   string    `db:"client_secret" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
