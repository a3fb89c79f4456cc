package service

import (
	"time"

	"golang.org/x/oauth2"
)

const defaultTokenLifetime = 2 * time.Hour

func GetExpiresAt(expiresIn int64) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

func tokenExpiry(token *oauth2.Token) time.Time {
	if !token.Expiry.IsZero() {
		return token.Expiry
	}
	if token.ExpiresIn > 0 {
		return GetExpiresAt(token.ExpiresIn)
	}
	return time.Now().Add(defaultTokenLifetime)
}
