package transfer

import "github.com/golang-jwt/jwt/v5"

type ServiceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}
