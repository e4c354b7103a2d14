package models

import "github.com/golang-jwt/jwt/v5"

// Claims carried by a wallet session token.
type Claims struct {
	Address string `json:"address"`
	ChainID int64  `json:"chain_id"`
	jwt.RegisteredClaims
}
