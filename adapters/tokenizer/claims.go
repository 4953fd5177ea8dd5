package tokenizer

import "github.com/golang-jwt/jwt/v5"

// PresenceClaims combines standard claims with presence-specific ones
type PresenceClaims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"wallet"`
}
