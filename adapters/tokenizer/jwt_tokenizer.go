package tokenizer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/presence/ports"
)

const AudiencePresence = "presence:verified"

// JWTTokenizer implements the Tokenizer interface using JWT
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// IssuePresenceToken converts a PresenceGrant to a signed JWT.
func (j *JWTTokenizer) IssuePresenceToken(grant ports.PresenceGrant) (string, error) {
	claims := PresenceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   grant.UserID,
			ID:        grant.SessionID,
			IssuedAt:  jwt.NewNumericDate(grant.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(grant.ExpiresAt),
			Audience:  jwt.ClaimStrings{AudiencePresence},
		},
		WalletAddress: grant.WalletAddress,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign presence token: %w", err)
	}

	return signedToken, nil
}

// VerifyPresenceToken parses and validates a presence JWT.
func (j *JWTTokenizer) VerifyPresenceToken(tokenStr string) (ports.PresenceGrant, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &PresenceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudiencePresence))
	if err != nil {
		return ports.PresenceGrant{}, fmt.Errorf("failed to parse presence token: %w", err)
	}

	claims, ok := token.Claims.(*PresenceClaims)
	if !ok || !token.Valid {
		return ports.PresenceGrant{}, fmt.Errorf("invalid presence token claims")
	}

	return ports.PresenceGrant{
		SessionID:     claims.ID,
		UserID:        claims.Subject,
		WalletAddress: claims.WalletAddress,
		IssuedAt:      claims.IssuedAt.Time,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}
