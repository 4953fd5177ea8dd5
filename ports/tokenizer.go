package ports

import "time"

// PresenceGrant is the proof-of-presence a passed verification session
// earns. It is carried as a signed token so downstream services can trust
// it without calling back.
type PresenceGrant struct {
	SessionID     string
	UserID        string
	WalletAddress string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Tokenizer converts presence grants to and from signed tokens.
type Tokenizer interface {
	IssuePresenceToken(grant PresenceGrant) (string, error)
	VerifyPresenceToken(token string) (PresenceGrant, error)
}
