// Package eth produces and verifies the secp256k1 attestation signatures
// consumed by the external ledger verifier. The verifier recomputes
// keccak256(leftPad32(address) || digest) and recovers the signer address
// from the 65-byte signature, so every byte here must match that
// computation exactly.
package eth

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Scheme selects which pre-hash the signature is made over. The two are
// interchangeable only if the external verifier recovers against the same
// pre-hash; SchemePersonal matches verifiers that check
// wallet.signMessage(arrayify(hash)) output.
type Scheme string

const (
	// SchemePersonal signs the EIP-191 "Ethereum Signed Message" prefix hash.
	SchemePersonal Scheme = "personal"

	// SchemeDigest signs the raw 32-byte message hash directly.
	SchemeDigest Scheme = "digest"
)

// personalPrefix is the fixed EIP-191 prefix for a 32-byte message.
const personalPrefix = "\x19Ethereum Signed Message:\n32"

var (
	// ErrInvalidKey is returned when a signing key cannot be parsed
	ErrInvalidKey = errors.New("invalid signing key")

	// ErrInvalidSignature is returned when a signature is malformed
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnknownScheme is returned for an unrecognized signing scheme
	ErrUnknownScheme = errors.New("unknown signing scheme")
)

// SigningKey is the single tagged key type used everywhere a private key is
// needed. It is resolved once from hex at load time and never polymorphic at
// call sites.
type SigningKey struct {
	key *ecdsa.PrivateKey
}

// ParseSigningKey resolves a hex-encoded secp256k1 private key, with or
// without the 0x prefix.
func ParseSigningKey(hexKey string) (SigningKey, error) {
	trimmed := strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return SigningKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return SigningKey{key: key}, nil
}

// GenerateSigningKey creates a fresh secp256k1 key.
func GenerateSigningKey() (SigningKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return SigningKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return SigningKey{key: key}, nil
}

// Address returns the Ethereum address of the key.
func (k SigningKey) Address() common.Address {
	if k.key == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(k.key.PublicKey)
}

// Valid reports whether the key holds material.
func (k SigningKey) Valid() bool {
	return k.key != nil
}

// MessageHash computes keccak256(leftPad32(address) || digest), the exact
// hash the external verifier builds from (address, bytes32).
func MessageHash(wallet common.Address, digest [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, common.LeftPadBytes(wallet.Bytes(), 32)...)
	buf = append(buf, digest[:]...)

	var hash [32]byte
	copy(hash[:], crypto.Keccak256(buf))
	return hash
}

// PersonalHash applies the EIP-191 prefix to a 32-byte hash and hashes again.
func PersonalHash(hash [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256([]byte(personalPrefix), hash[:]))
	return out
}

// SignDigest signs the raw 32-byte hash and returns the 65-byte r||s||v
// signature with v in {27, 28}. Signing is deterministic (RFC 6979 nonces):
// the same key and hash always yield the same bytes.
func SignDigest(key SigningKey, hash [32]byte) ([65]byte, error) {
	var sig [65]byte
	if !key.Valid() {
		return sig, ErrInvalidKey
	}

	raw, err := crypto.Sign(hash[:], key.key)
	if err != nil {
		return sig, fmt.Errorf("secp256k1 signing failed: %w", err)
	}
	copy(sig[:], raw)
	sig[64] += 27
	return sig, nil
}

// SignPersonal signs the EIP-191 prefixed form of the hash.
func SignPersonal(key SigningKey, hash [32]byte) ([65]byte, error) {
	return SignDigest(key, PersonalHash(hash))
}

// RecoverDigest recovers the signer address of a raw-hash signature.
// Both v conventions ({0,1} and {27,28}) are accepted.
func RecoverDigest(hash [32]byte, sig [65]byte) (common.Address, error) {
	raw := make([]byte, 65)
	copy(raw, sig[:])
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	if raw[64] > 1 {
		return common.Address{}, ErrInvalidSignature
	}

	pub, err := crypto.SigToPub(hash[:], raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// RecoverPersonal recovers the signer address of an EIP-191 signature.
func RecoverPersonal(hash [32]byte, sig [65]byte) (common.Address, error) {
	return RecoverDigest(PersonalHash(hash), sig)
}

// Signer binds a key to a scheme so callers sign attestations without
// choosing a convention per call site.
type Signer struct {
	key    SigningKey
	scheme Scheme
}

// NewSigner creates a signer for the given scheme.
func NewSigner(key SigningKey, scheme Scheme) (*Signer, error) {
	switch scheme {
	case SchemePersonal, SchemeDigest:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	if !key.Valid() {
		return nil, ErrInvalidKey
	}
	return &Signer{key: key, scheme: scheme}, nil
}

// Address returns the address the external verifier will recover.
func (s *Signer) Address() common.Address {
	return s.key.Address()
}

// Scheme returns the configured signing scheme.
func (s *Signer) Scheme() Scheme {
	return s.scheme
}

// SignAttestation hashes (wallet, digest) and signs per the configured
// scheme, returning the message hash and the 65-byte signature.
func (s *Signer) SignAttestation(wallet common.Address, digest [32]byte) ([32]byte, [65]byte, error) {
	hash := MessageHash(wallet, digest)

	var (
		sig [65]byte
		err error
	)
	switch s.scheme {
	case SchemePersonal:
		sig, err = SignPersonal(s.key, hash)
	case SchemeDigest:
		sig, err = SignDigest(s.key, hash)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownScheme, s.scheme)
	}
	return hash, sig, err
}

// FallbackSignature produces the HMAC-SHA256 diagnostic signature used when
// secp256k1 signing fails. Its 64-character unprefixed hex form cannot be
// confused with the 0x + 130 on-chain format and is never submitted to the
// ledger.
func FallbackSignature(secret []byte, wallet common.Address, digest [32]byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(wallet.Bytes())
	mac.Write(digest[:])
	return hex.EncodeToString(mac.Sum(nil))
}
