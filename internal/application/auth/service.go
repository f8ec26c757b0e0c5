// Package auth signs callers in with an Ethereum key: the client asks for a
// nonce, signs the login message with personal_sign and posts the signature
// back. The recovered address becomes the session's caller identity.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"steward-backend/internal/pkg/validation"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
)

const (
	noncePrefix     = "login_nonce:"
	defaultNonceTTL = 5 * time.Minute
)

// Service issues and redeems login nonces stored in Redis.
type Service struct {
	Rdb      *redis.Client
	NonceTTL time.Duration
	// Domain is embedded in the signed message so a signature for another
	// site cannot be replayed here.
	Domain string
}

func (s *Service) ttl() time.Duration {
	if s.NonceTTL <= 0 {
		return defaultNonceTTL
	}
	return s.NonceTTL
}

// ParseAddress is validation.ParseAddress with a distinct error for a
// missing address.
func ParseAddress(raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, ErrAddressRequired
	}
	return validation.ParseAddress(raw)
}

// LoginMessage is the exact text the wallet signs.
func (s *Service) LoginMessage(addr common.Address, nonce string) string {
	domain := s.Domain
	if domain == "" {
		domain = "steward"
	}
	return fmt.Sprintf("%s wants you to sign in with your Ethereum account:\n%s\n\nNonce: %s", domain, addr.Hex(), nonce)
}

// IssueNonce stores a fresh nonce for addr, replacing any earlier one.
func (s *Service) IssueNonce(ctx context.Context, addr common.Address) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(buf)
	if err := s.Rdb.Set(ctx, noncePrefix+addr.Hex(), nonce, s.ttl()).Err(); err != nil {
		return "", err
	}
	return nonce, nil
}

// Verify checks that signature signs the login message of addr's pending
// nonce. The nonce is consumed on success so it cannot be replayed.
func (s *Service) Verify(ctx context.Context, addr common.Address, signature string) error {
	key := noncePrefix + addr.Hex()
	nonce, err := s.Rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNonceMissing
	}
	if err != nil {
		return err
	}

	signer, err := RecoverSigner(s.LoginMessage(addr, nonce), signature)
	if err != nil {
		return err
	}
	if signer != addr {
		return ErrSignerMismatch
	}
	deleted, err := s.Rdb.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		// Another login redeemed it first.
		return ErrNonceMissing
	}
	return nil
}

// RecoverSigner returns the address that produced an EIP-191 personal
// signature over message. Wallets emit V as 27/28; both that and 0/1 are
// accepted.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SessionUser is what the session stores under "user".
type SessionUser struct {
	Address string `json:"address"`
}

// VerifyUser validates the session user and returns its address.
func VerifyUser(sessionUser interface{}) (common.Address, error) {
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return common.Address{}, ErrNotAuthenticated
	}
	raw, _ := m["address"].(string)
	if !common.IsHexAddress(raw) {
		return common.Address{}, ErrNotAuthenticated
	}
	return common.HexToAddress(raw), nil
}
