// Package confirmcode derives one-time confirmation codes from a user's
// current security state instead of storing them.
//
// A code is "<issued-at in base36>-<mac>", where mac is a truncated
// HMAC-SHA256 over the user's id, username, email, last login time and the
// issued-at timestamp. Changing any of those fields (a successful token
// exchange bumps the last login time) invalidates every code issued before,
// which makes codes single-use without a "consumed" flag or a codes table.
package confirmcode

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/catalog-reviews/internal/domain"
	"golang.org/x/crypto/hkdf"
)

const (
	macHexLen       = 20
	codeKeyInfo     = "confirmation-code"
	fingerprintInfo = "token-fingerprint"
)

// Generator issues and checks confirmation codes. It holds no mutable state
// and is safe for concurrent use.
type Generator struct {
	codeKeys [][]byte
	fpKey    []byte
	ttl      time.Duration
	now      func() time.Time
}

// Option customises a Generator.
type Option func(*Generator)

// WithTTL rejects codes older than ttl. Zero means codes never expire on
// their own and stay valid until the bound user state changes.
func WithTTL(ttl time.Duration) Option {
	return func(g *Generator) { g.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New builds a Generator. secret signs new codes; fallbacks are previous
// secrets that are still accepted while a rotation is in progress.
func New(secret string, fallbacks []string, opts ...Option) (*Generator, error) {
	if secret == "" {
		return nil, errors.New("confirmation code secret is empty")
	}
	g := &Generator{now: time.Now}
	for _, s := range append([]string{secret}, fallbacks...) {
		if s == "" {
			continue
		}
		k, err := deriveKey(s, codeKeyInfo)
		if err != nil {
			return nil, err
		}
		g.codeKeys = append(g.codeKeys, k)
	}
	fp, err := deriveKey(secret, fingerprintInfo)
	if err != nil {
		return nil, err
	}
	g.fpKey = fp
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Make issues a code for u's current state.
func (g *Generator) Make(u *domain.User) string {
	ts := g.now().Unix()
	return strconv.FormatInt(ts, 36) + "-" + g.mac(g.codeKeys[0], u, ts)
}

// Check reports whether code was issued for u's current state by this
// Generator (or one of the fallback secrets) and has not expired.
func (g *Generator) Check(u *domain.User, code string) bool {
	if u == nil {
		return false
	}
	tsPart, macPart, ok := strings.Cut(code, "-")
	if !ok || len(macPart) != macHexLen {
		return false
	}
	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts <= 0 {
		return false
	}
	if g.ttl > 0 && g.now().Sub(time.Unix(ts, 0)) > g.ttl {
		return false
	}
	valid := false
	for _, k := range g.codeKeys {
		// Every key is tried so the comparison count does not depend on which one matches.
		if hmac.Equal([]byte(g.mac(k, u, ts)), []byte(macPart)) {
			valid = true
		}
	}
	return valid
}

// Fingerprint is a keyed digest of the identity fields a bearer token is
// bound to. A token whose fingerprint no longer matches the stored user is
// stale.
func (g *Generator) Fingerprint(u *domain.User) string {
	h := hmac.New(sha256.New, g.fpKey)
	fmt.Fprintf(h, "%s|%s", u.UserID, u.Email)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// FingerprintMatches compares fp against u's current fingerprint in constant time.
func (g *Generator) FingerprintMatches(u *domain.User, fp string) bool {
	return hmac.Equal([]byte(g.Fingerprint(u)), []byte(fp))
}

func (g *Generator) mac(key []byte, u *domain.User, ts int64) string {
	var login int64
	if u.LastLoginAt != nil {
		login = u.LastLoginAt.UTC().UnixNano()
	}
	h := hmac.New(sha256.New, key)
	fmt.Fprintf(h, "%s|%s|%s|%d|%d", u.UserID, u.Username, u.Email, login, ts)
	return hex.EncodeToString(h.Sum(nil))[:macHexLen]
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}
