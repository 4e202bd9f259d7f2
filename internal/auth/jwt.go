// Package auth issues and verifies the opaque auth_token carried by every
// post-registration envelope. Tokens are RS256 JWTs binding
// (league_id, kind, agent_id); because a signed JWT cannot be un-signed,
// revocation is enforced by an in-memory jti denylist that is
// written-through to the token table on issuance and revocation.
package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agentleague/league/internal/protocol"
)

const (
	// tokenDuration is the validity window of an issued auth_token. Matches
	// are short (minutes), leagues run for a single session, so a generous
	// fixed duration avoids mid-league re-registration.
	tokenDuration = 24 * time.Hour

	rsaKeyBits = 2048
)

// Claims holds the custom JWT claims embedded in every auth_token.
type Claims struct {
	jwt.RegisteredClaims
	LeagueID string `json:"league_id"`
	Kind     string `json:"kind"`
	AgentID  string `json:"agent_id"`
}

// TokenManager issues and verifies league auth tokens. It holds the RSA
// key pair in memory and a revocation set keyed by jti.
type TokenManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string

	mu      sync.RWMutex
	revoked map[string]bool
}

// NewTokenManagerFromFiles loads an RSA key pair from PEM files on disk.
// Use this in production where keys are mounted as secrets.
func NewTokenManagerFromFiles(privateKeyPath, publicKeyPath, issuer string) (*TokenManager, error) {
	privBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("auth: reading private key file: %w", err)
	}
	pubBytes, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("auth: reading public key file: %w", err)
	}
	return newTokenManagerFromPEM(privBytes, pubBytes, issuer)
}

// NewTokenManagerGenerated creates a TokenManager with a freshly generated
// RSA key pair. The keys are ephemeral: all existing tokens are invalidated
// on process restart. Restore neither re-issues nor re-verifies tokens for
// agents that survive a Manager crash.
func NewTokenManagerGenerated(issuer string) (*TokenManager, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("auth: generating RSA key pair: %w", err)
	}
	return &TokenManager{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		revoked:    make(map[string]bool),
	}, nil
}

func newTokenManagerFromPEM(privatePEM, publicPEM []byte, issuer string) (*TokenManager, error) {
	privBlock, _ := pem.Decode(privatePEM)
	if privBlock == nil {
		return nil, errors.New("auth: failed to decode private key PEM block")
	}

	var privateKey *rsa.PrivateKey
	switch privBlock.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(privBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing PKCS#1 private key: %w", err)
		}
		privateKey = key
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(privBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing PKCS#8 private key: %w", err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("auth: PKCS#8 key is not an RSA key")
		}
		privateKey = rsaKey
	default:
		return nil, fmt.Errorf("auth: unsupported private key PEM type: %s", privBlock.Type)
	}

	pubBlock, _ := pem.Decode(publicPEM)
	if pubBlock == nil {
		return nil, errors.New("auth: failed to decode public key PEM block")
	}
	pubInterface, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing public key: %w", err)
	}
	publicKey, ok := pubInterface.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("auth: public key is not an RSA key")
	}

	return &TokenManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		revoked:    make(map[string]bool),
	}, nil
}

// Issue signs a new auth_token bound to (leagueID, kind, agentID). Returns
// the signed token, its jti (for persistence), and the expiry.
func (m *TokenManager) Issue(leagueID, kind, agentID string) (token, jti string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(tokenDuration)
	jti = uuid.NewString()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   agentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		LeagueID: leagueID,
		Kind:     kind,
		AgentID:  agentID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, jti, expiresAt, nil
}

// Verify parses and verifies a token string, rejecting revoked or expired
// tokens, and returns the binding it carries. Verify satisfies
// protocol.TokenVerifier.
func (m *TokenManager) Verify(tokenString string) (protocol.TokenBinding, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
			}
			return m.publicKey, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return protocol.TokenBinding{}, ErrTokenExpired
		}
		return protocol.TokenBinding{}, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return protocol.TokenBinding{}, ErrTokenInvalid
	}

	if m.IsRevoked(claims.ID) {
		return protocol.TokenBinding{}, ErrTokenRevoked
	}

	return protocol.TokenBinding{
		LeagueID: claims.LeagueID,
		Kind:     protocol.SenderKind(claims.Kind),
		AgentID:  claims.AgentID,
	}, nil
}

// Revoke adds jti to the in-memory denylist. Callers are responsible for
// persisting the revocation (setting revoked_at on the tokens row) so it
// survives restart; see LoadRevoked.
func (m *TokenManager) Revoke(jti string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = true
}

// IsRevoked reports whether jti has been revoked.
func (m *TokenManager) IsRevoked(jti string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revoked[jti]
}

// LoadRevoked seeds the in-memory denylist from persisted revocations,
// called once during Restore after a process restart.
func (m *TokenManager) LoadRevoked(jtis []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, jti := range jtis {
		m.revoked[jti] = true
	}
}

// PublicVerifier verifies auth_tokens using only the league's public key,
// for agents (referees, players) that never hold the signing key or the
// revocation set. It accepts a token the Manager has already issued and
// not yet expired; it cannot see a revocation made after the token left
// the Manager, which is an accepted narrowing for the short-lived,
// single-session leagues this system runs.
type PublicVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewPublicVerifierFromPEM builds a PublicVerifier from a PEM-encoded
// PKIX public key, as distributed to a referee or player at startup
// alongside its own auth_token.
func NewPublicVerifierFromPEM(publicPEM []byte, issuer string) (*PublicVerifier, error) {
	block, _ := pem.Decode(publicPEM)
	if block == nil {
		return nil, errors.New("auth: failed to decode public key PEM block")
	}
	pubInterface, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing public key: %w", err)
	}
	publicKey, ok := pubInterface.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("auth: public key is not an RSA key")
	}
	return &PublicVerifier{publicKey: publicKey, issuer: issuer}, nil
}

// Verify parses and signature-checks tokenString, returning its binding.
// Verify satisfies protocol.TokenVerifier.
func (v *PublicVerifier) Verify(tokenString string) (protocol.TokenBinding, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
			}
			return v.publicKey, nil
		},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return protocol.TokenBinding{}, ErrTokenExpired
		}
		return protocol.TokenBinding{}, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return protocol.TokenBinding{}, ErrTokenInvalid
	}
	return protocol.TokenBinding{
		LeagueID: claims.LeagueID,
		Kind:     protocol.SenderKind(claims.Kind),
		AgentID:  claims.AgentID,
	}, nil
}

// PublicKeyPEM returns the public key in PEM-encoded PKIX format.
func (m *TokenManager) PublicKeyPEM() ([]byte, error) {
	pubBytes, err := x509.MarshalPKIXPublicKey(m.publicKey)
	if err != nil {
		return nil, fmt.Errorf("auth: marshaling public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), nil
}
