// Package linktoken signs and validates the tokens embedded in
// self-service verification links sent to customers.
package linktoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "kycflow/pkg/domain-errors"
)

const issuer = "kycflow"

// Claims ties a link token to one entry of one list. A customer holding
// the link can act on that entry and nothing else.
type Claims struct {
	ListID  string `json:"list_id"`
	EntryID string `json:"entry_id"`
	jwt.RegisteredClaims
}

type Service struct {
	signingKey []byte
	ttl        time.Duration
}

func NewService(signingKey string, ttl time.Duration) (*Service, error) {
	if signingKey == "" {
		return nil, dErrors.New(dErrors.CodeNotConfigured, "link signing key is not configured")
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Service{signingKey: []byte(signingKey), ttl: ttl}, nil
}

// Issue creates a signed token for one list entry.
func (s *Service) Issue(listID, entryID string) (string, error) {
	if listID == "" || entryID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "list and entry IDs are required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ListID:  listID,
		EntryID: entryID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Parse validates the signature and expiry and returns the claims.
func (s *Service) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "verification link has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification link")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification link")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.ListID == "" || claims.EntryID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification link claims")
	}
	return claims, nil
}
