// Package auth mints and verifies the HS256 access tokens handed out at
// account registration.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// clockSkew tolerates small clock differences between API replicas.
const clockSkew = 30 * time.Second

var ErrInvalidToken = errors.New("invalid access token")

// AccessTokenPayload is what the caller knows when minting.
type AccessTokenPayload struct {
	AccountID uuid.UUID
	Plan      enums.PlanName
	JTI       string
}

// AccessTokenClaims is the token body. Subject and AccountID carry the same
// id; tokens that only set the subject are still accepted.
type AccessTokenClaims struct {
	AccountID uuid.UUID      `json:"account_id"`
	Plan      enums.PlanName `json:"plan,omitempty"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks during parsing.
func (c *AccessTokenClaims) Validate() error {
	if c.AccountID == uuid.Nil {
		id, err := uuid.Parse(c.Subject)
		if err != nil {
			return errors.New("token subject is not an account id")
		}
		c.AccountID = id
	}
	if c.Plan != "" && !c.Plan.IsValid() {
		return fmt.Errorf("unknown plan %q", c.Plan)
	}
	return nil
}

func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case payload.AccountID == uuid.Nil:
		return "", errors.New("account id is required")
	case payload.Plan != "" && !payload.Plan.IsValid():
		return "", fmt.Errorf("invalid plan %q", payload.Plan)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		AccountID: payload.AccountID,
		Plan:      payload.Plan,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   payload.AccountID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration())),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry. Every failure
// wraps ErrInvalidToken.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}
