package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/taskchat/taskchat/pkg/config"
)

const defaultUserClaim = "sub"

// Verifier validates HS256 bearer tokens and resolves the user id claim.
type Verifier struct {
	secret    []byte
	issuer    string
	userClaim string
	now       func() time.Time
}

func NewVerifier(cfg *config.AuthConfig) (*Verifier, error) {
	secret := cfg.JWTSecret.Value()
	if secret == "" {
		return nil, ErrNoSecret
	}
	claim := cfg.UserClaim
	if claim == "" {
		claim = defaultUserClaim
	}
	return &Verifier{
		secret:    []byte(secret),
		issuer:    cfg.Issuer,
		userClaim: claim,
		now:       time.Now,
	}, nil
}

// Verify checks signature, expiry and issuer, then returns the user id.
func (v *Verifier) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingToken
	}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return "", fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	userID, ok := claims[v.userClaim].(string)
	if !ok || strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: missing %s claim", ErrInvalidToken, v.userClaim)
	}
	return userID, nil
}

// Issue signs a token for userID valid for ttl.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	now := v.now()
	claims := jwt.MapClaims{
		v.userClaim: userID,
		"iat":       now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
