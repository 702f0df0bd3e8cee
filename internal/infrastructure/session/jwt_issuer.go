package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrUnknownTemplate = errors.New("session: unknown token template")
	ErrInvalidToken    = errors.New("session: invalid token")
)

// TokenIssuer mints short-lived access tokens from a named template.
type TokenIssuer interface {
	Issue(ctx context.Context, uid, template string) (string, time.Time, error)
}

// Template names the audience and lifetime of an issued token.
type Template struct {
	Audience string
	TTL      time.Duration
}

type Claims struct {
	Template string `json:"tpl"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 tokens and verifies the ones it signed.
type JWTIssuer struct {
	secret    []byte
	issuer    string
	templates map[string]Template
	now       func() time.Time
}

func NewJWTIssuer(secret, issuer string, templates map[string]Template) *JWTIssuer {
	return &JWTIssuer{
		secret:    []byte(secret),
		issuer:    issuer,
		templates: templates,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (j *JWTIssuer) WithClock(now func() time.Time) *JWTIssuer {
	j.now = now
	return j
}

func (j *JWTIssuer) Issue(ctx context.Context, uid, template string) (string, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return "", time.Time{}, err
	}

	tpl, ok := j.templates[template]
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
	}

	now := j.now()
	expiresAt := now.Add(tpl.TTL)
	claims := Claims{
		Template: template,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{tpl.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry and returns the subject uid.
func (j *JWTIssuer) Verify(token string) (string, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !claims.VerifyExpiresAt(j.now(), true) {
		return "", fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if !claims.VerifyIssuer(j.issuer, true) {
		return "", fmt.Errorf("%w: wrong issuer", ErrInvalidToken)
	}
	if _, ok := j.templates[claims.Template]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, claims.Template)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims.Subject, nil
}
