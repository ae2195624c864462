package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("server: invalid token")
	ErrExpiredToken = errors.New("server: token expired")
)

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (subject string, err error)
}

// JWTVerifier verifies HMAC signed JWTs, the tokens issued by the booking
// store's login endpoint.
type JWTVerifier struct {
	secret []byte
	method jwt.SigningMethod
}

// NewJWTVerifier creates a verifier for tokens signed with secret. algorithm
// defaults to HS256.
func NewJWTVerifier(secret []byte, algorithm string) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("server: jwt secret is required")
	}

	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}

	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("server: unsupported jwt algorithm %q", algorithm)
	}

	return &JWTVerifier{secret: secret, method: method}, nil
}

// Verify validates the token and returns the "sub" claim, falling back to
// "user_id" as issued by the store.
func (v *JWTVerifier) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.method.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}

		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}

	for _, key := range []string{"sub", "user_id"} {
		if s, ok := claims[key].(string); ok && s != "" {
			return s, nil
		}
	}

	return "", fmt.Errorf("%w: no subject claim", ErrInvalidToken)
}

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyAuth      contextKey = "auth_header"
	contextKeySubject   contextKey = "subject"
)

// AuthHeaderFromContext returns the headers to forward to the booking store.
func AuthHeaderFromContext(ctx context.Context) map[string]string {
	if v, ok := ctx.Value(contextKeyAuth).(map[string]string); ok {
		return v
	}

	return nil
}

// SubjectFromContext returns the verified token subject, if any.
func SubjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeySubject).(string); ok {
		return v
	}

	return ""
}

// authMiddleware captures the caller's bearer token for forwarding. With a
// verifier, requests without a valid token are rejected; without one, the
// token is forwarded unchecked and the store decides.
func authMiddleware(verifier TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		ctx := r.Context()

		if verifier != nil {
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				writeError(w, http.StatusUnauthorized, "missing or malformed bearer token")
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, contextKeySubject, subject)
		}

		if header != "" {
			ctx = context.WithValue(ctx, contextKeyAuth, map[string]string{
				"Authorization": header,
				"Content-Type":  "application/json",
			})
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
