package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xenking/bookstore-checkout/internal/domain/user"
)

type userKey struct{}

// UserFromContext returns the user authenticated by SecurityHandler.
func UserFromContext(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey{}).(user.User)
	return u, ok
}

// WithUser returns a context carrying u as the authenticated user.
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserKey is a rate limit key function that keys requests by user id.
func UserKey(r *http.Request) string {
	u, _ := UserFromContext(r.Context())
	return u.ID
}

// SecurityHandler authenticates API requests with HS256 bearer tokens whose
// subject is a user id.
type SecurityHandler struct {
	users  user.Repository
	secret []byte
	parser *jwt.Parser
}

// NewSecurityHandler creates a SecurityHandler that verifies tokens with
// secret and loads the subject from users.
func NewSecurityHandler(users user.Repository, secret []byte) *SecurityHandler {
	return &SecurityHandler{
		users:  users,
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

var errUnauthorized = errors.New("unauthorized")

// Middleware rejects requests without a valid token with 401 and stores the
// authenticated user in the request context.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.authenticate(r)
		if err != nil {
			if !errors.Is(err, errUnauthorized) {
				zctx.From(r.Context()).Error("Authentication failed", zap.Error(err))
				writeMessage(w, http.StatusInternalServerError, "internal error")
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="bookstore"`)
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), *u)))
	})
}

func (s *SecurityHandler) authenticate(r *http.Request) (*user.User, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, errUnauthorized
	}

	var claims jwt.RegisteredClaims
	if _, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil || claims.Subject == "" {
		return nil, errUnauthorized
	}

	u, err := s.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, errUnauthorized
		}
		return nil, errors.Wrap(err, "load user")
	}
	return u, nil
}

// SignToken issues an HS256 token for userID valid for ttl.
func SignToken(secret []byte, userID string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}
