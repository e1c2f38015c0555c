package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "montoit/pkg/domain"
	dErrors "montoit/pkg/domain-errors"
	"montoit/pkg/platform/httputil"
	"montoit/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the subject user id.
type TokenValidator interface {
	ValidateToken(tokenString string) (id.UserID, error)
}

// JWTValidator validates HS256 session tokens issued by the auth service.
type JWTValidator struct {
	signingKey []byte
}

var _ TokenValidator = (*JWTValidator)(nil)

func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{signingKey: []byte(signingKey)}
}

func (v *JWTValidator) ValidateToken(tokenString string) (id.UserID, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return v.signingKey, nil
	})
	if err != nil || !token.Valid {
		return id.UserID{}, dErrors.Wrap(dErrors.CodeUnauthorized, "invalid or expired token", err)
	}
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return id.UserID{}, dErrors.Wrap(dErrors.CodeUnauthorized, "token subject is not a user id", err)
	}
	return userID, nil
}

// RequireAuth rejects requests without a valid bearer token and places the
// authenticated user id on the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access, missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			userID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}
