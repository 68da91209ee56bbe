package httptransport

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"castellan/internal/identity"
	"castellan/internal/proto"
	"castellan/pkg/httputil"
)

// TokenVerifier validates a signed token and returns the identity it
// asserts plus the session it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*proto.UserAuthToken, uuid.UUID, error)
}

// RequireToken rejects requests without a valid bearer token and attaches
// the asserted identity to the request context.
func RequireToken(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, proto.NewOperationError(proto.OpNotAuthenticated))
				return
			}
			token, _, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				httputil.WriteError(w, proto.NewOperationError(proto.OpNotAuthenticated))
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithToken(r.Context(), token)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
