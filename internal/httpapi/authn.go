package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/stafflane/access/internal/audit"
	"github.com/stafflane/access/internal/authn"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		ctx := audit.WithRequestMeta(r.Context(), audit.RequestMeta{
			RequestID: RequestIDFromContext(r.Context()),
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		r = r.WithContext(ctx)

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := authn.ParseAndValidate(token)
		if err != nil {
			switch {
			case errors.Is(err, authn.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx = authn.ContextWithIdentity(r.Context(), authn.Identity{
			UserID:         claims.Subject,
			OrganizationID: claims.OrganizationID,
			EmployeeID:     claims.EmployeeID,
			Roles:          claims.Roles,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole is the coarse endpoint gate: the caller must hold at least one
// of the listed role names in its token claims. Stale claims are accepted
// here; the fine permission gate re-resolves from the database. Denials are
// not audited at this layer.
func (a *API) requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (authn.Identity, bool) {
	id, ok := authn.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return authn.Identity{}, false
	}
	for _, role := range roles {
		if authn.HasRole(r.Context(), role) {
			return id, true
		}
	}
	writeError(w, r, http.StatusForbidden, "forbidden")
	return authn.Identity{}, false
}

// requirePermission is the fine gate: a fresh resolution of the caller's
// effective permission set must contain code. The super-admin passes
// structurally. A denial is recorded as a privilege escalation attempt and
// answered with a constant body that does not name the missing permission.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, id authn.Identity, code string) bool {
	if id.IsSuperAdmin() {
		return true
	}
	if id.EmployeeID == "" {
		a.auditor.PrivilegeEscalation(r.Context(), r.URL.Path, "no employee identity")
		writeError(w, r, http.StatusForbidden, "forbidden")
		return false
	}
	ok, err := a.resolver.Has(r.Context(), id.EmployeeID, code)
	if err != nil {
		handleAccessError(w, r, err)
		return false
	}
	if !ok {
		a.auditor.PrivilegeEscalation(r.Context(), r.URL.Path, "missing permission")
		writeError(w, r, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
