package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stafflane/access/internal/access"
	"github.com/stafflane/access/internal/audit"
	"github.com/stafflane/access/internal/obs"
)

// ReadyProbe reports readiness, typically a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the API dependencies.
type Config struct {
	Store      access.Store
	Service    *access.Service
	Resolver   *access.Resolver
	Auditor    *audit.Recorder
	AuditLog   audit.Store
	ReadyProbe ReadyProbe
	Version    string
	TokenTTL   time.Duration
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	store      access.Store
	svc        *access.Service
	resolver   *access.Resolver
	auditor    *audit.Recorder
	auditLog   audit.Store
	readyProbe ReadyProbe
	version    string
	tokenTTL   time.Duration
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		store:      cfg.Store,
		svc:        cfg.Service,
		resolver:   cfg.Resolver,
		auditor:    cfg.Auditor,
		auditLog:   cfg.AuditLog,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		tokenTTL:   cfg.TokenTTL,
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = time.Hour
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("/v1/me/permissions", a.handleMyPermissions)

	a.mux.HandleFunc("/v1/orgadmin/roles", a.handleRoles)
	a.mux.HandleFunc("/v1/orgadmin/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/orgadmin/permissions", a.handlePermissionCatalog)
	a.mux.HandleFunc("/v1/orgadmin/permission-groups", a.handleGroups)
	a.mux.HandleFunc("/v1/orgadmin/permission-groups/", a.handleGroupResource)
	a.mux.HandleFunc("/v1/orgadmin/employees/", a.handleEmployeeResource)

	a.mux.HandleFunc("/v1/admin/audit-logs", a.handleAuditLogs)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = a.withAuth(h)
	h = RequestID(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "access-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "access-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("value must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("value out of range")
	}
	return val, nil
}

// handleAccessError maps domain error kinds to HTTP statuses. Forbidden and
// immutable-role failures deliberately share a constant body so the
// response does not reveal which check rejected the call.
func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, access.ErrImmutableRole), errors.Is(err, access.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
