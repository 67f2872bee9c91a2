package httpapi

import (
	"errors"
	"net/http"

	"github.com/stafflane/access/internal/access"
	"github.com/stafflane/access/internal/audit"
	"github.com/stafflane/access/internal/authn"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	ExpiresIn          int64  `json:"expires_in"`
	MustChangePassword bool   `json:"must_change_password"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx := r.Context()
	user, err := a.store.Users(ctx).FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, access.ErrNotFound) {
			a.recordLoginFailure(r, req.Email, "unknown email")
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		handleAccessError(w, r, err)
		return
	}
	if user.Status != access.UserStatusActive {
		a.recordLoginFailure(r, req.Email, "account disabled")
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := authn.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		a.recordLoginFailure(r, req.Email, "password mismatch")
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	roles, err := a.store.Users(ctx).RolesForUser(ctx, user.ID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	employeeID := ""
	if emp, err := a.store.Employees(ctx).FindByUserID(ctx, user.ID); err == nil {
		employeeID = emp.ID
	} else if !errors.Is(err, access.ErrNotFound) {
		handleAccessError(w, r, err)
		return
	}

	token, err := authn.GenerateToken(user.ID, user.OrganizationID, employeeID, roleNames, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token issuance failed")
		return
	}

	a.auditor.Record(ctx, audit.Entry{
		Action:          audit.ActionLogin,
		Resource:        "user",
		ResourceID:      user.ID,
		Status:          audit.StatusSuccess,
		OrganizationID:  user.OrganizationID,
		ActorUserID:     user.ID,
		ActorEmployeeID: employeeID,
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:        token,
		TokenType:          "Bearer",
		ExpiresIn:          int64(a.tokenTTL.Seconds()),
		MustChangePassword: user.MustChangePassword,
	})
}

func (a *API) recordLoginFailure(r *http.Request, email, reason string) {
	a.auditor.Record(r.Context(), audit.Entry{
		Action:   audit.ActionLoginFailed,
		Resource: "user",
		Status:   audit.StatusFailure,
		Metadata: map[string]any{"email": email, "reason": reason},
	})
}
