package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rescuelink/authcore"
	"github.com/rescuelink/authcore/password"
)

type errorBody struct {
	Success           bool       `json:"success"`
	Error             string     `json:"error"`
	RemainingAttempts *int       `json:"remaining_attempts,omitempty"`
	LockoutExpires    *time.Time `json:"lockout_expires,omitempty"`
}

type loginRequest struct {
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.Password == "" || req.Kind == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "kind, identifier, and password are required"})
		return
	}

	res, err := a.engine.Login(r.Context(), authcore.Kind(req.Kind), req.Identifier, req.Password)
	if err != nil {
		a.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tokens":  res.Tokens,
		"user": map[string]any{
			"principal_id": res.User.PrincipalID,
			"kind":         res.User.Kind,
			"email":        res.User.Email,
			"permissions":  res.User.Permissions,
			"firm_id":      res.User.FirmID,
			"role":         res.User.Role,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := a.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type revokeRequest struct {
	Token string `json:"token"`
}

func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !decode(w, r, &req) {
		return
	}

	if ok := a.engine.Revoke(r.Context(), req.Token); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]bool{"revoked": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "bearer token required"})
		return
	}

	uc, err := a.engine.Validate(r.Context(), raw)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"principal_id": uc.PrincipalID,
		"kind":         uc.Kind,
		"email":        uc.Email,
		"permissions":  uc.Permissions,
		"firm_id":      uc.FirmID,
		"role":         uc.Role,
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "identifier is required"})
		return
	}

	status, err := a.engine.Status(r.Context(), identifier)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type identifierRequest struct {
	Identifier string `json:"identifier"`
}

type confirmRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

func (a *API) handleUnlockRequest(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := a.engine.RequestUnlockOTP(r.Context(), req.Identifier)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleUnlockConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := a.engine.ConfirmUnlockOTP(r.Context(), req.Identifier, req.Code)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleVerifyRequest(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := a.engine.RequestVerificationOTP(r.Context(), req.Identifier)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := a.engine.ConfirmVerificationOTP(r.Context(), req.Identifier, req.Code)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if !decode(w, r, &req) {
		return
	}
	receipt, err := a.engine.RequestPasswordReset(r.Context(), req.Identifier)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type resetConfirmRequest struct {
	Identifier  string `json:"identifier"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (a *API) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := a.engine.ConfirmPasswordReset(r.Context(), req.Identifier, req.Code, req.NewPassword)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps engine errors onto HTTP statuses. Anything unmapped
// is an internal error and its detail stays out of the response.
func (a *API) writeError(w http.ResponseWriter, err error) {
	var ferr *authcore.FailedLoginError
	if errors.As(err, &ferr) {
		body := errorBody{Error: ferr.Error()}
		if ferr.Locked {
			if !ferr.LockoutExpires.IsZero() {
				body.LockoutExpires = &ferr.LockoutExpires
			}
			writeJSON(w, http.StatusLocked, body)
			return
		}
		remaining := ferr.RemainingAttempts
		body.RemainingAttempts = &remaining
		writeJSON(w, http.StatusUnauthorized, body)
		return
	}

	switch {
	case errors.Is(err, authcore.ErrAccountLocked):
		writeJSON(w, http.StatusLocked, errorBody{Error: err.Error()})
	case errors.Is(err, authcore.ErrInvalidCredentials),
		errors.Is(err, authcore.ErrTokenExpired),
		errors.Is(err, authcore.ErrTokenRevoked),
		errors.Is(err, authcore.ErrTokenInvalid),
		errors.Is(err, authcore.ErrRefreshInvalid):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, authcore.ErrAccountUnverified),
		errors.Is(err, authcore.ErrAccountInactive),
		errors.Is(err, authcore.ErrAccountSuspended):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, authcore.ErrAccountNotLocked),
		errors.Is(err, authcore.ErrOTPInvalid),
		errors.Is(err, password.ErrWeakPassword):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, authcore.ErrDeliveryFailed):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
	default:
		a.log.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
