package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/middleware"
)

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) jwks(w http.ResponseWriter, r *http.Request) {
	raw, err := a.engine.JWKS(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(raw)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := a.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeAuthError(w, err)
		return
	}

	setRefreshCookie(w, a.cookie, res.RefreshToken)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		User:        newUserResponse(res.User, res.Permissions.Strings()),
	})
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := readRefreshCookie(r, a.cookie)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, goIdentity.ErrUnauthorized)
		return
	}

	pair, err := a.engine.Refresh(r.Context(), token)
	if err != nil {
		if !errors.Is(err, goIdentity.ErrLockConflict) && !errors.Is(err, goIdentity.ErrCoordinatorUnavailable) {
			clearRefreshCookie(w, a.cookie)
		}
		a.writeAuthError(w, err)
		return
	}

	setRefreshCookie(w, a.cookie, pair.RefreshToken)
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: pair.AccessToken})
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	auth, _ := middleware.AuthResultFromContext(r.Context())
	token, _ := readRefreshCookie(r, a.cookie)

	err := a.engine.LogoutAuthenticated(r.Context(), auth, token)
	clearRefreshCookie(w, a.cookie)
	if err != nil {
		a.logger.Warn("goIdentity: logout incomplete", zap.String("user_id", auth.UserID), zap.Error(err))
		if errors.Is(err, goIdentity.ErrCoordinatorUnavailable) {
			a.writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.ForgotPassword(r.Context(), req.Email); err != nil {
		a.logger.Warn("goIdentity: forgot password not processed", zap.Error(err))
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := a.engine.Register(r.Context(), goIdentity.RegisterRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(u, nil))
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	auth, _ := middleware.AuthResultFromContext(r.Context())
	u, err := a.engine.Me(r.Context(), auth.UserID)
	if err != nil {
		a.writeAuthError(w, err)
		return
	}
	perms, err := a.engine.PermissionsForUser(r.Context(), auth.UserID)
	if err != nil {
		a.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u, perms.Strings()))
}

func (a *api) updateSelf(w http.ResponseWriter, r *http.Request) {
	var req updateSelfRequest
	if !decode(w, r, &req) {
		return
	}
	auth, _ := middleware.AuthResultFromContext(r.Context())
	u, err := a.engine.UpdateSelf(r.Context(), auth.UserID, goIdentity.SelfUpdate{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u, nil))
}

func (a *api) updateRoles(w http.ResponseWriter, r *http.Request) {
	var req updateRolesRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := a.engine.UpdateUserRoles(r.Context(), chi.URLParam(r, "id"), req.Roles)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u, nil))
}

func (a *api) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) activityLogs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	res, err := a.engine.ListActivityLogs(r.Context(), page, limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
