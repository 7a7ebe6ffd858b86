package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"blikterminal/internal/server/service"
	"blikterminal/internal/shared/models"
)

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body models.LoginRequest
	if err := r.decode(w, req, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	token, err := r.services.Auth.Login(req.Context(), body.Login, body.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid login or password"})
		return
	}
	if err != nil {
		r.logger.Error("login", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if err := r.services.Auth.Logout(req.Context(), getToken(req.Context())); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleAccount(w http.ResponseWriter, req *http.Request) {
	acc, err := r.services.Auth.Account(req.Context(), getAccountID(req.Context()))
	if errors.Is(err, service.ErrAccountNotFound) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "account gone"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, models.AccountResponse{
		ID:      acc.ID,
		Login:   acc.Login,
		Balance: jsonAmount(acc.Balance),
	})
}

func (r *Router) handleGenerateBlik(w http.ResponseWriter, req *http.Request) {
	now := r.services.Now()
	issued, err := r.services.Codes.GenerateFor(req.Context(), getAccountID(req.Context()), now)
	if err != nil {
		r.logger.Error("generate code", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, models.BlikCodeResponse{
		BlikCode:  issued.Code,
		ExpiresAt: issued.ExpiresAt,
		TimeLeft:  service.TimeLeft(issued.ExpiresAt, now),
	})
}
