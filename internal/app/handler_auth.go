package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// userView is the part of a User the API exposes.
type userView struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func viewOf(u User) userView { return userView{ID: u.ID, Email: u.Email, Name: u.Name} }

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func decodeCredentials(r *http.Request, w http.ResponseWriter) (credentials, bool) {
	var c credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&c); err != nil {
		return credentials{}, false
	}
	c.Email = normalizeEmail(c.Email)
	c.Name = strings.TrimSpace(c.Name)
	return c, c.Email != "" && c.Password != ""
}

// handleRegister creates an account from an email and password.
func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(r, w)
	if !ok {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), a.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		writeError(w, http.StatusBadRequest, "password too long")
		return
	}
	if err != nil {
		a.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "error creating user")
		return
	}

	u, err := a.store.CreateUser(User{Email: c.Email, Name: c.Name, PasswordHash: string(hash)})
	switch {
	case errors.Is(err, ErrUserExists):
		writeError(w, http.StatusConflict, "user already exists")
		return
	case err != nil:
		a.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "error creating user")
		return
	}
	a.logger.Info("user registered", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "user": viewOf(u)})
}

// handleLogin checks the credentials and sets the session cookie.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(r, w)
	if !ok {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	u, found, err := a.store.UserByEmail(c.Email)
	if err != nil {
		a.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if !found || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, exp, err := a.issueSession(u)
	if err != nil {
		a.logger.Error("sign session", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	a.logger.Info("user logged in", "user_id", u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": viewOf(u), "token": token})
}

// handleLogout clears the session cookie.
func (a *App) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSession reports the user behind the current session.
func (a *App) handleSession(w http.ResponseWriter, r *http.Request) {
	claims, _ := r.Context().Value(sessionKey{}).(sessionClaims)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": map[string]any{"id": claims.Subject, "email": claims.Email},
	})
}
