package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

type tokenValidator func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

type auth struct {
	clientID string
	secret   []byte
	admins   []string
	validate tokenValidator
	log      *zap.Logger
}

func (a *auth) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	credential := r.FormValue("credential")
	if credential == "" {
		http.Error(w, "missing credential", http.StatusBadRequest)
		return
	}

	payload, err := a.validate(r.Context(), credential, a.clientID)
	if err != nil {
		a.log.Info("failed to validate token", zap.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		http.Error(w, "token has no email", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":   email,
		"name":    payload.Claims["name"],
		"picture": payload.Claims["picture"],
		"token":   a.signEmail(email),
	})
}

func (a *auth) signEmail(email string) string {
	h := hmac.New(sha256.New, a.secret)
	h.Write([]byte(email))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + sig
}

func (a *auth) authorize(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	emailBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	email := string(emailBytes)
	if !hmac.Equal([]byte(a.signEmail(email)), []byte(token)) {
		return "", false
	}
	return email, true
}

func (a *auth) isAdmin(email string) bool {
	return slices.ContainsFunc(a.admins, func(admin string) bool {
		return strings.EqualFold(admin, email)
	})
}

func (a *auth) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := a.authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	if !a.isAdmin(email) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return email, true
}

func (a *auth) handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	email, ok := a.authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"admin": a.isAdmin(email)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
