package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/promptpit/promptpit-backend/internal/auth"
	"github.com/promptpit/promptpit-backend/internal/battle"
	"github.com/promptpit/promptpit-backend/internal/store"
)

var errInvalidCredentials = errors.New("invalid credentials")

const startingRating = 1000

type userPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type profilePayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Ties     int    `json:"ties"`
}

func Register(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		body.Username = strings.TrimSpace(body.Username)
		body.Email = strings.TrimSpace(body.Email)
		if err := validateRegistration(body.Username, body.Email, body.Password); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		u := battle.User{
			ID:           uuid.NewString(),
			Username:     body.Username,
			Email:        body.Email,
			PasswordHash: string(hash),
			Rating:       startingRating,
			CreatedAt:    time.Now().UTC(),
		}
		if err := d.Store.CreateUser(r.Context(), u); err != nil {
			writeError(w, d.Log, err)
			return
		}
		token, err := d.Auth.Issue(u.ID)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  userPayload{ID: u.ID, Username: u.Username, Email: u.Email},
			"token": token,
		})
	}
}

func Login(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}

		u, err := d.Store.UserByEmail(r.Context(), strings.TrimSpace(body.Email))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, d.Log, errInvalidCredentials)
				return
			}
			writeError(w, d.Log, err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(body.Password)) != nil {
			writeError(w, d.Log, errInvalidCredentials)
			return
		}
		token, err := d.Auth.Issue(u.ID)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  userPayload{ID: u.ID, Username: u.Username},
			"token": token,
		})
	}
}

func Me(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserID(r.Context())
		if !ok {
			writeError(w, d.Log, auth.ErrInvalidToken)
			return
		}
		u, err := d.Store.UserByID(r.Context(), userID)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user": profilePayload{
				ID:       u.ID,
				Username: u.Username,
				Email:    u.Email,
				Rating:   u.Rating,
				Wins:     u.Wins,
				Losses:   u.Losses,
				Ties:     u.Ties,
			},
		})
	}
}

func validateRegistration(username, email, password string) error {
	if len(username) < 3 {
		return errors.New("username must be at least 3 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("invalid email")
	}
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}
