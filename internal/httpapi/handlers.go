package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/promptpit/promptpit-backend/internal/arena"
	"github.com/promptpit/promptpit-backend/internal/auth"
	"github.com/promptpit/promptpit-backend/internal/battle"
	"github.com/promptpit/promptpit-backend/internal/store"
	"github.com/promptpit/promptpit-backend/pkg/types"
)

func RequestMatch(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserID(r.Context())
		if !ok {
			writeError(w, d.Log, auth.ErrInvalidToken)
			return
		}
		battleID, outcome, err := d.Arena.Match(r.Context(), userID)
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, types.MatchResult{BattleID: battleID, Status: string(outcome)})
	}
}

func JoinBattle(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserID(r.Context())
		if !ok {
			writeError(w, d.Log, auth.ErrInvalidToken)
			return
		}
		if err := d.Arena.Join(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
	}
}

func GetBattle(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := d.Arena.View(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func SubmitPrompt(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserID(r.Context())
		if !ok {
			writeError(w, d.Log, auth.ErrInvalidToken)
			return
		}
		var body struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, d.Log, battle.ErrEmptyPrompt)
			return
		}
		if err := d.Arena.Submit(r.Context(), chi.URLParam(r, "id"), userID, body.Prompt); err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
	}
}

func CastVote(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserID(r.Context())
		if !ok {
			writeError(w, d.Log, auth.ErrInvalidToken)
			return
		}
		var body struct {
			Choice string `json:"choice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, d.Log, battle.ErrInvalidChoice)
			return
		}
		if err := d.Arena.Vote(r.Context(), chi.URLParam(r, "id"), userID, body.Choice); err != nil {
			writeError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "voted"})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to client payloads. Unexpected errors are
// logged with full detail but surface as an opaque 500; raw error text never
// reaches the client.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var status int
	var msg string
	switch {
	case errors.Is(err, battle.ErrEmptyPrompt):
		status, msg = http.StatusBadRequest, "prompt required"
	case errors.Is(err, battle.ErrInvalidChoice):
		status, msg = http.StatusBadRequest, "invalid choice"
	case errors.Is(err, store.ErrDuplicateUser):
		status, msg = http.StatusBadRequest, "username or email already exists"
	case errors.Is(err, store.ErrDuplicateSubmission):
		status, msg = http.StatusConflict, "you have already submitted"
	case errors.Is(err, store.ErrDuplicateVote):
		status, msg = http.StatusConflict, "you have already voted"
	case errors.Is(err, arena.ErrNotJoinable):
		status, msg = http.StatusConflict, "battle is not joinable"
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, errInvalidCredentials):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	default:
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		status, msg = http.StatusInternalServerError, "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
