package ws

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/promptpit/promptpit-backend/internal/arena"
	"github.com/promptpit/promptpit-backend/internal/hub"
	"github.com/promptpit/promptpit-backend/internal/store"
	"github.com/promptpit/promptpit-backend/pkg/types"
)

// Handler subscribes a client to one battle's topic. The current view is
// sent immediately, then every transition pushes a fresh battle-update.
func Handler(h *hub.Hub, c *arena.Coordinator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		battleID := r.URL.Query().Get("battle")
		if battleID == "" {
			http.Error(w, "missing battle", http.StatusBadRequest)
			return
		}

		view, err := c.View(r.Context(), battleID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "battle not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.BattleView, 8)
		clientID := randID(6)

		h.Inbox() <- hub.Subscribe{Topic: battleID, ClientID: clientID, Outbox: out}
		defer func() { h.Inbox() <- hub.Unsubscribe{Topic: battleID, ClientID: clientID} }()

		// Writer goroutine: initial snapshot, then hub pushes.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			write := func(v types.BattleView) {
				msg := types.ServerMessage{Type: "battle-update", Battle: &v}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			write(view)
			for v := range out {
				write(v)
			}
		}()

		// Reader loop exists only to notice the peer going away.
		for {
			_, _, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				if log != nil {
					log.Debug("websocket closed", zap.String("battle_id", battleID), zap.Error(err))
				}
				return
			}
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			b[i] = charset[0]
			continue
		}
		b[i] = charset[num.Int64()]
	}
	return string(b)
}
