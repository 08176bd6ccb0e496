package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptpit/promptpit-backend/internal/arena"
	"github.com/promptpit/promptpit-backend/internal/auth"
	"github.com/promptpit/promptpit-backend/internal/generator"
	"github.com/promptpit/promptpit-backend/internal/hub"
	"github.com/promptpit/promptpit-backend/internal/store"
	"github.com/promptpit/promptpit-backend/pkg/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := store.NewMemory()
	h := hub.NewHub(ctx)
	authSvc := auth.NewService("test-secret", time.Hour)
	coord := arena.New(m, generator.Mock{}, h, nil)

	srv := httptest.NewServer(SetupRoutes(Deps{
		Arena: coord,
		Store: m,
		Auth:  authSvc,
		Hub:   h,
		Log:   nil,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func registerUser(t *testing.T, srv *httptest.Server, username, email string) string {
	t.Helper()
	resp, body := postJSON(t, srv.URL+"/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterLoginMe(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "xena", "x@promptpit.io")

	// Duplicate username is a client error, not a 500.
	resp, _ := postJSON(t, srv.URL+"/api/auth/register", "", map[string]string{
		"username": "xena", "email": "x2@promptpit.io", "password": "hunter22",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := postJSON(t, srv.URL+"/api/auth/login", "", map[string]string{
		"email": "x@promptpit.io", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	resp, _ = postJSON(t, srv.URL+"/api/auth/login", "", map[string]string{
		"email": "x@promptpit.io", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	meResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer meResp.Body.Close()
	require.Equal(t, http.StatusOK, meResp.StatusCode)

	var me struct {
		User struct {
			Username string `json:"username"`
			Rating   int    `json:"rating"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(meResp.Body).Decode(&me))
	require.Equal(t, "xena", me.User.Username)
	require.Equal(t, 1000, me.User.Rating)
}

func TestBattleFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	tokenX := registerUser(t, srv, "xena", "x@promptpit.io")
	tokenY := registerUser(t, srv, "yuri", "y@promptpit.io")

	// Matchmaking requires auth.
	resp, _ := postJSON(t, srv.URL+"/api/battles", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := postJSON(t, srv.URL+"/api/battles", tokenX, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "created", body["status"])
	battleID, _ := body["battleId"].(string)
	require.NotEmpty(t, battleID)

	resp, body = postJSON(t, srv.URL+"/api/battles", tokenY, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "joined", body["status"])
	require.Equal(t, battleID, body["battleId"])

	// Empty prompt is a 400.
	resp, _ = postJSON(t, srv.URL+"/api/battles/"+battleID+"/submit", tokenX, map[string]string{"prompt": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/api/battles/"+battleID+"/submit", tokenX, map[string]string{"prompt": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = postJSON(t, srv.URL+"/api/battles/"+battleID+"/submit", tokenY, map[string]string{"prompt": "world"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Public view now carries both generated responses.
	getResp, err := http.Get(srv.URL + "/api/battles/" + battleID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var view types.BattleView
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&view))
	require.Equal(t, "VOTING", view.Status)
	require.Len(t, view.Responses, 2)

	// Invalid choice, then the real votes.
	resp, _ = postJSON(t, srv.URL+"/api/battles/"+battleID+"/vote", tokenX, map[string]string{"choice": "Z"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/api/battles/"+battleID+"/vote", tokenX, map[string]string{"choice": "A"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Double vote is a conflict.
	resp, _ = postJSON(t, srv.URL+"/api/battles/"+battleID+"/vote", tokenX, map[string]string{"choice": "B"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/api/battles/"+battleID+"/vote", tokenY, map[string]string{"choice": "A"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp2, err := http.Get(srv.URL + "/api/battles/" + battleID)
	require.NoError(t, err)
	defer getResp2.Body.Close()
	var final types.BattleView
	require.NoError(t, json.NewDecoder(getResp2.Body).Decode(&final))
	require.Equal(t, "FINISHED", final.Status)
	require.NotNil(t, final.WinnerID)
	require.Equal(t, final.PlayerAID, *final.WinnerID)
}

func TestSubmitAndVote_UnknownBattleIs404(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "xena", "x@promptpit.io")

	// No orphan rows: writes against a battle id that doesn't exist are
	// rejected, not silently accepted.
	resp, _ := postJSON(t, srv.URL+"/api/battles/does-not-exist/submit", token, map[string]string{"prompt": "hello"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/api/battles/does-not-exist/vote", token, map[string]string{"choice": "A"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetBattle_UnknownIs404(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/battles/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
