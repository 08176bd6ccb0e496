package types

import "time"

// BattleView is the denormalized projection broadcast to subscribers and
// returned by GET /api/battles/{id}. Field names match the socket payloads
// the frontend already consumes.
type BattleView struct {
	ID              string         `json:"id"`
	ChallengeID     string         `json:"challenge_id"`
	Status          string         `json:"status"`
	PlayerAID       string         `json:"player_a_id"`
	PlayerBID       *string        `json:"player_b_id"`
	WinnerID        *string        `json:"winner_id"`
	CreatedAt       time.Time      `json:"created_at"`
	FinishedAt      *time.Time     `json:"finished_at"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	PlayerAUsername string         `json:"player_a_username"`
	PlayerBUsername *string        `json:"player_b_username"`
	Responses       []ResponseView `json:"responses,omitempty"`
}

// ResponseView attributes one generated response to the participant whose
// submission produced it. Only present once the battle reaches VOTING.
type ResponseView struct {
	UserID       string `json:"user_id"`
	ModelName    string `json:"model_name"`
	ResponseText string `json:"response_text"`
}

// ServerMessage is the websocket frame. Type is "battle-update" for view
// pushes and "Error" otherwise.
type ServerMessage struct {
	Type   string      `json:"type"`
	Battle *BattleView `json:"battle,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// MatchResult is the POST /api/battles response body. Status is one of
// "joined", "restored", "created".
type MatchResult struct {
	BattleID string `json:"battleId"`
	Status   string `json:"status"`
}
