package battle

import (
	"errors"
	"time"
)

var ErrEmptyPrompt = errors.New("prompt required")
var ErrInvalidChoice = errors.New("invalid choice")
var ErrInvalidTransition = errors.New("invalid status transition")

// RatingDelta is applied to both sides of a decisive result: +25 for the
// winner, -25 for the loser. Ties leave ratings untouched.
const RatingDelta = 25

// PlayersPerBattle is fixed at two. The round closes at two submissions and
// resolves at two votes; there is no spectator quorum.
const PlayersPerBattle = 2

type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusVoting     Status = "VOTING"
	StatusFinished   Status = "FINISHED"
)

// statusOrder defines the only legal lifecycle. Transitions are monotonic:
// a battle moves one step forward or not at all.
var statusOrder = []Status{StatusWaiting, StatusInProgress, StatusVoting, StatusFinished}

func statusIndex(s Status) int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// ValidTransition reports whether from -> to is a single forward step.
func ValidTransition(from, to Status) bool {
	fi, ti := statusIndex(from), statusIndex(to)
	if fi < 0 || ti < 0 {
		return false
	}
	return ti == fi+1
}

type Choice string

const (
	ChoiceA   Choice = "A"
	ChoiceB   Choice = "B"
	ChoiceTie Choice = "TIE"
)

func ParseChoice(s string) (Choice, error) {
	switch Choice(s) {
	case ChoiceA, ChoiceB, ChoiceTie:
		return Choice(s), nil
	default:
		return "", ErrInvalidChoice
	}
}

type Battle struct {
	ID          string
	ChallengeID string
	Status      Status
	PlayerAID   string
	PlayerBID   *string
	WinnerID    *string
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

type Submission struct {
	ID         string
	BattleID   string
	UserID     string
	PromptText string
	CreatedAt  time.Time
}

// Response is the judged output generated from one submission, shown to
// voters in place of the raw prompt.
type Response struct {
	ID           string
	SubmissionID string
	ModelName    string
	ResponseText string
	CreatedAt    time.Time
}

type Vote struct {
	ID        string
	BattleID  string
	VoterID   string
	Choice    Choice
	CreatedAt time.Time
}

type Challenge struct {
	ID          string
	CategoryID  string
	Title       string
	Description string
	Difficulty  string
	CreatedAt   time.Time
}

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Rating       int
	Wins         int
	Losses       int
	Ties         int
	CreatedAt    time.Time
}

// Tally is the per-choice vote count for one battle. TIE votes are counted
// but push neither side.
type Tally struct {
	A    int
	B    int
	Ties int
}

func CountVotes(votes []Vote) Tally {
	var t Tally
	for _, v := range votes {
		switch v.Choice {
		case ChoiceA:
			t.A++
		case ChoiceB:
			t.B++
		case ChoiceTie:
			t.Ties++
		}
	}
	return t
}

func (t Tally) Total() int { return t.A + t.B + t.Ties }

// Winner resolves a finished tally to a player id, or nil on a tie.
func Winner(t Tally, playerAID, playerBID string) *string {
	switch {
	case t.A > t.B:
		return &playerAID
	case t.B > t.A:
		return &playerBID
	default:
		return nil
	}
}

// RatingUpdate is a relative adjustment to one player's record. Deltas are
// applied at the storage layer (counter = counter + delta) so concurrent
// settlements of different battles cannot lose updates.
type RatingUpdate struct {
	UserID string
	Wins   int
	Losses int
	Ties   int
	Rating int
}

// ResultDeltas maps a resolution to the pair of rating updates. A nil winner
// means a tie: both players get a tie and keep their rating.
func ResultDeltas(winnerID *string, playerAID, playerBID string) []RatingUpdate {
	if winnerID == nil {
		return []RatingUpdate{
			{UserID: playerAID, Ties: 1},
			{UserID: playerBID, Ties: 1},
		}
	}
	loserID := playerAID
	if *winnerID == playerAID {
		loserID = playerBID
	}
	return []RatingUpdate{
		{UserID: *winnerID, Wins: 1, Rating: RatingDelta},
		{UserID: loserID, Losses: 1, Rating: -RatingDelta},
	}
}
