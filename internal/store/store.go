package store

import (
	"context"
	"errors"
	"time"

	"github.com/promptpit/promptpit-backend/internal/battle"
	"github.com/promptpit/promptpit-backend/pkg/types"
)

var ErrNotFound = errors.New("not found")

// Duplicate errors map storage unique-constraint violations back to the
// caller. They are the only mechanism guarding double submissions, double
// votes and battle id collisions; there is no read-then-check anywhere.
var ErrDuplicateBattle = errors.New("battle id already exists")
var ErrDuplicateSubmission = errors.New("submission already exists for battle and user")
var ErrDuplicateVote = errors.New("vote already exists for battle and voter")
var ErrDuplicateUser = errors.New("username or email already exists")

// Store is the persistence boundary. All multi-caller coordination happens
// here: slot claims and status hops are conditional single-statement updates
// that at most one concurrent caller can win, and the Claimed/advanced result
// tells the caller whether it won or should treat the work as already done.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, u battle.User) error
	UserByID(ctx context.Context, id string) (battle.User, error)
	UserByEmail(ctx context.Context, email string) (battle.User, error)
	// ApplyResult applies relative deltas (counter = counter + delta) so
	// settlement never does a read-modify-write in application code.
	ApplyResult(ctx context.Context, updates []battle.RatingUpdate) error

	// Challenges.
	RandomChallenge(ctx context.Context) (battle.Challenge, error)
	// SeedDefaultChallenge lazily provisions the default category and
	// challenge when the challenge table is empty.
	SeedDefaultChallenge(ctx context.Context) (battle.Challenge, error)

	// Battles.
	CreateBattle(ctx context.Context, b battle.Battle) error
	BattleByID(ctx context.Context, id string) (battle.Battle, error)
	// OpenBattleExcluding finds any WAITING battle whose owner is not userID.
	OpenBattleExcluding(ctx context.Context, userID string) (battle.Battle, error)
	// WaitingBattleOwnedBy finds the requester's own pending room, if any.
	WaitingBattleOwnedBy(ctx context.Context, userID string) (battle.Battle, error)
	// ClaimOpponentSlot sets player B and moves WAITING -> IN_PROGRESS in one
	// conditional update. Returns false when the battle was no longer WAITING.
	ClaimOpponentSlot(ctx context.Context, battleID, userID string) (bool, error)
	// MarkVoting moves IN_PROGRESS -> VOTING; false when already advanced.
	MarkVoting(ctx context.Context, battleID string) (bool, error)
	// FinishBattle moves VOTING -> FINISHED carrying the (nullable) winner and
	// completion time; false when already finished.
	FinishBattle(ctx context.Context, battleID string, winnerID *string, finishedAt time.Time) (bool, error)
	// ResetBattles drops every battle and its children. Operator tooling only.
	ResetBattles(ctx context.Context) error

	// Submissions and generated responses.
	CreateSubmission(ctx context.Context, s battle.Submission) error
	SubmissionsByBattle(ctx context.Context, battleID string) ([]battle.Submission, error)
	CreateResponse(ctx context.Context, r battle.Response) error
	ResponsesByBattle(ctx context.Context, battleID string) ([]types.ResponseView, error)

	// Votes.
	CreateVote(ctx context.Context, v battle.Vote) error
	VotesByBattle(ctx context.Context, battleID string) ([]battle.Vote, error)

	// BattleView builds the denormalized projection (battle + challenge
	// title/description + both usernames). Responses are attached by the
	// caller once the battle is past IN_PROGRESS.
	BattleView(ctx context.Context, battleID string) (types.BattleView, error)
}
