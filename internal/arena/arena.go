package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptpit/promptpit-backend/internal/battle"
	"github.com/promptpit/promptpit-backend/internal/generator"
	"github.com/promptpit/promptpit-backend/internal/store"
	"github.com/promptpit/promptpit-backend/pkg/types"
)

// ErrNotJoinable means the battle was gone or no longer WAITING when an
// explicit join arrived.
var ErrNotJoinable = errors.New("battle is not joinable")

// createAttempts bounds the retry loop on battle id collisions. With uuid v4
// ids a collision essentially never happens; the loop only preserves the
// contract that creation fails deterministically.
const createAttempts = 3

type MatchOutcome string

const (
	OutcomeJoined   MatchOutcome = "joined"
	OutcomeRestored MatchOutcome = "restored"
	OutcomeCreated  MatchOutcome = "created"
)

// Broadcaster pushes a refreshed battle view to everyone subscribed to the
// battle's topic. Fire-and-forget.
type Broadcaster interface {
	Broadcast(battleID string, view types.BattleView)
}

// Coordinator owns the battle lifecycle: it pairs players, closes the round
// when both submissions land, resolves the vote, settles ratings, and
// broadcasts a consistent view after each transition.
//
// It holds no locks. Exactly-once behavior for round-close, resolution and
// settlement comes from the store's conditional status transitions: the one
// caller whose update hits a row runs the side effects, everyone else treats
// the transition as already done.
type Coordinator struct {
	store store.Store
	gen   generator.Generator
	bus   Broadcaster
	log   *zap.Logger
	now   func() time.Time
}

func New(st store.Store, gen generator.Generator, bus Broadcaster, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store: st,
		gen:   gen,
		bus:   bus,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Match pairs the requester with an open battle, restores their own pending
// room, or creates a fresh one, in that priority order.
func (c *Coordinator) Match(ctx context.Context, userID string) (string, MatchOutcome, error) {
	// 1. Join someone else's waiting room. The claim is conditional on the
	// battle still being WAITING; losing the race falls through to creation.
	open, err := c.store.OpenBattleExcluding(ctx, userID)
	if err == nil {
		claimed, err := c.store.ClaimOpponentSlot(ctx, open.ID, userID)
		if err != nil {
			return "", "", err
		}
		if claimed {
			c.log.Info("matchmaking joined battle",
				zap.String("battle_id", open.ID),
				zap.String("user_id", userID))
			c.broadcast(ctx, open.ID)
			return open.ID, OutcomeJoined, nil
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", "", err
	}

	// 2. Repeated requests from an idle requester return their own room.
	if own, err := c.store.WaitingBattleOwnedBy(ctx, userID); err == nil {
		return own.ID, OutcomeRestored, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", "", err
	}

	// 3. Open a new waiting room over a random challenge.
	ch, err := c.store.RandomChallenge(ctx)
	if errors.Is(err, store.ErrNotFound) {
		ch, err = c.store.SeedDefaultChallenge(ctx)
	}
	if err != nil {
		return "", "", err
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		b := battle.Battle{
			ID:          uuid.NewString(),
			ChallengeID: ch.ID,
			Status:      battle.StatusWaiting,
			PlayerAID:   userID,
			CreatedAt:   c.now(),
		}
		err := c.store.CreateBattle(ctx, b)
		if errors.Is(err, store.ErrDuplicateBattle) {
			continue
		}
		if err != nil {
			return "", "", err
		}
		c.log.Info("matchmaking created battle",
			zap.String("battle_id", b.ID),
			zap.String("user_id", userID))
		return b.ID, OutcomeCreated, nil
	}
	return "", "", fmt.Errorf("no unique battle id after %d attempts", createAttempts)
}

// Join is the explicit variant of the matchmaking claim.
func (c *Coordinator) Join(ctx context.Context, battleID, userID string) error {
	claimed, err := c.store.ClaimOpponentSlot(ctx, battleID, userID)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrNotJoinable
	}
	c.broadcast(ctx, battleID)
	return nil
}

// Submit records one participant's prompt. The second submission closes the
// round: the caller that wins the VOTING transition generates one judged
// response per submission and broadcasts.
func (c *Coordinator) Submit(ctx context.Context, battleID, userID, promptText string) error {
	if strings.TrimSpace(promptText) == "" {
		return battle.ErrEmptyPrompt
	}

	sub := battle.Submission{
		ID:         uuid.NewString(),
		BattleID:   battleID,
		UserID:     userID,
		PromptText: promptText,
		CreatedAt:  c.now(),
	}
	if err := c.store.CreateSubmission(ctx, sub); err != nil {
		return err
	}

	subs, err := c.store.SubmissionsByBattle(ctx, battleID)
	if err != nil {
		return err
	}
	if len(subs) < battle.PlayersPerBattle {
		return nil
	}

	advanced, err := c.store.MarkVoting(ctx, battleID)
	if err != nil {
		return err
	}
	if !advanced {
		// Someone else closed the round; nothing left to do.
		return nil
	}

	// The round-close sequence runs to completion once the transition is won:
	// a failed generation loses that one response but must not strand the
	// battle in VOTING with no broadcast and no retry path.
	for _, s := range subs {
		gen, err := c.gen.Generate(ctx, s.PromptText)
		if err != nil {
			c.log.Error("response generation failed",
				zap.String("battle_id", battleID),
				zap.String("submission_id", s.ID),
				zap.Error(err))
			continue
		}
		resp := battle.Response{
			ID:           uuid.NewString(),
			SubmissionID: s.ID,
			ModelName:    gen.ModelName,
			ResponseText: gen.ResponseText,
			CreatedAt:    c.now(),
		}
		if err := c.store.CreateResponse(ctx, resp); err != nil {
			c.log.Error("response persist failed",
				zap.String("battle_id", battleID),
				zap.String("submission_id", s.ID),
				zap.Error(err))
		}
	}

	c.log.Info("round closed", zap.String("battle_id", battleID))
	c.broadcast(ctx, battleID)
	return nil
}

// Vote records one participant's choice. The second vote resolves the
// battle: the caller that wins the FINISHED transition persists the winner,
// settles ratings exactly once, and broadcasts.
func (c *Coordinator) Vote(ctx context.Context, battleID, voterID, rawChoice string) error {
	choice, err := battle.ParseChoice(rawChoice)
	if err != nil {
		return err
	}

	v := battle.Vote{
		ID:        uuid.NewString(),
		BattleID:  battleID,
		VoterID:   voterID,
		Choice:    choice,
		CreatedAt: c.now(),
	}
	if err := c.store.CreateVote(ctx, v); err != nil {
		return err
	}

	votes, err := c.store.VotesByBattle(ctx, battleID)
	if err != nil {
		return err
	}
	if len(votes) < battle.PlayersPerBattle {
		return nil
	}

	b, err := c.store.BattleByID(ctx, battleID)
	if err != nil {
		return err
	}
	if b.PlayerBID == nil {
		return fmt.Errorf("battle %s reached resolution without an opponent", battleID)
	}

	tally := battle.CountVotes(votes)
	winnerID := battle.Winner(tally, b.PlayerAID, *b.PlayerBID)

	finished, err := c.store.FinishBattle(ctx, battleID, winnerID, c.now())
	if err != nil {
		return err
	}
	if !finished {
		// Resolution already ran; ratings were settled by whoever won it.
		return nil
	}

	if err := c.store.ApplyResult(ctx, battle.ResultDeltas(winnerID, b.PlayerAID, *b.PlayerBID)); err != nil {
		return err
	}

	c.log.Info("battle resolved",
		zap.String("battle_id", battleID),
		zap.Int("votes_a", tally.A),
		zap.Int("votes_b", tally.B),
		zap.Stringp("winner_id", winnerID))
	c.broadcast(ctx, battleID)
	return nil
}

// View returns the denormalized battle projection. Generated responses are
// attached once voting has opened, so voters and spectators see them.
func (c *Coordinator) View(ctx context.Context, battleID string) (types.BattleView, error) {
	view, err := c.store.BattleView(ctx, battleID)
	if err != nil {
		return types.BattleView{}, err
	}
	if view.Status == string(battle.StatusVoting) || view.Status == string(battle.StatusFinished) {
		responses, err := c.store.ResponsesByBattle(ctx, battleID)
		if err != nil {
			return types.BattleView{}, err
		}
		view.Responses = responses
	}
	return view, nil
}

// broadcast re-fetches the projection right before publishing so observers
// never see a half-updated view. A failed fetch is logged and dropped;
// clients recover by querying the battle.
func (c *Coordinator) broadcast(ctx context.Context, battleID string) {
	view, err := c.View(ctx, battleID)
	if err != nil {
		c.log.Warn("skipping broadcast, view fetch failed",
			zap.String("battle_id", battleID),
			zap.Error(err))
		return
	}
	c.bus.Broadcast(battleID, view)
}
