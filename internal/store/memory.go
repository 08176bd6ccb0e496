package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptpit/promptpit-backend/internal/battle"
	"github.com/promptpit/promptpit-backend/pkg/types"
)

// Memory is a mutex-guarded Store for tests. It enforces the same uniqueness
// and conditional-update semantics as Postgres so coordinator tests exercise
// real race outcomes (claim lost, transition already done, duplicate vote).
type Memory struct {
	mu sync.Mutex

	users       map[string]battle.User
	categories  map[string]string // slug -> id
	challenges  map[string]battle.Challenge
	battles     map[string]battle.Battle
	submissions map[string]battle.Submission
	responses   map[string]battle.Response
	votes       map[string]battle.Vote
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]battle.User),
		categories:  make(map[string]string),
		challenges:  make(map[string]battle.Challenge),
		battles:     make(map[string]battle.Battle),
		submissions: make(map[string]battle.Submission),
		responses:   make(map[string]battle.Response),
		votes:       make(map[string]battle.Vote),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) CreateUser(_ context.Context, u battle.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrDuplicateUser
		}
	}
	if _, ok := m.users[u.ID]; ok {
		return ErrDuplicateUser
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) UserByID(_ context.Context, id string) (battle.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return battle.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (battle.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return battle.User{}, ErrNotFound
}

func (m *Memory) ApplyResult(_ context.Context, updates []battle.RatingUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, upd := range updates {
		u, ok := m.users[upd.UserID]
		if !ok {
			return ErrNotFound
		}
		u.Wins += upd.Wins
		u.Losses += upd.Losses
		u.Ties += upd.Ties
		u.Rating += upd.Rating
		m.users[upd.UserID] = u
	}
	return nil
}

func (m *Memory) RandomChallenge(_ context.Context) (battle.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.challenges {
		return ch, nil
	}
	return battle.Challenge{}, ErrNotFound
}

func (m *Memory) SeedDefaultChallenge(_ context.Context) (battle.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	catID, ok := m.categories[defaultCategorySlug]
	if !ok {
		catID = uuid.NewString()
		m.categories[defaultCategorySlug] = catID
	}
	ch := battle.Challenge{
		ID:          uuid.NewString(),
		CategoryID:  catID,
		Title:       defaultChallengeText,
		Description: defaultChallengeDesc,
		Difficulty:  "easy",
		CreatedAt:   time.Now().UTC(),
	}
	m.challenges[ch.ID] = ch
	return ch, nil
}

func (m *Memory) CreateBattle(_ context.Context, b battle.Battle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.battles[b.ID]; ok {
		return ErrDuplicateBattle
	}
	m.battles[b.ID] = b
	return nil
}

func (m *Memory) BattleByID(_ context.Context, id string) (battle.Battle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.battles[id]
	if !ok {
		return battle.Battle{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) OpenBattleExcluding(_ context.Context, userID string) (battle.Battle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *battle.Battle
	for _, b := range m.battles {
		if b.Status != battle.StatusWaiting || b.PlayerAID == userID {
			continue
		}
		if found == nil || b.CreatedAt.Before(found.CreatedAt) {
			cand := b
			found = &cand
		}
	}
	if found == nil {
		return battle.Battle{}, ErrNotFound
	}
	return *found, nil
}

func (m *Memory) WaitingBattleOwnedBy(_ context.Context, userID string) (battle.Battle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.battles {
		if b.Status == battle.StatusWaiting && b.PlayerAID == userID {
			return b, nil
		}
	}
	return battle.Battle{}, ErrNotFound
}

// transition applies mutate under the same rule the SQL conditional updates
// encode: a single forward status step, or a no-op reported to the caller.
func (m *Memory) transition(battleID string, to battle.Status, mutate func(*battle.Battle)) bool {
	b, ok := m.battles[battleID]
	if !ok || !battle.ValidTransition(b.Status, to) {
		return false
	}
	b.Status = to
	mutate(&b)
	m.battles[battleID] = b
	return true
}

func (m *Memory) ClaimOpponentSlot(_ context.Context, battleID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	won := m.transition(battleID, battle.StatusInProgress, func(b *battle.Battle) {
		b.PlayerBID = &userID
	})
	return won, nil
}

func (m *Memory) MarkVoting(_ context.Context, battleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	won := m.transition(battleID, battle.StatusVoting, func(*battle.Battle) {})
	return won, nil
}

func (m *Memory) FinishBattle(_ context.Context, battleID string, winnerID *string, finishedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	won := m.transition(battleID, battle.StatusFinished, func(b *battle.Battle) {
		b.WinnerID = winnerID
		b.FinishedAt = &finishedAt
	})
	return won, nil
}

func (m *Memory) ResetBattles(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.votes)
	clear(m.responses)
	clear(m.submissions)
	clear(m.battles)
	return nil
}

func (m *Memory) CreateSubmission(_ context.Context, s battle.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.battles[s.BattleID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.submissions {
		if existing.BattleID == s.BattleID && existing.UserID == s.UserID {
			return ErrDuplicateSubmission
		}
	}
	m.submissions[s.ID] = s
	return nil
}

func (m *Memory) SubmissionsByBattle(_ context.Context, battleID string) ([]battle.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []battle.Submission
	for _, s := range m.submissions {
		if s.BattleID == battleID {
			items = append(items, s)
		}
	}
	sortByCreatedAt(items, func(s battle.Submission) time.Time { return s.CreatedAt })
	return items, nil
}

func (m *Memory) CreateResponse(_ context.Context, r battle.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[r.ID] = r
	return nil
}

func (m *Memory) ResponsesByBattle(_ context.Context, battleID string) ([]types.ResponseView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []types.ResponseView
	var resps []battle.Response
	for _, r := range m.responses {
		resps = append(resps, r)
	}
	sortByCreatedAt(resps, func(r battle.Response) time.Time { return r.CreatedAt })
	for _, r := range resps {
		s, ok := m.submissions[r.SubmissionID]
		if !ok || s.BattleID != battleID {
			continue
		}
		items = append(items, types.ResponseView{
			UserID:       s.UserID,
			ModelName:    r.ModelName,
			ResponseText: r.ResponseText,
		})
	}
	return items, nil
}

func (m *Memory) CreateVote(_ context.Context, v battle.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.battles[v.BattleID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.votes {
		if existing.BattleID == v.BattleID && existing.VoterID == v.VoterID {
			return ErrDuplicateVote
		}
	}
	m.votes[v.ID] = v
	return nil
}

func (m *Memory) VotesByBattle(_ context.Context, battleID string) ([]battle.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []battle.Vote
	for _, v := range m.votes {
		if v.BattleID == battleID {
			items = append(items, v)
		}
	}
	sortByCreatedAt(items, func(v battle.Vote) time.Time { return v.CreatedAt })
	return items, nil
}

func (m *Memory) BattleView(_ context.Context, battleID string) (types.BattleView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.battles[battleID]
	if !ok {
		return types.BattleView{}, ErrNotFound
	}
	view := types.BattleView{
		ID:          b.ID,
		ChallengeID: b.ChallengeID,
		Status:      string(b.Status),
		PlayerAID:   b.PlayerAID,
		PlayerBID:   b.PlayerBID,
		WinnerID:    b.WinnerID,
		CreatedAt:   b.CreatedAt,
		FinishedAt:  b.FinishedAt,
	}
	if ch, ok := m.challenges[b.ChallengeID]; ok {
		view.Title = ch.Title
		view.Description = ch.Description
	}
	if u, ok := m.users[b.PlayerAID]; ok {
		view.PlayerAUsername = u.Username
	}
	if b.PlayerBID != nil {
		if u, ok := m.users[*b.PlayerBID]; ok {
			name := u.Username
			view.PlayerBUsername = &name
		}
	}
	return view, nil
}

func sortByCreatedAt[T any](items []T, at func(T) time.Time) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && at(items[j]).Before(at(items[j-1])); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
