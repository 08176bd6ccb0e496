package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/promptpit/promptpit-backend/internal/battle"
	"github.com/promptpit/promptpit-backend/pkg/types"
)

const (
	defaultCategoryName  = "General"
	defaultCategorySlug  = "general"
	defaultChallengeText = "Write a haiku about code"
	defaultChallengeDesc = "Make it poetic."
)

// Postgres implements Store over gorm. Every coordination-sensitive write is
// a single conditional statement; no multi-statement transactions are needed.
type Postgres struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects and migrates the schema.
func Open(dsn string, log *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&userModel{},
		&categoryModel{},
		&challengeModel{},
		&battleModel{},
		&submissionModel{},
		&responseModel{},
		&voteModel{},
	); err != nil {
		return nil, err
	}
	return NewPostgres(db, log), nil
}

func NewPostgres(db *gorm.DB, log *zap.Logger) *Postgres {
	if log == nil {
		log = zap.NewNop()
	}
	return &Postgres{db: db, log: log}
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) CreateUser(ctx context.Context, u battle.User) error {
	row := userModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Rating:       u.Rating,
		Wins:         u.Wins,
		Losses:       u.Losses,
		Ties:         u.Ties,
		CreatedAt:    u.CreatedAt,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (p *Postgres) UserByID(ctx context.Context, id string) (battle.User, error) {
	var row userModel
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return battle.User{}, ErrNotFound
		}
		return battle.User{}, err
	}
	return row.toEntity(), nil
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (battle.User, error) {
	var row userModel
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return battle.User{}, ErrNotFound
		}
		return battle.User{}, err
	}
	return row.toEntity(), nil
}

func (p *Postgres) ApplyResult(ctx context.Context, updates []battle.RatingUpdate) error {
	for _, u := range updates {
		result := p.db.WithContext(ctx).
			Model(&userModel{}).
			Where("id = ?", u.UserID).
			Updates(map[string]any{
				"wins":   gorm.Expr("wins + ?", u.Wins),
				"losses": gorm.Expr("losses + ?", u.Losses),
				"ties":   gorm.Expr("ties + ?", u.Ties),
				"rating": gorm.Expr("rating + ?", u.Rating),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (p *Postgres) RandomChallenge(ctx context.Context) (battle.Challenge, error) {
	var row challengeModel
	err := p.db.WithContext(ctx).Order("RANDOM()").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return battle.Challenge{}, ErrNotFound
		}
		return battle.Challenge{}, err
	}
	return row.toEntity(), nil
}

func (p *Postgres) SeedDefaultChallenge(ctx context.Context) (battle.Challenge, error) {
	cat := categoryModel{
		ID:        uuid.NewString(),
		Name:      defaultCategoryName,
		Slug:      defaultCategorySlug,
		CreatedAt: time.Now().UTC(),
	}
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
		Create(&cat).Error
	if err != nil {
		return battle.Challenge{}, err
	}
	// Re-read in case a concurrent seeder won the insert.
	var existing categoryModel
	if err := p.db.WithContext(ctx).Where("slug = ?", defaultCategorySlug).First(&existing).Error; err != nil {
		return battle.Challenge{}, err
	}

	ch := challengeModel{
		ID:          uuid.NewString(),
		CategoryID:  existing.ID,
		Title:       defaultChallengeText,
		Description: defaultChallengeDesc,
		Difficulty:  "easy",
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&ch).Error; err != nil {
		return battle.Challenge{}, err
	}
	p.log.Info("seeded default challenge", zap.String("challenge_id", ch.ID))
	return ch.toEntity(), nil
}

func (p *Postgres) CreateBattle(ctx context.Context, b battle.Battle) error {
	row := battleModelFromEntity(b)
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBattle
		}
		return err
	}
	return nil
}

func (p *Postgres) BattleByID(ctx context.Context, id string) (battle.Battle, error) {
	var row battleModel
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return battle.Battle{}, ErrNotFound
		}
		return battle.Battle{}, err
	}
	return row.toEntity(), nil
}

func (p *Postgres) OpenBattleExcluding(ctx context.Context, userID string) (battle.Battle, error) {
	var row battleModel
	err := p.db.WithContext(ctx).
		Where("status = ? AND player_a_id <> ?", string(battle.StatusWaiting), userID).
		Order("created_at ASC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return battle.Battle{}, ErrNotFound
		}
		return battle.Battle{}, err
	}
	return row.toEntity(), nil
}

func (p *Postgres) WaitingBattleOwnedBy(ctx context.Context, userID string) (battle.Battle, error) {
	var row battleModel
	err := p.db.WithContext(ctx).
		Where("status = ? AND player_a_id = ?", string(battle.StatusWaiting), userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return battle.Battle{}, ErrNotFound
		}
		return battle.Battle{}, err
	}
	return row.toEntity(), nil
}

func (p *Postgres) ClaimOpponentSlot(ctx context.Context, battleID, userID string) (bool, error) {
	result := p.db.WithContext(ctx).
		Model(&battleModel{}).
		Where("id = ? AND status = ?", battleID, string(battle.StatusWaiting)).
		Updates(map[string]any{
			"player_b_id": userID,
			"status":      string(battle.StatusInProgress),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (p *Postgres) MarkVoting(ctx context.Context, battleID string) (bool, error) {
	result := p.db.WithContext(ctx).
		Model(&battleModel{}).
		Where("id = ? AND status = ?", battleID, string(battle.StatusInProgress)).
		Update("status", string(battle.StatusVoting))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (p *Postgres) FinishBattle(ctx context.Context, battleID string, winnerID *string, finishedAt time.Time) (bool, error) {
	result := p.db.WithContext(ctx).
		Model(&battleModel{}).
		Where("id = ? AND status = ?", battleID, string(battle.StatusVoting)).
		Updates(map[string]any{
			"status":      string(battle.StatusFinished),
			"winner_id":   winnerID,
			"finished_at": finishedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (p *Postgres) ResetBattles(ctx context.Context) error {
	for _, model := range []any{&voteModel{}, &responseModel{}, &submissionModel{}, &battleModel{}} {
		if err := p.db.WithContext(ctx).Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreateSubmission(ctx context.Context, s battle.Submission) error {
	row := submissionModel{
		ID:         s.ID,
		BattleID:   s.BattleID,
		UserID:     s.UserID,
		PromptText: s.PromptText,
		CreatedAt:  s.CreatedAt,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSubmission
		}
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (p *Postgres) SubmissionsByBattle(ctx context.Context, battleID string) ([]battle.Submission, error) {
	var rows []submissionModel
	err := p.db.WithContext(ctx).
		Where("battle_id = ?", battleID).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]battle.Submission, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (p *Postgres) CreateResponse(ctx context.Context, r battle.Response) error {
	row := responseModel{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		ModelName:    r.ModelName,
		ResponseText: r.ResponseText,
		CreatedAt:    r.CreatedAt,
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

func (p *Postgres) ResponsesByBattle(ctx context.Context, battleID string) ([]types.ResponseView, error) {
	var rows []types.ResponseView
	err := p.db.WithContext(ctx).Raw(`
		SELECT s.user_id, r.model_name, r.response_text
		FROM llm_responses r
		JOIN prompt_submissions s ON r.prompt_submission_id = s.id
		WHERE s.battle_id = ?
		ORDER BY r.created_at ASC`, battleID).
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *Postgres) CreateVote(ctx context.Context, v battle.Vote) error {
	row := voteModel{
		ID:        v.ID,
		BattleID:  v.BattleID,
		VoterID:   v.VoterID,
		Choice:    string(v.Choice),
		CreatedAt: v.CreatedAt,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateVote
		}
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (p *Postgres) VotesByBattle(ctx context.Context, battleID string) ([]battle.Vote, error) {
	var rows []voteModel
	err := p.db.WithContext(ctx).
		Where("battle_id = ?", battleID).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]battle.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

type battleViewRow struct {
	ID              string     `gorm:"column:id"`
	ChallengeID     string     `gorm:"column:challenge_id"`
	Status          string     `gorm:"column:status"`
	PlayerAID       string     `gorm:"column:player_a_id"`
	PlayerBID       *string    `gorm:"column:player_b_id"`
	WinnerID        *string    `gorm:"column:winner_id"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	FinishedAt      *time.Time `gorm:"column:finished_at"`
	Title           string     `gorm:"column:title"`
	Description     string     `gorm:"column:description"`
	PlayerAUsername string     `gorm:"column:player_a_username"`
	PlayerBUsername *string    `gorm:"column:player_b_username"`
}

func (p *Postgres) BattleView(ctx context.Context, battleID string) (types.BattleView, error) {
	var row battleViewRow
	err := p.db.WithContext(ctx).Raw(`
		SELECT b.id, b.challenge_id, b.status, b.player_a_id, b.player_b_id,
		       b.winner_id, b.created_at, b.finished_at,
		       c.title, c.description,
		       u1.username AS player_a_username,
		       u2.username AS player_b_username
		FROM battles b
		LEFT JOIN challenges c ON b.challenge_id = c.id
		LEFT JOIN users u1 ON b.player_a_id = u1.id
		LEFT JOIN users u2 ON b.player_b_id = u2.id
		WHERE b.id = ?`, battleID).
		Scan(&row).
		Error
	if err != nil {
		return types.BattleView{}, err
	}
	if row.ID == "" {
		return types.BattleView{}, ErrNotFound
	}
	return types.BattleView{
		ID:              row.ID,
		ChallengeID:     row.ChallengeID,
		Status:          row.Status,
		PlayerAID:       row.PlayerAID,
		PlayerBID:       row.PlayerBID,
		WinnerID:        row.WinnerID,
		CreatedAt:       row.CreatedAt,
		FinishedAt:      row.FinishedAt,
		Title:           row.Title,
		Description:     row.Description,
		PlayerAUsername: row.PlayerAUsername,
		PlayerBUsername: row.PlayerBUsername,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
