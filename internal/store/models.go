package store

import (
	"time"

	"github.com/promptpit/promptpit-backend/internal/battle"
)

type userModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Username     string    `gorm:"column:username;uniqueIndex"`
	Email        string    `gorm:"column:email;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash"`
	Rating       int       `gorm:"column:rating;default:1000"`
	Wins         int       `gorm:"column:wins;default:0"`
	Losses       int       `gorm:"column:losses;default:0"`
	Ties         int       `gorm:"column:ties;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (userModel) TableName() string { return "users" }

func (m userModel) toEntity() battle.User {
	return battle.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Rating:       m.Rating,
		Wins:         m.Wins,
		Losses:       m.Losses,
		Ties:         m.Ties,
		CreatedAt:    m.CreatedAt,
	}
}

type categoryModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	Slug      string    `gorm:"column:slug;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (categoryModel) TableName() string { return "categories" }

type challengeModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	CategoryID  string    `gorm:"column:category_id;index"`
	Title       string    `gorm:"column:title"`
	Description string    `gorm:"column:description"`
	Difficulty  string    `gorm:"column:difficulty"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (challengeModel) TableName() string { return "challenges" }

func (m challengeModel) toEntity() battle.Challenge {
	return battle.Challenge{
		ID:          m.ID,
		CategoryID:  m.CategoryID,
		Title:       m.Title,
		Description: m.Description,
		Difficulty:  m.Difficulty,
		CreatedAt:   m.CreatedAt,
	}
}

type battleModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	ChallengeID string     `gorm:"column:challenge_id;index"`
	Status      string     `gorm:"column:status;index"`
	PlayerAID   string     `gorm:"column:player_a_id;index"`
	PlayerBID   *string    `gorm:"column:player_b_id"`
	WinnerID    *string    `gorm:"column:winner_id"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	FinishedAt  *time.Time `gorm:"column:finished_at"`
}

func (battleModel) TableName() string { return "battles" }

func (m battleModel) toEntity() battle.Battle {
	return battle.Battle{
		ID:          m.ID,
		ChallengeID: m.ChallengeID,
		Status:      battle.Status(m.Status),
		PlayerAID:   m.PlayerAID,
		PlayerBID:   m.PlayerBID,
		WinnerID:    m.WinnerID,
		CreatedAt:   m.CreatedAt,
		FinishedAt:  m.FinishedAt,
	}
}

func battleModelFromEntity(b battle.Battle) battleModel {
	return battleModel{
		ID:          b.ID,
		ChallengeID: b.ChallengeID,
		Status:      string(b.Status),
		PlayerAID:   b.PlayerAID,
		PlayerBID:   b.PlayerBID,
		WinnerID:    b.WinnerID,
		CreatedAt:   b.CreatedAt,
		FinishedAt:  b.FinishedAt,
	}
}

// The composite unique index is the double-submission guard; inserts racing
// for the same (battle, user) pair lose with a 23505. The battle association
// makes the migrator emit a REFERENCES constraint, so inserting against an
// unknown battle id fails with a 23503 instead of creating an orphan row.
type submissionModel struct {
	ID         string      `gorm:"column:id;primaryKey"`
	BattleID   string      `gorm:"column:battle_id;uniqueIndex:idx_submission_battle_user"`
	UserID     string      `gorm:"column:user_id;uniqueIndex:idx_submission_battle_user"`
	PromptText string      `gorm:"column:prompt_text"`
	CreatedAt  time.Time   `gorm:"column:created_at"`
	Battle     battleModel `gorm:"foreignKey:BattleID;references:ID;constraint:OnDelete:CASCADE"`
}

func (submissionModel) TableName() string { return "prompt_submissions" }

func (m submissionModel) toEntity() battle.Submission {
	return battle.Submission{
		ID:         m.ID,
		BattleID:   m.BattleID,
		UserID:     m.UserID,
		PromptText: m.PromptText,
		CreatedAt:  m.CreatedAt,
	}
}

type responseModel struct {
	ID           string          `gorm:"column:id;primaryKey"`
	SubmissionID string          `gorm:"column:prompt_submission_id;index"`
	ModelName    string          `gorm:"column:model_name"`
	ResponseText string          `gorm:"column:response_text"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
	Submission   submissionModel `gorm:"foreignKey:SubmissionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (responseModel) TableName() string { return "llm_responses" }

// Same pattern as submissions: the unique index is the double-vote guard and
// the battle association gives the migrator the REFERENCES constraint.
type voteModel struct {
	ID        string      `gorm:"column:id;primaryKey"`
	BattleID  string      `gorm:"column:battle_id;uniqueIndex:idx_vote_battle_voter"`
	VoterID   string      `gorm:"column:voter_id;uniqueIndex:idx_vote_battle_voter"`
	Choice    string      `gorm:"column:choice"`
	CreatedAt time.Time   `gorm:"column:created_at"`
	Battle    battleModel `gorm:"foreignKey:BattleID;references:ID;constraint:OnDelete:CASCADE"`
}

func (voteModel) TableName() string { return "votes" }

func (m voteModel) toEntity() battle.Vote {
	return battle.Vote{
		ID:        m.ID,
		BattleID:  m.BattleID,
		VoterID:   m.VoterID,
		Choice:    battle.Choice(m.Choice),
		CreatedAt: m.CreatedAt,
	}
}
