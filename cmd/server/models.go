package main

import (
	"time"

	"github.com/icco/goban"
	"gorm.io/gorm"
)

// User represents a registered player. Users are created at signup and
// never deleted or updated.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Game represents one playthrough. The board, scores and turn columns
// hold whatever the client last sent; the server only enforces the
// lifecycle state machine around them.
type Game struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug          string         `gorm:"type:text;uniqueIndex" json:"slug"`
	UserID        int64          `gorm:"index;not null" json:"user_id"`
	BoardSize     int            `gorm:"not null;default:9" json:"board_size"`
	Board         goban.Snapshot `json:"board"`
	CurrentTurn   goban.Color    `gorm:"type:varchar(5);not null;default:'black'" json:"turn"`
	CapturedWhite int            `gorm:"not null;default:0" json:"captured_white"`
	CapturedBlack int            `gorm:"not null;default:0" json:"captured_black"`
	Scores        goban.Snapshot `json:"scores"`
	State         goban.State    `gorm:"type:varchar(10);not null;default:'ongoing';index" json:"state"`
	PlayerColor   goban.Color    `gorm:"type:varchar(5);not null;default:'black'" json:"player_color"`
	ComputerColor goban.Color    `gorm:"type:varchar(5);not null;default:'white'" json:"computer_color"`
	OpponentType  string         `gorm:"type:varchar(16);not null;default:'computer'" json:"opponent_type"`
	WonBy         *string        `gorm:"type:varchar(16)" json:"won_by"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	EndedAt       *time.Time     `json:"ended_at"`

	// Associations
	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Moves []Move `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE" json:"moves,omitempty"`
}

// Move is one ply in a game's append-only audit log. X and Y are nil
// for pass and resign entries. The capture counts and score snapshot
// are denormalized copies of the game state at the time of the move.
type Move struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID        int64          `gorm:"index;not null" json:"game_id"`
	Player        goban.Color    `gorm:"type:varchar(5);not null" json:"player"`
	X             *int           `json:"x"`
	Y             *int           `json:"y"`
	Kind          goban.MoveKind `gorm:"type:varchar(8);not null;default:'play'" json:"move_type"`
	CapturesWhite int            `gorm:"not null;default:0" json:"captures_white"`
	CapturesBlack int            `gorm:"not null;default:0" json:"captures_black"`
	Scores        goban.Snapshot `json:"scores"`
	CreatedAt     time.Time      `json:"created_at"`

	// Associations
	Game Game `gorm:"foreignKey:GameID" json:"-"`
}

// AutoMigrate runs the database migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Game{}, &Move{})
}
