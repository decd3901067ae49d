package main

import (
	"net/http"
	"time"

	"github.com/icco/goban"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a bare confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Healthy  string `json:"healthy"`
	Revision string `json:"revision"`
	Tag      string `json:"tag"`
	Branch   string `json:"branch"`
}

// PublicUser is the safe serializable view of a User. The password
// hash never appears in a response.
type PublicUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func publicUser(u *User) PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

// SignupResponse confirms a registration.
type SignupResponse struct {
	Message string     `json:"message"`
	User    PublicUser `json:"user"`
}

// AuthResponse carries a fresh bearer token.
type AuthResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        PublicUser `json:"user"`
}

// NewGameResponse identifies a freshly created session.
type NewGameResponse struct {
	ID            int64       `json:"id"`
	Slug          string      `json:"slug"`
	PlayerColor   goban.Color `json:"playerColor"`
	ComputerColor goban.Color `json:"computerColor"`
}

// MoveView is one audit-log entry as returned to the client.
type MoveView struct {
	ID            int64          `json:"id"`
	Player        goban.Color    `json:"player"`
	X             *int           `json:"x"`
	Y             *int           `json:"y"`
	MoveType      goban.MoveKind `json:"move_type"`
	CapturesBlack int            `json:"captures_black"`
	CapturesWhite int            `json:"captures_white"`
	Scores        goban.Snapshot `json:"scores"`
	CreatedAt     time.Time      `json:"created_at"`
}

func moveView(m Move) MoveView {
	return MoveView{
		ID:            m.ID,
		Player:        m.Player,
		X:             m.X,
		Y:             m.Y,
		MoveType:      m.Kind,
		CapturesBlack: m.CapturesBlack,
		CapturesWhite: m.CapturesWhite,
		Scores:        m.Scores,
		CreatedAt:     m.CreatedAt,
	}
}

func moveViews(moves []Move) []MoveView {
	views := make([]MoveView, len(moves))
	for i, m := range moves {
		views[i] = moveView(m)
	}
	return views
}

// ActiveGameResponse is the full view of the caller's active session.
type ActiveGameResponse struct {
	ID            int64          `json:"id"`
	Slug          string         `json:"slug"`
	Board         goban.Snapshot `json:"board"`
	Turn          goban.Color    `json:"turn"`
	Scores        goban.Snapshot `json:"scores"`
	CapturedWhite int            `json:"captured_white"`
	CapturedBlack int            `json:"captured_black"`
	BoardSize     int            `json:"board_size"`
	State         goban.State    `json:"state"`
	History       []MoveView     `json:"history"`
	PlayerColor   goban.Color    `json:"playerColor"`
	ComputerColor goban.Color    `json:"computerColor"`
}

// MoveResponse echoes the stored snapshot after a move.
type MoveResponse struct {
	Board         goban.Snapshot `json:"board"`
	Turn          goban.Color    `json:"turn"`
	Scores        goban.Snapshot `json:"scores"`
	CapturedWhite int            `json:"captured_white"`
	CapturedBlack int            `json:"captured_black"`
	State         goban.State    `json:"state"`
}

// PassResponse echoes the stored snapshot after a pass.
type PassResponse struct {
	Board         goban.Snapshot `json:"board"`
	Turn          goban.Color    `json:"turn"`
	Scores        goban.Snapshot `json:"scores"`
	CapturedWhite int            `json:"captured_white"`
	CapturedBlack int            `json:"captured_black"`
	State         goban.State    `json:"state"`
	GameOver      bool           `json:"game_over"`
}

// PauseResponse confirms a pause.
type PauseResponse struct {
	Message string      `json:"message"`
	ID      int64       `json:"id"`
	State   goban.State `json:"state"`
}

// GameSummary is one row of the session history listing.
type GameSummary struct {
	ID            int64          `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	EndedAt       *time.Time     `json:"ended_at"`
	WonBy         *string        `json:"won_by"`
	Scores        goban.Snapshot `json:"scores"`
	CapturedWhite int            `json:"captured_white"`
	CapturedBlack int            `json:"captured_black"`
	BoardSize     int            `json:"board_size"`
	State         goban.State    `json:"state"`
}

// GameMovesResponse is the full move log of one session.
type GameMovesResponse struct {
	GameID int64       `json:"game_id"`
	State  goban.State `json:"state"`
	Moves  []MoveView  `json:"moves"`
}

// renderJSON writes v through the shared Renderer and logs the rare
// render failure instead of repeating the check at every call site.
func renderJSON(w http.ResponseWriter, code int, v any) {
	if err := Renderer.JSON(w, code, v); err != nil {
		log.Errorw("failed to render JSON", zap.Error(err))
	}
}
