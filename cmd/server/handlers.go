package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/icco/goban"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// apiServer owns the shared collaborators the handlers need. Built once
// in main; nothing here is a process-wide global.
type apiServer struct {
	db   *gorm.DB
	auth *authService
}

// renderLifecycleError maps lifecycle errors onto the HTTP surface.
// Anything unexpected is logged in full and reported generically.
func renderLifecycleError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, goban.ErrNotFound):
		renderJSON(w, http.StatusNotFound, ErrorResponse{Error: notFoundMsg})
	case errors.Is(err, goban.ErrValidation):
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, goban.ErrConflict):
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		log.Errorw("lifecycle operation failed", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// decodeBody decodes an optional JSON body. A missing body leaves the
// request struct zeroed so field defaults apply.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type NewGameRequest struct {
	Board         goban.Snapshot `json:"board"`
	Turn          *goban.Color   `json:"turn"`
	Scores        goban.Snapshot `json:"scores"`
	CapturedWhite *int           `json:"captured_white"`
	CapturedBlack *int           `json:"captured_black"`
	BoardSize     *int           `json:"board_size" example:"9"`
	PlayerColor   *goban.Color   `json:"player_color" example:"black"`
	ComputerColor *goban.Color   `json:"computer_color" example:"white"`
}

// @Summary Start a new game
// @Description Creates a new session; any prior active session is abandoned
// @Tags game
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param game body NewGameRequest false "Session configuration"
// @Success 201 {object} NewGameResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /game/new [post]
func (s *apiServer) newGameHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)

	var req NewGameRequest
	if err := decodeBody(r, &req); err != nil {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	p := newGameParams{
		Board:         goban.Snapshot{},
		Turn:          goban.ColorBlack,
		Scores:        goban.DefaultScores(),
		BoardSize:     9,
		PlayerColor:   goban.ColorBlack,
		ComputerColor: goban.ColorWhite,
	}

	if req.Board != nil {
		p.Board = req.Board
	}
	if req.Turn != nil {
		if !req.Turn.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid turn color"})
			return
		}
		p.Turn = *req.Turn
	}
	if req.Scores != nil {
		p.Scores = req.Scores
	}
	if req.CapturedWhite != nil {
		p.CapturedWhite = *req.CapturedWhite
	}
	if req.CapturedBlack != nil {
		p.CapturedBlack = *req.CapturedBlack
	}
	if req.BoardSize != nil && *req.BoardSize > 0 {
		p.BoardSize = *req.BoardSize
	}
	if req.PlayerColor != nil {
		if !req.PlayerColor.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid player color"})
			return
		}
		p.PlayerColor = *req.PlayerColor
		p.ComputerColor = p.PlayerColor.Other()
	}
	if req.ComputerColor != nil {
		if !req.ComputerColor.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid computer color"})
			return
		}
		p.ComputerColor = *req.ComputerColor
	}

	game, err := startGame(s.db, user.ID, p)
	if err != nil {
		log.Errorw("could not create game", "user_id", user.ID, zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	log.Infow("game started", "game_id", game.ID, "user_id", user.ID)
	renderJSON(w, http.StatusCreated, NewGameResponse{
		ID:            game.ID,
		Slug:          game.Slug,
		PlayerColor:   game.PlayerColor,
		ComputerColor: game.ComputerColor,
	})
}

// @Summary Get the active game
// @Description Returns the caller's ongoing or paused session with its move log
// @Tags game
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ActiveGameResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /game/active [get]
func (s *apiServer) activeGameHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)

	game, err := findActiveGame(s.db, user.ID)
	if err != nil {
		renderLifecycleError(w, err, "no active game")
		return
	}

	moves, err := movesForGame(s.db, game.ID)
	if err != nil {
		renderLifecycleError(w, err, "no active game")
		return
	}

	renderJSON(w, http.StatusOK, ActiveGameResponse{
		ID:            game.ID,
		Slug:          game.Slug,
		Board:         game.Board,
		Turn:          game.CurrentTurn,
		Scores:        game.Scores,
		CapturedWhite: game.CapturedWhite,
		CapturedBlack: game.CapturedBlack,
		BoardSize:     game.BoardSize,
		State:         game.State,
		History:       moveViews(moves),
		PlayerColor:   game.PlayerColor,
		ComputerColor: game.ComputerColor,
	})
}

type MoveRequest struct {
	Color         *goban.Color   `json:"color" example:"black"`
	X             *int           `json:"x" example:"3"`
	Y             *int           `json:"y" example:"4"`
	Board         goban.Snapshot `json:"board"`
	Turn          *goban.Color   `json:"turn"`
	Scores        goban.Snapshot `json:"scores"`
	CapturedWhite *int           `json:"captured_white"`
	CapturedBlack *int           `json:"captured_black"`
}

// @Summary Record a move
// @Description Appends a play to the audit log and stores the supplied snapshot verbatim
// @Tags game
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param move body MoveRequest true "Move details"
// @Success 200 {object} MoveResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /game/move [post]
func (s *apiServer) moveHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.X == nil || req.Y == nil {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "x and y are required"})
		return
	}

	p := moveParams{
		X:             req.X,
		Y:             req.Y,
		Board:         req.Board,
		Scores:        req.Scores,
		CapturedWhite: req.CapturedWhite,
		CapturedBlack: req.CapturedBlack,
	}
	if req.Color != nil {
		if !req.Color.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid color"})
			return
		}
		p.Color = *req.Color
	}
	if req.Turn != nil {
		if !req.Turn.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid turn color"})
			return
		}
		p.Turn = req.Turn
	}

	game, err := recordMove(s.db, user.ID, p)
	if err != nil {
		renderLifecycleError(w, err, "no active game")
		return
	}

	renderJSON(w, http.StatusOK, MoveResponse{
		Board:         game.Board,
		Turn:          game.CurrentTurn,
		Scores:        game.Scores,
		CapturedWhite: game.CapturedWhite,
		CapturedBlack: game.CapturedBlack,
		State:         game.State,
	})
}

type PassRequest struct {
	Board goban.Snapshot `json:"board"`
	Turn  *goban.Color   `json:"turn"`
	State *goban.State   `json:"state"`
	Color *goban.Color   `json:"color"`
}

// @Summary Record a pass
// @Description Appends a pass; the resulting state is trusted from the client
// @Tags game
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pass body PassRequest false "Pass details"
// @Success 200 {object} PassResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /game/pass [post]
func (s *apiServer) passHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)

	var req PassRequest
	if err := decodeBody(r, &req); err != nil {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	p := passParams{Board: req.Board}
	if req.Turn != nil {
		if !req.Turn.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid turn color"})
			return
		}
		p.Turn = req.Turn
	}
	if req.State != nil {
		if !req.State.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid state"})
			return
		}
		p.State = req.State
	}
	if req.Color != nil {
		if !req.Color.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid color"})
			return
		}
		p.Color = *req.Color
	}

	game, err := recordPass(s.db, user.ID, p)
	if err != nil {
		renderLifecycleError(w, err, "no active game")
		return
	}

	renderJSON(w, http.StatusOK, PassResponse{
		Board:         game.Board,
		Turn:          game.CurrentTurn,
		Scores:        game.Scores,
		CapturedWhite: game.CapturedWhite,
		CapturedBlack: game.CapturedBlack,
		State:         game.State,
		GameOver:      game.State.IsTerminal(),
	})
}

type PauseRequest struct {
	Board         goban.Snapshot `json:"board"`
	Turn          *goban.Color   `json:"turn"`
	Scores        goban.Snapshot `json:"scores"`
	CapturedWhite *int           `json:"captured_white"`
	CapturedBlack *int           `json:"captured_black"`
}

// @Summary Pause the active game
// @Description Persists the latest snapshot and marks the session paused
// @Tags game
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pause body PauseRequest false "Latest snapshot"
// @Success 200 {object} PauseResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /game/pause [post]
func (s *apiServer) pauseHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)

	var req PauseRequest
	if err := decodeBody(r, &req); err != nil {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	p := snapshotParams{
		Board:         req.Board,
		Scores:        req.Scores,
		CapturedWhite: req.CapturedWhite,
		CapturedBlack: req.CapturedBlack,
	}
	if req.Turn != nil {
		if !req.Turn.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid turn color"})
			return
		}
		p.Turn = req.Turn
	}

	game, err := pauseGame(s.db, user.ID, p)
	if err != nil {
		renderLifecycleError(w, err, "no active game")
		return
	}

	renderJSON(w, http.StatusOK, PauseResponse{
		Message: "game paused",
		ID:      game.ID,
		State:   game.State,
	})
}

type FinishRequest struct {
	Scores goban.Snapshot `json:"scores"`
	WonBy  *string        `json:"won_by"`
	Resign *goban.Color   `json:"resign"`
}

// @Summary Finish the active game
// @Description Ends the session with the caller-supplied result
// @Tags game
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param finish body FinishRequest false "Final result"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /game/finish [post]
func (s *apiServer) finishHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)

	var req FinishRequest
	if err := decodeBody(r, &req); err != nil {
		renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	p := finishParams{
		Scores: req.Scores,
		WonBy:  req.WonBy,
	}
	if req.Resign != nil {
		if !req.Resign.Valid() {
			renderJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid resign color"})
			return
		}
		p.Resign = *req.Resign
	}

	game, err := finishGame(s.db, user.ID, p)
	if err != nil {
		renderLifecycleError(w, err, "no active game")
		return
	}

	log.Infow("game finished", "game_id", game.ID, "user_id", user.ID)
	renderJSON(w, http.StatusOK, MessageResponse{Message: "game finished"})
}

// @Summary List session history
// @Description Returns all of the caller's sessions, newest first
// @Tags game
// @Produce json
// @Security BearerAuth
// @Success 200 {array} GameSummary
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /game/history [get]
func (s *apiServer) historyHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)

	games, err := listGames(s.db, user.ID)
	if err != nil {
		log.Errorw("could not list games", "user_id", user.ID, zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	summaries := make([]GameSummary, len(games))
	for i, g := range games {
		summaries[i] = GameSummary{
			ID:            g.ID,
			CreatedAt:     g.CreatedAt,
			EndedAt:       g.EndedAt,
			WonBy:         g.WonBy,
			Scores:        g.Scores,
			CapturedWhite: g.CapturedWhite,
			CapturedBlack: g.CapturedBlack,
			BoardSize:     g.BoardSize,
			State:         g.State,
		}
	}

	renderJSON(w, http.StatusOK, summaries)
}

// @Summary Get the move log of one session
// @Description Returns the ordered audit log of a session the caller owns
// @Tags game
// @Produce json
// @Security BearerAuth
// @Param id path int true "Game id"
// @Success 200 {object} GameMovesResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /game/history/{id} [get]
func (s *apiServer) gameMovesHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)

	idStr := ugcPolicy.Sanitize(chi.URLParamFromCtx(r.Context(), "id"))
	gameID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		renderJSON(w, http.StatusNotFound, ErrorResponse{Error: "game not found"})
		return
	}

	game, moves, err := getGameMoves(s.db, user.ID, gameID)
	if err != nil {
		renderLifecycleError(w, err, "game not found")
		return
	}

	renderJSON(w, http.StatusOK, GameMovesResponse{
		GameID: game.ID,
		State:  game.State,
		Moves:  moveViews(moves),
	})
}
