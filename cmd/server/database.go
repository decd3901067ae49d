package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/icco/goban"
	"github.com/ifo/sanic"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

func getDB() (*gorm.DB, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	gl := zapgorm2.New(log.Desugar())
	gl.LogLevel = gormlogger.Warn
	gl.SetAsDefault()

	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{
		Logger:         gl,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to run auto-migration: %v", err)
	}

	return db, nil
}

// lockedForUpdate adds a row lock on dialects that support it. The
// sqlite driver used in tests has no FOR UPDATE; its writes serialize
// on the database handle instead.
func lockedForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// findActiveGame returns the user's unique ongoing or paused session.
// If duplicate active rows exist the most recently created one wins and
// the violation is logged rather than treated as fatal.
func findActiveGame(tx *gorm.DB, userID int64) (*Game, error) {
	var games []Game
	if err := tx.Where("user_id = ? AND state IN ?", userID, goban.ActiveStates()).
		Order("created_at DESC, id DESC").
		Find(&games).Error; err != nil {
		return nil, err
	}

	if len(games) == 0 {
		return nil, goban.ErrNotFound
	}
	if len(games) > 1 {
		log.Warnw("data integrity: user has multiple active games",
			"user_id", userID, "count", len(games))
	}
	return &games[0], nil
}

// newGameParams are the session settings for startGame, with API-level
// defaults already applied.
type newGameParams struct {
	Board         goban.Snapshot
	Turn          goban.Color
	Scores        goban.Snapshot
	CapturedWhite int
	CapturedBlack int
	BoardSize     int
	PlayerColor   goban.Color
	ComputerColor goban.Color
}

// slugWorker is shared so back-to-back games in the same second still
// get distinct slugs.
var slugWorker = sanic.NewWorker7()

// startGame creates a new ongoing session. Any existing active session
// for the user is abandoned in the same transaction; starting a new
// game always supersedes the prior one.
func startGame(db *gorm.DB, userID int64, p newGameParams) (*Game, error) {
	slug := slugWorker.IDString(slugWorker.NextID())

	game := &Game{
		Slug:          slug,
		UserID:        userID,
		BoardSize:     p.BoardSize,
		Board:         p.Board,
		CurrentTurn:   p.Turn,
		CapturedWhite: p.CapturedWhite,
		CapturedBlack: p.CapturedBlack,
		Scores:        p.Scores,
		State:         goban.StateOngoing,
		PlayerColor:   p.PlayerColor,
		ComputerColor: p.ComputerColor,
		OpponentType:  "computer",
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := lockedForUpdate(tx).Model(&Game{}).
			Where("user_id = ? AND state IN ?", userID, goban.ActiveStates()).
			Updates(map[string]any{
				"state":    goban.StateAbandoned,
				"ended_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 1 {
			log.Warnw("data integrity: abandoned multiple active games",
				"user_id", userID, "count", res.RowsAffected)
		}

		return tx.Create(game).Error
	})
	if err != nil {
		return nil, err
	}

	return game, nil
}

// applySnapshot overwrites the client-owned columns that were present
// in the request, leaving omitted ones untouched.
func applySnapshot(g *Game, board, scores goban.Snapshot, capturedWhite, capturedBlack *int) {
	if board != nil {
		g.Board = board
	}
	if scores != nil {
		g.Scores = scores
	}
	if capturedWhite != nil {
		g.CapturedWhite = *capturedWhite
	}
	if capturedBlack != nil {
		g.CapturedBlack = *capturedBlack
	}
}

// moveParams is one stone placement. Pointer fields are nil when the
// request omitted them.
type moveParams struct {
	Color         goban.Color
	X             *int
	Y             *int
	Board         goban.Snapshot
	Turn          *goban.Color
	Scores        goban.Snapshot
	CapturedWhite *int
	CapturedBlack *int
}

// recordMove appends a play entry to the audit log and overwrites the
// game snapshot with whatever the client sent. The server does not
// validate move legality.
func recordMove(db *gorm.DB, userID int64, p moveParams) (*Game, error) {
	var game *Game
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = findActiveGame(lockedForUpdate(tx), userID)
		if err != nil {
			return err
		}

		color := p.Color
		if color == "" {
			color = game.CurrentTurn
		}

		applySnapshot(game, p.Board, p.Scores, p.CapturedWhite, p.CapturedBlack)
		if p.Turn != nil {
			game.CurrentTurn = *p.Turn
		} else {
			game.CurrentTurn = color.Other()
		}
		game.State = goban.StateOngoing

		move := Move{
			GameID:        game.ID,
			Player:        color,
			X:             p.X,
			Y:             p.Y,
			Kind:          goban.MovePlay,
			CapturesWhite: game.CapturedWhite,
			CapturesBlack: game.CapturedBlack,
			Scores:        game.Scores,
		}
		if err := tx.Create(&move).Error; err != nil {
			return err
		}

		return tx.Save(game).Error
	})
	if err != nil {
		return nil, err
	}

	return game, nil
}

// passParams is one pass. State is caller-supplied when the client's
// pass counting decides the game is over.
type passParams struct {
	Board goban.Snapshot
	Turn  *goban.Color
	State *goban.State
	Color goban.Color
}

// recordPass appends a pass entry. The turn and resulting state are
// whatever the client supplies; the server trusts its end-of-game
// detection.
func recordPass(db *gorm.DB, userID int64, p passParams) (*Game, error) {
	var game *Game
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = findActiveGame(lockedForUpdate(tx), userID)
		if err != nil {
			return err
		}

		color := p.Color
		if color == "" {
			color = game.CurrentTurn
		}

		if p.Board != nil {
			game.Board = p.Board
		}
		if p.Turn != nil {
			game.CurrentTurn = *p.Turn
		} else {
			game.CurrentTurn = color.Other()
		}
		if p.State != nil {
			game.State = *p.State
		} else {
			game.State = goban.StateOngoing
		}
		if game.State.IsTerminal() && game.EndedAt == nil {
			now := time.Now()
			game.EndedAt = &now
		}

		move := Move{
			GameID:        game.ID,
			Player:        color,
			Kind:          goban.MovePass,
			CapturesWhite: game.CapturedWhite,
			CapturesBlack: game.CapturedBlack,
			Scores:        game.Scores,
		}
		if err := tx.Create(&move).Error; err != nil {
			return err
		}

		return tx.Save(game).Error
	})
	if err != nil {
		return nil, err
	}

	return game, nil
}

// snapshotParams carries the latest client state for pauseGame.
type snapshotParams struct {
	Board         goban.Snapshot
	Turn          *goban.Color
	Scores        goban.Snapshot
	CapturedWhite *int
	CapturedBlack *int
}

// pauseGame persists the latest snapshot and parks the session in the
// paused state. Paused games still count as the user's active session.
func pauseGame(db *gorm.DB, userID int64, p snapshotParams) (*Game, error) {
	var game *Game
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = findActiveGame(lockedForUpdate(tx), userID)
		if err != nil {
			return err
		}

		applySnapshot(game, p.Board, p.Scores, p.CapturedWhite, p.CapturedBlack)
		if p.Turn != nil {
			game.CurrentTurn = *p.Turn
		}
		game.State = goban.StatePaused

		return tx.Save(game).Error
	})
	if err != nil {
		return nil, err
	}

	return game, nil
}

// finishParams ends a session. Resign is empty unless a player
// resigned, in which case a resign move is logged for that color.
type finishParams struct {
	Scores goban.Snapshot
	WonBy  *string
	Resign goban.Color
}

// finishGame terminates the active session with the caller-supplied
// result. A second finish finds no active session and returns
// goban.ErrNotFound, which keeps ended_at stable.
func finishGame(db *gorm.DB, userID int64, p finishParams) (*Game, error) {
	var game *Game
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = findActiveGame(lockedForUpdate(tx), userID)
		if err != nil {
			return err
		}

		if p.Scores != nil {
			game.Scores = p.Scores
		}
		if p.WonBy != nil {
			game.WonBy = p.WonBy
		}

		if p.Resign != "" {
			if game.WonBy == nil {
				winner := string(p.Resign.Other())
				game.WonBy = &winner
			}
			move := Move{
				GameID:        game.ID,
				Player:        p.Resign,
				Kind:          goban.MoveResign,
				CapturesWhite: game.CapturedWhite,
				CapturesBlack: game.CapturedBlack,
				Scores:        game.Scores,
			}
			if err := tx.Create(&move).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		game.State = goban.StateFinished
		game.EndedAt = &now

		return tx.Save(game).Error
	})
	if err != nil {
		return nil, err
	}

	return game, nil
}

// listGames returns all of the user's sessions, newest first.
func listGames(db *gorm.DB, userID int64) ([]Game, error) {
	var games []Game
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

// getGameMoves returns one owned session and its ordered move log.
// Nonexistent and non-owned games are indistinguishable to the caller.
func getGameMoves(db *gorm.DB, userID, gameID int64) (*Game, []Move, error) {
	var game Game
	if err := db.Where("id = ? AND user_id = ?", gameID, userID).First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, goban.ErrNotFound
		}
		return nil, nil, err
	}

	moves, err := movesForGame(db, game.ID)
	if err != nil {
		return nil, nil, err
	}
	return &game, moves, nil
}

func movesForGame(db *gorm.DB, gameID int64) ([]Move, error) {
	var moves []Move
	if err := db.Where("game_id = ?", gameID).
		Order("created_at, id").
		Find(&moves).Error; err != nil {
		return nil, err
	}
	return moves, nil
}
