package main

import (
	"errors"
	"testing"

	"github.com/icco/goban"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Use in-memory SQLite for testing with silent logger to avoid test output pollution
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Run auto-migration
	err = AutoMigrate(db)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB) *User {
	user := User{
		Name:         "testplayer",
		Email:        "testplayer@example.com",
		PasswordHash: "not-a-real-hash",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return &user
}

func defaultGameParams() newGameParams {
	return newGameParams{
		Board:         goban.Snapshot{},
		Turn:          goban.ColorBlack,
		Scores:        goban.DefaultScores(),
		BoardSize:     9,
		PlayerColor:   goban.ColorBlack,
		ComputerColor: goban.ColorWhite,
	}
}

func TestStartGame(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	game, err := startGame(db, user.ID, defaultGameParams())
	if err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	if game.Slug == "" {
		t.Error("Expected non-empty slug")
	}
	if game.State != goban.StateOngoing {
		t.Errorf("Expected state %q, got %q", goban.StateOngoing, game.State)
	}
	if game.BoardSize != 9 {
		t.Errorf("Expected board size 9, got %d", game.BoardSize)
	}
	if game.CurrentTurn != goban.ColorBlack {
		t.Errorf("Expected black to move first, got %q", game.CurrentTurn)
	}

	// Verify game exists in database
	var stored Game
	if err := db.Where("slug = ?", game.Slug).First(&stored).Error; err != nil {
		t.Fatalf("Game not found in database: %v", err)
	}
	if stored.UserID != user.ID {
		t.Errorf("Expected user ID %d, got %d", user.ID, stored.UserID)
	}
}

func TestStartGameAbandonsPrior(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	first, err := startGame(db, user.ID, defaultGameParams())
	if err != nil {
		t.Fatalf("Failed to start first game: %v", err)
	}

	second, err := startGame(db, user.ID, defaultGameParams())
	if err != nil {
		t.Fatalf("Failed to start second game: %v", err)
	}

	if first.Slug == second.Slug {
		t.Error("Expected distinct slugs for consecutive games")
	}

	var prior Game
	if err := db.First(&prior, first.ID).Error; err != nil {
		t.Fatalf("Failed to reload first game: %v", err)
	}
	if prior.State != goban.StateAbandoned {
		t.Errorf("Expected first game abandoned, got %q", prior.State)
	}
	if prior.EndedAt == nil {
		t.Error("Expected abandoned game to have an end time")
	}

	// Only the second game is active afterwards
	active, err := findActiveGame(db, user.ID)
	if err != nil {
		t.Fatalf("Failed to find active game: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("Expected active game %d, got %d", second.ID, active.ID)
	}
}

func TestFindActiveGameNone(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	if _, err := findActiveGame(db, user.ID); !errors.Is(err, goban.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFindActiveGamePrefersNewest(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	// Two active rows violate the invariant; inserted directly since
	// startGame never produces this.
	older := Game{Slug: "dup-a", UserID: user.ID, State: goban.StateOngoing, CurrentTurn: goban.ColorBlack}
	newer := Game{Slug: "dup-b", UserID: user.ID, State: goban.StatePaused, CurrentTurn: goban.ColorBlack}
	if err := db.Create(&older).Error; err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	if err := db.Create(&newer).Error; err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}

	active, err := findActiveGame(db, user.ID)
	if err != nil {
		t.Fatalf("Failed to find active game: %v", err)
	}
	if active.ID != newer.ID {
		t.Errorf("Expected newest active game %d, got %d", newer.ID, active.ID)
	}
}

func TestRecordMove(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	if _, err := startGame(db, user.ID, defaultGameParams()); err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	x, y := 3, 4
	cw := 1
	game, err := recordMove(db, user.ID, moveParams{
		Color:         goban.ColorBlack,
		X:             &x,
		Y:             &y,
		Board:         goban.Snapshot{"3,4": "black"},
		Scores:        goban.Snapshot{"black": 1.0, "white": 0.0},
		CapturedWhite: &cw,
	})
	if err != nil {
		t.Fatalf("Failed to record move: %v", err)
	}

	if game.CurrentTurn != goban.ColorWhite {
		t.Errorf("Expected turn to flip to white, got %q", game.CurrentTurn)
	}
	if game.CapturedWhite != 1 {
		t.Errorf("Expected captured_white 1, got %d", game.CapturedWhite)
	}
	if game.Board["3,4"] != "black" {
		t.Errorf("Expected stored board snapshot, got %v", game.Board)
	}

	moves, err := movesForGame(db, game.ID)
	if err != nil {
		t.Fatalf("Failed to load moves: %v", err)
	}
	if len(moves) != 1 {
		t.Fatalf("Expected 1 move, got %d", len(moves))
	}
	if moves[0].Kind != goban.MovePlay {
		t.Errorf("Expected play move, got %q", moves[0].Kind)
	}
	if moves[0].X == nil || *moves[0].X != 3 || moves[0].Y == nil || *moves[0].Y != 4 {
		t.Errorf("Expected move at (3,4), got (%v,%v)", moves[0].X, moves[0].Y)
	}
	if moves[0].CapturesWhite != 1 {
		t.Errorf("Expected move row to carry captures_white 1, got %d", moves[0].CapturesWhite)
	}
}

func TestRecordMoveDefaultsColorToTurn(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	if _, err := startGame(db, user.ID, defaultGameParams()); err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	x, y := 0, 0
	game, err := recordMove(db, user.ID, moveParams{X: &x, Y: &y})
	if err != nil {
		t.Fatalf("Failed to record move: %v", err)
	}

	moves, err := movesForGame(db, game.ID)
	if err != nil {
		t.Fatalf("Failed to load moves: %v", err)
	}
	if moves[0].Player != goban.ColorBlack {
		t.Errorf("Expected move attributed to black, got %q", moves[0].Player)
	}
	if game.CurrentTurn != goban.ColorWhite {
		t.Errorf("Expected turn to flip to white, got %q", game.CurrentTurn)
	}
}

func TestRecordMoveNoActiveGame(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	x, y := 1, 1
	if _, err := recordMove(db, user.ID, moveParams{X: &x, Y: &y}); !errors.Is(err, goban.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecordPass(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	if _, err := startGame(db, user.ID, defaultGameParams()); err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	game, err := recordPass(db, user.ID, passParams{})
	if err != nil {
		t.Fatalf("Failed to record pass: %v", err)
	}

	if game.State != goban.StateOngoing {
		t.Errorf("Expected game still ongoing, got %q", game.State)
	}
	if game.CurrentTurn != goban.ColorWhite {
		t.Errorf("Expected turn to flip to white, got %q", game.CurrentTurn)
	}
	if game.EndedAt != nil {
		t.Error("Expected no end time for ongoing game")
	}

	moves, err := movesForGame(db, game.ID)
	if err != nil {
		t.Fatalf("Failed to load moves: %v", err)
	}
	if len(moves) != 1 || moves[0].Kind != goban.MovePass {
		t.Errorf("Expected a single pass move, got %v", moves)
	}
	if moves[0].X != nil || moves[0].Y != nil {
		t.Error("Expected pass move without coordinates")
	}
}

func TestRecordPassEndsGame(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	if _, err := startGame(db, user.ID, defaultGameParams()); err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	finished := goban.StateFinished
	game, err := recordPass(db, user.ID, passParams{State: &finished})
	if err != nil {
		t.Fatalf("Failed to record pass: %v", err)
	}

	if game.State != goban.StateFinished {
		t.Errorf("Expected finished state, got %q", game.State)
	}
	if game.EndedAt == nil {
		t.Error("Expected end time on finished game")
	}

	// The game is no longer active
	if _, err := findActiveGame(db, user.ID); !errors.Is(err, goban.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after terminal pass, got %v", err)
	}
}

func TestPauseGameStaysActive(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	started, err := startGame(db, user.ID, defaultGameParams())
	if err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	turn := goban.ColorWhite
	game, err := pauseGame(db, user.ID, snapshotParams{
		Board: goban.Snapshot{"2,2": "black"},
		Turn:  &turn,
	})
	if err != nil {
		t.Fatalf("Failed to pause game: %v", err)
	}

	if game.State != goban.StatePaused {
		t.Errorf("Expected paused state, got %q", game.State)
	}
	if game.CurrentTurn != goban.ColorWhite {
		t.Errorf("Expected stored turn white, got %q", game.CurrentTurn)
	}

	// Pausing records no audit entry
	moves, err := movesForGame(db, game.ID)
	if err != nil {
		t.Fatalf("Failed to load moves: %v", err)
	}
	if len(moves) != 0 {
		t.Errorf("Expected no moves after pause, got %d", len(moves))
	}

	// A paused game is still the active session
	active, err := findActiveGame(db, user.ID)
	if err != nil {
		t.Fatalf("Failed to find active game: %v", err)
	}
	if active.ID != started.ID {
		t.Errorf("Expected paused game %d to stay active, got %d", started.ID, active.ID)
	}
	if active.Board["2,2"] != "black" {
		t.Errorf("Expected saved snapshot to survive, got %v", active.Board)
	}
}

func TestFinishGame(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	if _, err := startGame(db, user.ID, defaultGameParams()); err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	winner := "black"
	game, err := finishGame(db, user.ID, finishParams{
		Scores: goban.Snapshot{"black": 10.0, "white": 4.5},
		WonBy:  &winner,
	})
	if err != nil {
		t.Fatalf("Failed to finish game: %v", err)
	}

	if game.State != goban.StateFinished {
		t.Errorf("Expected finished state, got %q", game.State)
	}
	if game.EndedAt == nil {
		t.Fatal("Expected end time on finished game")
	}
	if game.WonBy == nil || *game.WonBy != "black" {
		t.Errorf("Expected winner black, got %v", game.WonBy)
	}

	// Finishing again finds no active game and leaves the record alone
	firstEnd := *game.EndedAt
	if _, err := finishGame(db, user.ID, finishParams{}); !errors.Is(err, goban.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second finish, got %v", err)
	}

	var stored Game
	if err := db.First(&stored, game.ID).Error; err != nil {
		t.Fatalf("Failed to reload game: %v", err)
	}
	if stored.EndedAt == nil || !stored.EndedAt.Equal(firstEnd) {
		t.Error("Expected end time to be unchanged by the second finish")
	}
}

func TestFinishGameResign(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	if _, err := startGame(db, user.ID, defaultGameParams()); err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	game, err := finishGame(db, user.ID, finishParams{Resign: goban.ColorBlack})
	if err != nil {
		t.Fatalf("Failed to finish game: %v", err)
	}

	if game.WonBy == nil || *game.WonBy != "white" {
		t.Errorf("Expected white to win by resignation, got %v", game.WonBy)
	}

	moves, err := movesForGame(db, game.ID)
	if err != nil {
		t.Fatalf("Failed to load moves: %v", err)
	}
	if len(moves) != 1 || moves[0].Kind != goban.MoveResign {
		t.Fatalf("Expected a single resign move, got %v", moves)
	}
	if moves[0].Player != goban.ColorBlack {
		t.Errorf("Expected resign attributed to black, got %q", moves[0].Player)
	}
}

func TestMoveLogOrdering(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	if _, err := startGame(db, user.ID, defaultGameParams()); err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	var gameID int64
	for i := 0; i < 5; i++ {
		x, y := i, i
		game, err := recordMove(db, user.ID, moveParams{X: &x, Y: &y})
		if err != nil {
			t.Fatalf("Failed to record move %d: %v", i, err)
		}
		gameID = game.ID
	}

	moves, err := movesForGame(db, gameID)
	if err != nil {
		t.Fatalf("Failed to load moves: %v", err)
	}
	if len(moves) != 5 {
		t.Fatalf("Expected 5 moves, got %d", len(moves))
	}
	for i := 1; i < len(moves); i++ {
		if moves[i].ID <= moves[i-1].ID {
			t.Errorf("Expected strictly increasing move ids, got %d after %d", moves[i].ID, moves[i-1].ID)
		}
		if moves[i].CreatedAt.Before(moves[i-1].CreatedAt) {
			t.Error("Expected non-decreasing move timestamps")
		}
	}
	for i, m := range moves {
		if m.X == nil || *m.X != i {
			t.Errorf("Expected move %d at x=%d, got %v", i, i, m.X)
		}
	}
}

func TestListGames(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	first, err := startGame(db, user.ID, defaultGameParams())
	if err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}
	second, err := startGame(db, user.ID, defaultGameParams())
	if err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	games, err := listGames(db, user.ID)
	if err != nil {
		t.Fatalf("Failed to list games: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("Expected 2 games, got %d", len(games))
	}
	if games[0].ID != second.ID || games[1].ID != first.ID {
		t.Error("Expected newest game first")
	}
}

func TestGetGameMovesOwnership(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)

	other := User{Name: "intruder", Email: "intruder@example.com", PasswordHash: "x"}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("Failed to create second user: %v", err)
	}

	game, err := startGame(db, owner.ID, defaultGameParams())
	if err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	// Owner can read the log
	got, moves, err := getGameMoves(db, owner.ID, game.ID)
	if err != nil {
		t.Fatalf("Failed to get game moves: %v", err)
	}
	if got.ID != game.ID {
		t.Errorf("Expected game %d, got %d", game.ID, got.ID)
	}
	if len(moves) != 0 {
		t.Errorf("Expected empty move log, got %d", len(moves))
	}

	// Another user sees the same error as for a missing game
	if _, _, err := getGameMoves(db, other.ID, game.ID); !errors.Is(err, goban.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign game, got %v", err)
	}
	if _, _, err := getGameMoves(db, owner.ID, game.ID+999); !errors.Is(err, goban.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing game, got %v", err)
	}
}

func TestSnapshotPersistence(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)

	p := defaultGameParams()
	p.Board = goban.Snapshot{"4,4": "white", "3,3": "black"}
	p.Scores = goban.Snapshot{"black": 2.0, "white": 6.5}

	game, err := startGame(db, user.ID, p)
	if err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}

	var stored Game
	if err := db.First(&stored, game.ID).Error; err != nil {
		t.Fatalf("Failed to reload game: %v", err)
	}
	if stored.Board["4,4"] != "white" || stored.Board["3,3"] != "black" {
		t.Errorf("Board snapshot did not round-trip: %v", stored.Board)
	}
	if stored.Scores["white"] != 6.5 {
		t.Errorf("Scores snapshot did not round-trip: %v", stored.Scores)
	}
}
