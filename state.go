package goban

// State is the lifecycle state of a game session. A session is created
// `ongoing`, may move between `ongoing` and `paused` while it is being
// played, and ends in one of the terminal states `abandoned` or
// `finished`. A user has at most one session in an active state at any
// time.
type State string

const (
	StateOngoing   State = "ongoing"
	StatePaused    State = "paused"
	StateAbandoned State = "abandoned"
	StateFinished  State = "finished"
)

// ActiveStates returns the states in which a session still counts as
// the user's single active game.
func ActiveStates() []State {
	return []State{StateOngoing, StatePaused}
}

// Valid reports whether s is one of the four known session states.
func (s State) Valid() bool {
	switch s {
	case StateOngoing, StatePaused, StateAbandoned, StateFinished:
		return true
	}
	return false
}

// IsActive reports whether the session is still playable.
func (s State) IsActive() bool {
	return s == StateOngoing || s == StatePaused
}

// IsTerminal reports whether the session has ended.
func (s State) IsTerminal() bool {
	return s == StateAbandoned || s == StateFinished
}

// Color identifies a side of the board.
type Color string

const (
	ColorBlack Color = "black"
	ColorWhite Color = "white"
)

// Valid reports whether c is black or white.
func (c Color) Valid() bool {
	return c == ColorBlack || c == ColorWhite
}

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == ColorBlack {
		return ColorWhite
	}
	return ColorBlack
}

// MoveKind distinguishes the entries of a session's move log.
type MoveKind string

const (
	MovePlay   MoveKind = "play"
	MovePass   MoveKind = "pass"
	MoveResign MoveKind = "resign"
)

// Valid reports whether k is a known move kind.
func (k MoveKind) Valid() bool {
	switch k {
	case MovePlay, MovePass, MoveResign:
		return true
	}
	return false
}
