package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jessevdk/go-flags"
)

type options struct {
	Server string `short:"s" long:"server" description:"Server URL" default:"https://goban.app"`
	Local  bool   `short:"l" long:"local" description:"Use local server instead of the default"`
}

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	menuItemStyle = lipgloss.NewStyle().
			MarginLeft(2)

	selectedMenuItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")).
				Bold(true).
				MarginLeft(2)

	boardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1).
			MarginLeft(2)

	cellStyle = lipgloss.NewStyle().
			Width(3).
			Height(1).
			Align(lipgloss.Center)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			MarginLeft(2)
)

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	serverURL := opts.Server
	if opts.Local {
		serverURL = "http://localhost:8080"
	}

	p := tea.NewProgram(
		initialModel(serverURL),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
}

type screen int

const (
	screenLogin screen = iota
	screenMenu
	screenGame
	screenHistory
)

type model struct {
	client *apiClient
	screen screen

	// Login state
	signupMode bool
	inputs     []textinput.Model
	focusIndex int

	// Menu state
	menuCursor int

	// Game state
	game *gameView

	// Board interaction state
	cursorX int
	cursorY int

	// History state
	history []gameSummary

	// UI state
	width  int
	height int
	error  string
	status string
}

// gameView is the client's picture of the active session. The server
// stores whatever we send back, so all rule handling lives here.
type gameView struct {
	ID            int64
	Board         map[string]string
	Turn          string
	Scores        map[string]float64
	CapturedWhite int
	CapturedBlack int
	BoardSize     int
	State         string
	PlayerColor   string
	ComputerColor string
	Moves         []string
}

func initialModel(serverURL string) model {
	inputs := make([]textinput.Model, 3)
	for i := range inputs {
		inputs[i] = textinput.New()
	}
	inputs[0].Placeholder = "name"
	inputs[0].Focus()
	inputs[1].Placeholder = "email"
	inputs[2].Placeholder = "password"
	inputs[2].EchoMode = textinput.EchoPassword

	return model{
		client: &apiClient{
			serverURL: serverURL,
			http:      &http.Client{Timeout: 10 * time.Second},
		},
		screen: screenLogin,
		inputs: inputs,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loggedIn:
		m.client.token = msg.token
		m.screen = screenMenu
		m.error = ""
		m.status = fmt.Sprintf("Signed in as %s", msg.name)
		return m, nil

	case gameLoaded:
		m.game = msg.game
		m.screen = screenGame
		m.error = ""
		m.cursorX = 0
		m.cursorY = 0
		return m, nil

	case gameUpdated:
		m.game = msg.game
		m.error = ""
		return m, nil

	case gameEnded:
		m.game = nil
		m.screen = screenMenu
		m.status = msg.message
		m.error = ""
		return m, nil

	case historyLoaded:
		m.history = msg.games
		m.screen = screenHistory
		m.error = ""
		return m, nil

	case apiError:
		m.error = msg.error
		return m, nil

	case tea.KeyMsg:
		switch m.screen {
		case screenLogin:
			return m.updateLogin(msg)
		case screenMenu:
			return m.updateMenu(msg)
		case screenGame:
			return m.updateGame(msg)
		case screenHistory:
			return m.updateHistory(msg)
		}
	}

	return m, nil
}

// visibleInputs skips the email field outside signup mode.
func (m model) visibleInputs() []int {
	if m.signupMode {
		return []int{0, 1, 2}
	}
	return []int{0, 2}
}

func (m *model) focusInput(index int) {
	visible := m.visibleInputs()
	m.focusIndex = index % len(visible)
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.inputs[visible[m.focusIndex]].Focus()
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "tab", "down":
		m.focusInput(m.focusIndex + 1)
		return m, nil

	case "shift+tab", "up":
		visible := m.visibleInputs()
		m.focusInput(m.focusIndex + len(visible) - 1)
		return m, nil

	case "ctrl+s":
		m.signupMode = !m.signupMode
		m.error = ""
		m.focusInput(0)
		return m, nil

	case "enter":
		name := m.inputs[0].Value()
		email := m.inputs[1].Value()
		password := m.inputs[2].Value()
		if m.signupMode {
			return m, m.client.signup(name, email, password)
		}
		return m, m.client.login(name, password)
	}

	visible := m.visibleInputs()
	idx := visible[m.focusIndex]
	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return m, cmd
}

func (m model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.menuCursor > 0 {
			m.menuCursor--
		}

	case "down", "j":
		if m.menuCursor < 3 { // 4 menu items
			m.menuCursor++
		}

	case "enter", " ":
		switch m.menuCursor {
		case 0: // New Game
			return m, m.client.newGame()
		case 1: // Resume
			return m, m.client.activeGame()
		case 2: // History
			return m, m.client.listHistory()
		case 3: // Quit
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m model) updateGame(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.game == nil {
		switch msg.String() {
		case "q":
			m.screen = screenMenu
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	size := m.game.BoardSize

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		// Save before leaving so the session survives
		return m, m.client.pause(m.game)
	case "up", "k":
		if m.cursorY < size-1 {
			m.cursorY++
		}
		return m, nil
	case "down", "j":
		if m.cursorY > 0 {
			m.cursorY--
		}
		return m, nil
	case "left", "h":
		if m.cursorX > 0 {
			m.cursorX--
		}
		return m, nil
	case "right", "l":
		if m.cursorX < size-1 {
			m.cursorX++
		}
		return m, nil
	case "enter", " ":
		if m.game.State != "ongoing" && m.game.State != "paused" {
			return m, nil
		}
		return m, m.placeStone(m.cursorX, m.cursorY)
	case "p":
		return m, m.passTurn()
	case "r":
		return m, m.client.resign(m.game)
	}

	return m, nil
}

func (m model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.screen = screenMenu
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	return m, nil
}

// placeStone applies the move locally and sends the resulting snapshot.
// Capture resolution is deliberately naive; the server trusts whatever
// board we hand it.
func (m model) placeStone(x, y int) tea.Cmd {
	key := fmt.Sprintf("%d,%d", x, y)
	if _, taken := m.game.Board[key]; taken {
		return func() tea.Msg { return apiError{error: "point is occupied"} }
	}

	color := m.game.Turn
	board := make(map[string]string, len(m.game.Board)+1)
	for k, v := range m.game.Board {
		board[k] = v
	}
	board[key] = color

	return m.client.move(m.game, color, x, y, board)
}

func (m model) passTurn() tea.Cmd {
	// Two passes in a row end the game
	state := ""
	if n := len(m.game.Moves); n > 0 && m.game.Moves[n-1] == "pass" {
		state = "finished"
	}
	return m.client.pass(m.game, state)
}

func (m model) View() string {
	switch m.screen {
	case screenLogin:
		return m.viewLogin()
	case screenMenu:
		return m.viewMenu()
	case screenGame:
		return m.viewGame()
	case screenHistory:
		return m.viewHistory()
	default:
		return "Unknown screen"
	}
}

func (m model) viewLogin() string {
	header := "Sign In"
	if m.signupMode {
		header = "Sign Up"
	}
	title := titleStyle.Render("Goban - " + header)

	fields := ""
	for _, idx := range m.visibleInputs() {
		fields += menuItemStyle.Render(m.inputs[idx].View()) + "\n"
	}

	mode := "Ctrl+S: switch to sign up"
	if m.signupMode {
		mode = "Ctrl+S: switch to sign in"
	}
	help := menuItemStyle.Render("Tab: next field | Enter: submit | " + mode)

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", fields, help)

	if m.error != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, "", errorStyle.Render("Error: "+m.error))
	}

	return content
}

func (m model) viewMenu() string {
	title := titleStyle.Render("Goban")

	choices := []string{
		"New Game",
		"Resume Game",
		"History",
		"Quit",
	}

	menu := ""
	for i, choice := range choices {
		if m.menuCursor == i {
			menu += selectedMenuItemStyle.Render(fmt.Sprintf("> %s", choice)) + "\n"
		} else {
			menu += menuItemStyle.Render(fmt.Sprintf("  %s", choice)) + "\n"
		}
	}

	info := menuItemStyle.Render(fmt.Sprintf("Server: %s", m.client.serverURL))
	help := menuItemStyle.Render("Press up/down to navigate, Enter to select, q to quit")

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", menu, info, "", help)

	if m.status != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, "", menuItemStyle.Render(m.status))
	}
	if m.error != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, "", errorStyle.Render("Error: "+m.error))
	}

	return content
}

func (m model) viewGame() string {
	title := titleStyle.Render("Goban Game")

	if m.game == nil {
		loading := menuItemStyle.Render("Loading game...")
		help := menuItemStyle.Render("Press q to go back to menu")
		return lipgloss.JoinVertical(lipgloss.Left, title, "", loading, "", help)
	}

	board := m.renderBoard()
	gameInfo := menuItemStyle.Render(fmt.Sprintf(
		"Turn: %s | You: %s | Captures B/W: %d/%d | State: %s",
		m.game.Turn, m.game.PlayerColor, m.game.CapturedBlack, m.game.CapturedWhite, m.game.State))

	controls := menuItemStyle.Render(
		"hjkl/arrows: move | Enter: place | p: pass | r: resign | q: save and exit")

	content := []string{title, "", gameInfo, "", board, "", controls}

	if len(m.game.Moves) > 0 {
		recent := m.game.Moves
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		content = append(content, "", menuItemStyle.Render("Recent: "+fmt.Sprintf("%v", recent)))
	}

	if m.error != "" {
		content = append(content, "", errorStyle.Render("Error: "+m.error))
	}

	return lipgloss.JoinVertical(lipgloss.Left, content...)
}

func (m model) viewHistory() string {
	title := titleStyle.Render("Game History")

	rows := ""
	if len(m.history) == 0 {
		rows = menuItemStyle.Render("No games yet") + "\n"
	}
	for _, g := range m.history {
		result := "-"
		if g.WonBy != nil {
			result = *g.WonBy + " won"
		}
		rows += menuItemStyle.Render(fmt.Sprintf("#%d  %dx%d  %s  %s",
			g.ID, g.BoardSize, g.BoardSize, g.State, result)) + "\n"
	}

	help := menuItemStyle.Render("Press q to go back to menu")

	return lipgloss.JoinVertical(lipgloss.Left, title, "", rows, help)
}

func (m model) renderBoard() string {
	size := m.game.BoardSize
	var rows []string

	header := "   "
	for i := 0; i < size; i++ {
		header += fmt.Sprintf(" %c ", 'A'+i)
	}
	rows = append(rows, header)

	// Rows print top-down so the highest y is first
	for y := size - 1; y >= 0; y-- {
		row := fmt.Sprintf("%2d ", y+1)
		for x := 0; x < size; x++ {
			row += m.renderPoint(x, y)
		}
		row += fmt.Sprintf(" %d", y+1)
		rows = append(rows, row)
	}

	footer := "   "
	for i := 0; i < size; i++ {
		footer += fmt.Sprintf(" %c ", 'A'+i)
	}
	rows = append(rows, footer)

	boardContent := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return boardStyle.Render(boardContent)
}

func (m model) renderPoint(x, y int) string {
	var content string
	var bgColor, fgColor string

	switch m.game.Board[fmt.Sprintf("%d,%d", x, y)] {
	case "black":
		content = "●"
		bgColor = "94"
		fgColor = "16"
	case "white":
		content = "○"
		bgColor = "94"
		fgColor = "255"
	default:
		content = "+"
		bgColor = "94"
		fgColor = "58"
	}

	if x == m.cursorX && y == m.cursorY {
		bgColor = "220"
		fgColor = "16"
	}

	return cellStyle.
		Background(lipgloss.Color(bgColor)).
		Foreground(lipgloss.Color(fgColor)).
		Render(content)
}

// Messages
type loggedIn struct {
	token string
	name  string
}

type gameLoaded struct {
	game *gameView
}

type gameUpdated struct {
	game *gameView
}

type gameEnded struct {
	message string
}

type historyLoaded struct {
	games []gameSummary
}

type apiError struct {
	error string
}

// API types matching the server
type authResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		Name string `json:"name"`
	} `json:"user"`
}

type moveEntry struct {
	Player   string `json:"player"`
	X        *int   `json:"x"`
	Y        *int   `json:"y"`
	MoveType string `json:"move_type"`
}

type activeGameResponse struct {
	ID            int64              `json:"id"`
	Board         map[string]string  `json:"board"`
	Turn          string             `json:"turn"`
	Scores        map[string]float64 `json:"scores"`
	CapturedWhite int                `json:"captured_white"`
	CapturedBlack int                `json:"captured_black"`
	BoardSize     int                `json:"board_size"`
	State         string             `json:"state"`
	History       []moveEntry        `json:"history"`
	PlayerColor   string             `json:"playerColor"`
	ComputerColor string             `json:"computerColor"`
}

type snapshotResponse struct {
	Board         map[string]string  `json:"board"`
	Turn          string             `json:"turn"`
	Scores        map[string]float64 `json:"scores"`
	CapturedWhite int                `json:"captured_white"`
	CapturedBlack int                `json:"captured_black"`
	State         string             `json:"state"`
	GameOver      bool               `json:"game_over"`
}

type gameSummary struct {
	ID        int64   `json:"id"`
	BoardSize int     `json:"board_size"`
	State     string  `json:"state"`
	WonBy     *string `json:"won_by"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// apiClient talks to the session server. Every call returns a tea.Cmd
// so requests run off the UI goroutine.
type apiClient struct {
	serverURL string
	token     string
	http      *http.Client
}

func (c *apiClient) do(method, path string, payload, out any) error {
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, c.serverURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server error: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) signup(name, email, password string) tea.Cmd {
	return func() tea.Msg {
		payload := map[string]string{"name": name, "email": email, "password": password}
		if err := c.do("POST", "/user/signup", payload, nil); err != nil {
			return apiError{error: err.Error()}
		}

		// A fresh account logs straight in
		var resp authResponse
		if err := c.do("POST", "/user/login", map[string]string{"login": name, "password": password}, &resp); err != nil {
			return apiError{error: err.Error()}
		}
		return loggedIn{token: resp.AccessToken, name: resp.User.Name}
	}
}

func (c *apiClient) login(login, password string) tea.Cmd {
	return func() tea.Msg {
		var resp authResponse
		payload := map[string]string{"login": login, "password": password}
		if err := c.do("POST", "/user/login", payload, &resp); err != nil {
			return apiError{error: err.Error()}
		}
		return loggedIn{token: resp.AccessToken, name: resp.User.Name}
	}
}

func (c *apiClient) newGame() tea.Cmd {
	return func() tea.Msg {
		if err := c.do("POST", "/game/new", map[string]any{"board_size": 9}, nil); err != nil {
			return apiError{error: err.Error()}
		}
		return c.fetchActive()
	}
}

func (c *apiClient) activeGame() tea.Cmd {
	return func() tea.Msg {
		return c.fetchActive()
	}
}

func (c *apiClient) fetchActive() tea.Msg {
	var resp activeGameResponse
	if err := c.do("GET", "/game/active", nil, &resp); err != nil {
		return apiError{error: err.Error()}
	}

	game := &gameView{
		ID:            resp.ID,
		Board:         resp.Board,
		Turn:          resp.Turn,
		Scores:        resp.Scores,
		CapturedWhite: resp.CapturedWhite,
		CapturedBlack: resp.CapturedBlack,
		BoardSize:     resp.BoardSize,
		State:         resp.State,
		PlayerColor:   resp.PlayerColor,
		ComputerColor: resp.ComputerColor,
	}
	if game.Board == nil {
		game.Board = map[string]string{}
	}
	for _, entry := range resp.History {
		game.Moves = append(game.Moves, formatMove(entry))
	}
	return gameLoaded{game: game}
}

func formatMove(entry moveEntry) string {
	switch entry.MoveType {
	case "pass":
		return "pass"
	case "resign":
		return entry.Player + " resigned"
	default:
		if entry.X != nil && entry.Y != nil {
			return fmt.Sprintf("%c%d", 'A'+*entry.X, *entry.Y+1)
		}
		return entry.MoveType
	}
}

func (c *apiClient) move(game *gameView, color string, x, y int, board map[string]string) tea.Cmd {
	return func() tea.Msg {
		payload := map[string]any{
			"color": color,
			"x":     x,
			"y":     y,
			"board": board,
		}

		var resp snapshotResponse
		if err := c.do("POST", "/game/move", payload, &resp); err != nil {
			return apiError{error: err.Error()}
		}

		updated := *game
		updated.Board = resp.Board
		updated.Turn = resp.Turn
		updated.Scores = resp.Scores
		updated.CapturedWhite = resp.CapturedWhite
		updated.CapturedBlack = resp.CapturedBlack
		updated.State = resp.State
		updated.Moves = append(append([]string{}, game.Moves...), fmt.Sprintf("%c%d", 'A'+x, y+1))
		return gameUpdated{game: &updated}
	}
}

func (c *apiClient) pass(game *gameView, state string) tea.Cmd {
	return func() tea.Msg {
		payload := map[string]any{}
		if state != "" {
			payload["state"] = state
		}

		var resp snapshotResponse
		if err := c.do("POST", "/game/pass", payload, &resp); err != nil {
			return apiError{error: err.Error()}
		}

		if resp.GameOver {
			return gameEnded{message: "Game over"}
		}

		updated := *game
		updated.Turn = resp.Turn
		updated.State = resp.State
		updated.Moves = append(append([]string{}, game.Moves...), "pass")
		return gameUpdated{game: &updated}
	}
}

func (c *apiClient) pause(game *gameView) tea.Cmd {
	return func() tea.Msg {
		payload := map[string]any{
			"board":          game.Board,
			"turn":           game.Turn,
			"scores":         game.Scores,
			"captured_white": game.CapturedWhite,
			"captured_black": game.CapturedBlack,
		}
		if err := c.do("POST", "/game/pause", payload, nil); err != nil {
			return apiError{error: err.Error()}
		}
		return gameEnded{message: "Game saved"}
	}
}

func (c *apiClient) resign(game *gameView) tea.Cmd {
	return func() tea.Msg {
		payload := map[string]any{"resign": game.PlayerColor}
		if err := c.do("POST", "/game/finish", payload, nil); err != nil {
			return apiError{error: err.Error()}
		}
		return gameEnded{message: "You resigned"}
	}
}

func (c *apiClient) listHistory() tea.Cmd {
	return func() tea.Msg {
		var games []gameSummary
		if err := c.do("GET", "/game/history", nil, &games); err != nil {
			return apiError{error: err.Error()}
		}
		return historyLoaded{games: games}
	}
}
