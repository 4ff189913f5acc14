// Package presenter drives the interactive terminal frontend: it paints
// session state onto the hosting terminal and routes keyboard input by
// presenter mode. Modes form a tagged union with explicit transitions;
// events dispatch on the tag. The presenter never blocks on child I/O —
// it polls the session and redraws on update signals.
package presenter

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"bite/internal/history"
	"bite/internal/interaction"
	"bite/internal/session"
)

// Mode is the presenter's input mode tag.
type Mode int

const (
	// ModeCompose edits the command line of the current interaction.
	ModeCompose Mode = iota
	// ModeHistory browses the history store from the compose line.
	ModeHistory
	// ModeComplete cycles through completion candidates.
	ModeComplete
	// ModeExecute waits on a running foreground command; input goes to
	// the child's stdin.
	ModeExecute
	// ModeTUI gives the running interaction the full window and routes
	// keys raw.
	ModeTUI
)

// String returns the mode label shown on the status bar.
func (m Mode) String() string {
	switch m {
	case ModeCompose:
		return "Compose"
	case ModeHistory:
		return "History"
	case ModeComplete:
		return "Complete"
	case ModeExecute:
		return "Execute"
	case ModeTUI:
		return "TUI"
	}
	return "?"
}

// Presenter owns all UI state and holds the session handle.
type Presenter struct {
	Session *session.Session
	History *history.Store
	Output  *os.File
	Input   *os.File

	Mode Mode

	// Compose state.
	line      []rune
	cursorPos int

	// History browsing state.
	histMatches []string
	histIdx     int
	saved       []rune

	// Completion state.
	candidates []string
	candIdx    int

	// The interaction whose job receives input in Execute/TUI mode.
	executingID int64

	rows, cols int

	quit     bool
	exitCode int
	quitCh   chan int

	restore *term.State
}

// New returns a presenter for the session. Output and Input default to
// the process terminal.
func New(s *session.Session, hist *history.Store) *Presenter {
	return &Presenter{
		Session: s,
		History: hist,
		Output:  os.Stdout,
		Input:   os.Stdin,
		quitCh:  make(chan int, 1),
	}
}

// reservedRows is the separator and input bar at the bottom.
const reservedRows = 2

// Run enters raw mode and processes input and session updates until the
// user quits. Blocks for the lifetime of the UI.
func (p *Presenter) Run() (int, error) {
	fd := int(p.Input.Fd())
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return 1, fmt.Errorf("get terminal size (is this a terminal?): %w", err)
	}
	if rows < reservedRows+1 {
		return 1, fmt.Errorf("terminal too small (need at least %d rows, have %d)", reservedRows+1, rows)
	}
	p.rows, p.cols = rows, cols
	p.Session.Resize(rows-reservedRows, cols)

	// Detect host colors before entering raw mode so children asking via
	// OSC 10/11 get sensible answers.
	out := termenv.NewOutput(p.Output)
	if os.Getenv("COLORFGBG") == "" {
		colorfgbg := "0;15"
		if out.HasDarkBackground() {
			colorfgbg = "15;0"
		}
		os.Setenv("COLORFGBG", colorfgbg)
	}

	p.restore, err = term.MakeRaw(fd)
	if err != nil {
		return 1, fmt.Errorf("set raw mode: %w", err)
	}
	defer func() {
		term.Restore(fd, p.restore)
		p.Output.Write([]byte("\033[?25h\033[0m\r\n"))
	}()

	p.Session.OnExitRequest = func(code int) {
		// Runs on the executor goroutine; hand off to the UI loop.
		select {
		case p.quitCh <- code:
		default:
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)

	inputCh := make(chan []byte, 16)
	go p.readInput(inputCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	p.Output.Write([]byte("\033[2J\033[H"))
	p.renderFrame()

	for !p.quit {
		select {
		case data, ok := <-inputCh:
			if !ok {
				p.quit = true
				break
			}
			p.handleInput(data)
			p.renderFrame()
		case code := <-p.quitCh:
			p.exitCode = code
			p.quit = true
		case <-p.Session.Updates():
			p.syncMode()
			p.renderFrame()
		case <-sigCh:
			p.handleResize(fd)
			p.renderFrame()
		case <-ticker.C:
			p.renderFrame()
		}
	}
	p.Session.Stop()
	return p.exitCode, nil
}

// readInput pumps raw keyboard bytes to the main loop.
func (p *Presenter) readInput(ch chan<- []byte) {
	defer close(ch)
	buf := make([]byte, 256)
	for {
		n, err := p.Input.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			ch <- data
		}
		if err != nil {
			return
		}
	}
}

func (p *Presenter) handleResize(fd int) {
	cols, rows, err := term.GetSize(fd)
	if err != nil || rows < reservedRows+1 {
		return
	}
	p.rows, p.cols = rows, cols
	childRows := rows - reservedRows
	if p.Mode == ModeTUI {
		childRows = rows
	}
	p.Session.Resize(childRows, cols)
	p.Output.Write([]byte("\033[2J"))
}

// syncMode reconciles the mode tag with session state: a running
// interaction that turned TUI captures the window; an exited one hands
// the presenter back to compose.
func (p *Presenter) syncMode() {
	if p.Mode != ModeExecute && p.Mode != ModeTUI {
		return
	}
	p.Session.Mu.Lock()
	in := p.Session.Store().Get(p.executingID)
	var state interaction.RunState
	tui := false
	if in != nil {
		state = in.State()
		tui = in.TUI
	}
	p.Session.Mu.Unlock()

	switch {
	case in == nil || state == interaction.Exited:
		p.toCompose()
	case tui && p.Mode != ModeTUI:
		p.Mode = ModeTUI
		p.Session.Resize(p.rows, p.cols)
		p.Output.Write([]byte("\033[2J"))
	}
}

// toCompose resets compose-line state when a command finishes.
func (p *Presenter) toCompose() {
	if p.Mode == ModeTUI {
		p.Session.Resize(p.rows-reservedRows, p.cols)
		p.Output.Write([]byte("\033[2J"))
	}
	p.Mode = ModeCompose
	p.line = nil
	p.cursorPos = 0
	p.executingID = 0
}

// submit hands the compose line to the session and enters execute mode.
func (p *Presenter) submit() {
	text := string(p.line)
	p.line = nil
	p.cursorPos = 0
	id := p.Session.Submit(text)
	p.executingID = id
	p.Mode = ModeExecute
	p.syncMode() // builtins may already have exited
}
