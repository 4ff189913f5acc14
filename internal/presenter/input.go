package presenter

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"unicode/utf8"

	"bite/internal/interaction"
	"bite/internal/term"
)

// handleInput dispatches raw keyboard bytes on the current mode tag.
func (p *Presenter) handleInput(data []byte) {
	switch p.Mode {
	case ModeExecute:
		p.handleExecuteBytes(data)
	case ModeTUI:
		p.handleTUIBytes(data)
	case ModeHistory:
		p.handleHistoryBytes(data)
	case ModeComplete:
		p.handleCompleteBytes(data)
	default:
		p.handleComposeBytes(data)
	}
}

// Control bytes shared across modes.
const (
	ctrlC    = 0x03
	ctrlD    = 0x04
	ctrlQuit = 0x1c // Ctrl-backslash
	ctrlZ    = 0x1a
	ctrlU    = 0x15
	ctrlL    = 0x0c
	tabKey   = 0x09
	escKey   = 0x1b
	delKey   = 0x7f
	bsKey    = 0x08
)

func (p *Presenter) handleComposeBytes(data []byte) {
	i := 0
	for i < len(data) {
		b := data[i]
		switch {
		case b == '\r' || b == '\n':
			p.submit()
			i++
		case b == ctrlD:
			if len(p.line) == 0 {
				p.quit = true
			}
			i++
		case b == ctrlC:
			p.line = nil
			p.cursorPos = 0
			i++
		case b == ctrlU:
			p.line = p.line[:0]
			p.cursorPos = 0
			i++
		case b == ctrlL:
			p.Output.Write([]byte("\033[2J"))
			i++
		case b == tabKey:
			p.startComplete()
			i++
		case b == delKey || b == bsKey:
			if p.cursorPos > 0 {
				p.line = append(p.line[:p.cursorPos-1], p.line[p.cursorPos:]...)
				p.cursorPos--
			}
			i++
		case b == escKey:
			key, n := decodeEscape(data[i:])
			switch key {
			case keyUp:
				p.startHistory()
			case keyLeft:
				if p.cursorPos > 0 {
					p.cursorPos--
				}
			case keyRight:
				if p.cursorPos < len(p.line) {
					p.cursorPos++
				}
			}
			i += n
		default:
			r, size := utf8.DecodeRune(data[i:])
			if r >= 0x20 && r != utf8.RuneError {
				p.line = append(p.line[:p.cursorPos],
					append([]rune{r}, p.line[p.cursorPos:]...)...)
				p.cursorPos++
			}
			i += size
		}
	}
}

func (p *Presenter) handleExecuteBytes(data []byte) {
	i := 0
	for i < len(data) {
		switch data[i] {
		case ctrlC:
			p.Session.SendSignal(p.executingID, syscall.SIGINT)
			i++
		case ctrlQuit:
			p.Session.SendSignal(p.executingID, syscall.SIGQUIT)
			i++
		case ctrlZ:
			p.Session.SendSignal(p.executingID, syscall.SIGTSTP)
			i++
		default:
			// Everything else is the child's input.
			p.Session.SendStdin(p.executingID, data[i:])
			return
		}
	}
}

// handleTUIBytes routes keys raw to the child, translating cursor keys
// when the child selected application encodings.
func (p *Presenter) handleTUIBytes(data []byte) {
	p.Session.Mu.Lock()
	var appCursor bool
	if in := p.Session.Store().Get(p.executingID); in != nil {
		appCursor = in.Screen(interaction.StreamOutput).Mode(term.ModeAppCursorKeys)
	}
	p.Session.Mu.Unlock()

	p.Session.SendStdin(p.executingID, TranslateKeys(data, appCursor))
}

// TranslateKeys rewrites CSI cursor keys to their SS3 application forms
// when the child enabled DECCKM. Everything else passes through.
func TranslateKeys(data []byte, appCursor bool) []byte {
	if !appCursor {
		return data
	}
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if data[i] == escKey && i+2 < len(data) && data[i+1] == '[' {
			switch data[i+2] {
			case 'A', 'B', 'C', 'D', 'H', 'F':
				out = append(out, escKey, 'O', data[i+2])
				i += 3
				continue
			}
		}
		out = append(out, data[i])
		i++
	}
	return out
}

func (p *Presenter) handleHistoryBytes(data []byte) {
	i := 0
	for i < len(data) {
		b := data[i]
		switch {
		case b == '\r' || b == '\n':
			p.Mode = ModeCompose
			p.submit()
			i++
		case b == escKey:
			key, n := decodeEscape(data[i:])
			switch key {
			case keyUp:
				p.historyMove(1)
			case keyDown:
				p.historyMove(-1)
			case keyNone:
				// Bare escape cancels browsing.
				p.line = append([]rune(nil), p.saved...)
				p.cursorPos = len(p.line)
				p.Mode = ModeCompose
			}
			i += n
		default:
			// Any other key accepts the selection and keeps typing.
			p.Mode = ModeCompose
			p.handleComposeBytes(data[i:])
			return
		}
	}
}

func (p *Presenter) handleCompleteBytes(data []byte) {
	i := 0
	for i < len(data) {
		b := data[i]
		switch {
		case b == tabKey:
			p.completeMove(1)
			i++
		case b == '\r' || b == '\n':
			p.Mode = ModeCompose
			i++
		case b == escKey:
			key, n := decodeEscape(data[i:])
			if key == keyNone {
				p.line = append([]rune(nil), p.saved...)
				p.cursorPos = len(p.line)
				p.Mode = ModeCompose
			}
			i += n
		default:
			p.Mode = ModeCompose
			p.handleComposeBytes(data[i:])
			return
		}
	}
}

// startHistory enters history mode seeded with the current line as a
// prefix filter.
func (p *Presenter) startHistory() {
	if p.History == nil {
		return
	}
	p.saved = append([]rune(nil), p.line...)
	p.histMatches = p.History.SearchPrefix(string(p.line))
	if len(p.histMatches) == 0 {
		return
	}
	p.histIdx = 0
	p.line = []rune(p.histMatches[0])
	p.cursorPos = len(p.line)
	p.Mode = ModeHistory
}

// historyMove steps through matches; delta 1 is older, -1 newer. Moving
// past the newest returns to the saved compose line.
func (p *Presenter) historyMove(delta int) {
	next := p.histIdx + delta
	if next < 0 {
		p.line = append([]rune(nil), p.saved...)
		p.cursorPos = len(p.line)
		p.Mode = ModeCompose
		return
	}
	if next >= len(p.histMatches) {
		return
	}
	p.histIdx = next
	p.line = []rune(p.histMatches[next])
	p.cursorPos = len(p.line)
}

// startComplete enters completion mode for the word under the cursor.
func (p *Presenter) startComplete() {
	prefix := string(p.line)
	if strings.ContainsAny(prefix, " \t") {
		return // only the command word completes
	}
	p.Session.Mu.Lock()
	pathEnv := p.Session.Interpreter().Getenv("PATH")
	p.Session.Mu.Unlock()
	p.candidates = completeCommand(prefix, pathEnv)
	if len(p.candidates) == 0 {
		return
	}
	p.saved = append([]rune(nil), p.line...)
	p.candIdx = 0
	p.line = []rune(p.candidates[0])
	p.cursorPos = len(p.line)
	p.Mode = ModeComplete
}

func (p *Presenter) completeMove(delta int) {
	if len(p.candidates) == 0 {
		return
	}
	p.candIdx = (p.candIdx + delta + len(p.candidates)) % len(p.candidates)
	p.line = []rune(p.candidates[p.candIdx])
	p.cursorPos = len(p.line)
}

// completeCommand scans PATH for executables matching prefix.
func completeCommand(prefix, pathEnv string) []string {
	if prefix == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, dir := range filepath.SplitList(pathEnv) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !strings.HasPrefix(name, prefix) || seen[name] || e.IsDir() {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Escape decoding for host keyboard input.
type escKeyKind int

const (
	keyNone escKeyKind = iota
	keyUp
	keyDown
	keyLeft
	keyRight
	keyOther
)

// decodeEscape classifies an escape sequence at the head of data and
// returns how many bytes it consumed. A lone ESC consumes one byte.
func decodeEscape(data []byte) (escKeyKind, int) {
	if len(data) < 3 || (data[1] != '[' && data[1] != 'O') {
		return keyNone, 1
	}
	switch data[2] {
	case 'A':
		return keyUp, 3
	case 'B':
		return keyDown, 3
	case 'C':
		return keyRight, 3
	case 'D':
		return keyLeft, 3
	}
	// Consume through the final byte of an unrecognized CSI.
	if data[1] == '[' {
		for i := 2; i < len(data); i++ {
			if data[i] >= 0x40 && data[i] <= 0x7E {
				return keyOther, i + 1
			}
		}
	}
	return keyOther, len(data)
}
