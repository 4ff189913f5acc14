package presenter

import (
	"bytes"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"bite/internal/interaction"
	"bite/internal/term"
)

// renderFrame paints one full frame: the session's visible lines (or the
// TUI interaction's screen), the separator, and the input bar.
func (p *Presenter) renderFrame() {
	if p.Mode == ModeTUI {
		p.renderTUI()
		return
	}

	contentRows := p.rows - reservedRows
	var buf bytes.Buffer
	buf.WriteString("\033[?25l")

	// Materialize the tail of the display sequence under the session
	// lock; painting happens after release.
	lines := p.tailLines(contentRows)
	for row := 0; row < contentRows; row++ {
		fmt.Fprintf(&buf, "\033[%d;1H\033[2K", row+1)
		if row < len(lines) {
			renderLine(&buf, lines[row], p.cols)
		}
	}

	p.renderBar(&buf)
	p.Output.Write(buf.Bytes())
}

// tailLines clones the last n display lines so painting can happen
// outside the session lock.
func (p *Presenter) tailLines(n int) []*term.Line {
	ring := make([]*term.Line, 0, n)
	p.Session.IterVisible(func(lines iter.Seq[interaction.LineRef]) {
		for ref := range lines {
			clone := &term.Line{Cells: append([]term.Cell(nil), ref.Line.Cells...)}
			if len(ring) == n {
				ring = append(ring[1:], clone)
			} else {
				ring = append(ring, clone)
			}
		}
	})
	return ring
}

// renderTUI paints the executing interaction's screen full-window.
func (p *Presenter) renderTUI() {
	var buf bytes.Buffer
	buf.WriteString("\033[?25l")
	p.Session.Mu.Lock()
	in := p.Session.Store().Get(p.executingID)
	if in != nil {
		scr := in.Screen(interaction.StreamOutput)
		for row, line := range scr.VisibleLines() {
			fmt.Fprintf(&buf, "\033[%d;1H\033[2K", row+1)
			renderLine(&buf, line, p.cols)
		}
		cur := scr.Cursor()
		col := cur.Col
		if col > p.cols-1 {
			col = p.cols - 1
		}
		fmt.Fprintf(&buf, "\033[%d;%dH", cur.Row+1, col+1)
		if scr.Mode(term.ModeCursorVisible) {
			buf.WriteString("\033[?25h")
		}
	}
	p.Session.Mu.Unlock()
	p.Output.Write(buf.Bytes())
}

// renderLine writes one screen line as ANSI, batching SGR changes across
// runs of identically-styled cells.
func renderLine(buf *bytes.Buffer, line *term.Line, maxCols int) {
	var last term.Pen
	styled := false
	col := 0
	for _, cell := range line.Cells {
		if col >= maxCols {
			break
		}
		if cell.IsSpacer() {
			col++
			continue
		}
		pen := term.Pen{Fg: cell.Fg, Bg: cell.Bg, Attrs: cell.Attrs}
		if pen != last || !styled {
			buf.WriteString("\033[0m")
			buf.WriteString(sgrString(pen))
			last = pen
			styled = true
		}
		r := cell.Rune
		if r == 0 {
			r = ' '
		}
		buf.WriteRune(r)
		col++
		if cell.IsWide() {
			col++
		}
	}
	buf.WriteString("\033[0m")
}

// sgrString encodes a pen as one SGR sequence, empty for the default pen.
func sgrString(p term.Pen) string {
	var params []string
	if p.Attrs.Has(term.AttrBold) {
		params = append(params, "1")
	}
	if p.Attrs.Has(term.AttrFaint) {
		params = append(params, "2")
	}
	if p.Attrs.Has(term.AttrItalic) {
		params = append(params, "3")
	}
	if p.Attrs.Has(term.AttrUnderline) {
		params = append(params, "4")
	}
	if p.Attrs.Has(term.AttrBlink) {
		params = append(params, "5")
	}
	if p.Attrs.Has(term.AttrInverse) {
		params = append(params, "7")
	}
	if p.Attrs.Has(term.AttrHidden) {
		params = append(params, "8")
	}
	if p.Attrs.Has(term.AttrStrikeout) {
		params = append(params, "9")
	}
	params = append(params, colorParams(p.Fg, false)...)
	params = append(params, colorParams(p.Bg, true)...)
	if len(params) == 0 {
		return ""
	}
	return "\033[" + strings.Join(params, ";") + "m"
}

func colorParams(c term.Color, background bool) []string {
	base := 30
	ext := "38"
	if background {
		base = 40
		ext = "48"
	}
	switch c.Mode {
	case term.ColorModePalette:
		switch {
		case c.Index < 8:
			return []string{strconv.Itoa(base + int(c.Index))}
		case c.Index < 16:
			return []string{strconv.Itoa(base + 60 + int(c.Index) - 8)}
		default:
			return []string{ext, "5", strconv.Itoa(int(c.Index))}
		}
	case term.ColorModeRGB:
		return []string{ext, "2",
			strconv.Itoa(int(c.R)), strconv.Itoa(int(c.G)), strconv.Itoa(int(c.B))}
	}
	return nil
}

// renderBar draws the separator with the mode label and the input line.
func (p *Presenter) renderBar(buf *bytes.Buffer) {
	sepRow := p.rows - 1
	inputRow := p.rows

	fmt.Fprintf(buf, "\033[%d;1H\033[2K", sepRow)
	label := " " + p.Mode.String() + " | " + p.statusLabel()
	if help := p.helpLabel(); help != "" {
		label += " | " + help
	}
	if len(label) > p.cols {
		label = label[:p.cols]
	}
	buf.WriteString(p.barStyle())
	buf.WriteString(label)
	if gap := p.cols - len(label); gap > 0 {
		buf.WriteString(strings.Repeat(" ", gap))
	}
	buf.WriteString("\033[0m")

	prompt := "> "
	display := string(p.line)
	maxInput := p.cols - len(prompt)
	runes := []rune(display)
	if len(runes) > maxInput && maxInput > 0 {
		runes = runes[len(runes)-maxInput:]
		display = string(runes)
	}
	fmt.Fprintf(buf, "\033[%d;1H\033[2K", inputRow)
	fmt.Fprintf(buf, "\033[36m%s\033[0m%s", prompt, display)

	cursorCol := len(prompt) + p.cursorPos + 1
	if cursorCol > p.cols {
		cursorCol = p.cols
	}
	fmt.Fprintf(buf, "\033[%d;%dH\033[?25h", inputRow, cursorCol)
}

func (p *Presenter) barStyle() string {
	switch p.Mode {
	case ModeExecute:
		return "\033[7m\033[33m"
	case ModeHistory:
		return "\033[7m\033[34m"
	case ModeComplete:
		return "\033[7m\033[35m"
	default:
		return "\033[7m\033[36m"
	}
}

func (p *Presenter) statusLabel() string {
	if p.Mode == ModeExecute {
		return "running"
	}
	p.Session.Mu.Lock()
	dir := p.Session.Interpreter().Dir()
	p.Session.Mu.Unlock()
	return dir
}

func (p *Presenter) helpLabel() string {
	switch p.Mode {
	case ModeCompose:
		return "Up history | Tab complete | Enter run | Ctrl-D quit"
	case ModeHistory:
		return "Up/Down browse | Enter accept | Esc cancel"
	case ModeComplete:
		return "Tab next | Enter accept | Esc cancel"
	case ModeExecute:
		return "Ctrl-C interrupt"
	}
	return ""
}
