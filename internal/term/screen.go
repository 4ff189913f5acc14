package term

import (
	"iter"

	"github.com/mattn/go-runewidth"
)

// Mode is a bitmask of screen behavior flags.
type Mode uint32

const (
	// ModeInsert shifts cells right instead of overwriting (IRM).
	ModeInsert Mode = 1 << iota
	// ModeWrap enables automatic line wrapping at the right margin (DECAWM).
	ModeWrap
	// ModeOrigin makes cursor addressing relative to the scroll region (DECOM).
	ModeOrigin
	// ModeCursorVisible shows the cursor (DECTCEM).
	ModeCursorVisible
	// ModeCursorBlink enables cursor blinking.
	ModeCursorBlink
	// ModeAppCursorKeys selects application cursor key encoding (DECCKM).
	ModeAppCursorKeys
	// ModeAppKeypad selects application keypad encoding (DECKPAM).
	ModeAppKeypad
	// ModeBracketedPaste wraps pasted text in CSI 200~ / 201~ markers.
	ModeBracketedPaste
	// ModeReverseVideo swaps default foreground and background (DECSCNM).
	ModeReverseVideo
	// ModeMouseClick reports button presses (mode 1000).
	ModeMouseClick
	// ModeMouseButton reports presses and drag motion (mode 1002).
	ModeMouseButton
	// ModeMouseAny reports all motion (mode 1003).
	ModeMouseAny
	// ModeMouseSGR selects SGR mouse encoding (mode 1006).
	ModeMouseSGR
	// ModeAltScreen is set while the alternate buffer is active.
	ModeAltScreen
)

// DefaultScrollback is the scrollback line cap used when none is configured.
const DefaultScrollback = 10000

// Cursor is a screen position. Col may equal the screen width, which
// denotes the pending-wrap state after writing in the last column.
type Cursor struct {
	Row, Col int
}

// Pen holds the attributes applied to newly written cells.
type Pen struct {
	Fg    Color
	Bg    Color
	Attrs Attr
}

// savedCursor is the state stashed by DECSC and the 1049 buffer switch.
type savedCursor struct {
	cursor Cursor
	pen    Pen
	origin bool
}

// Scrollback is a bounded append-only deque of lines scrolled off the top
// of the normal buffer.
type Scrollback struct {
	lines []*Line
	max   int
}

// NewScrollback returns a scrollback capped at max lines.
func NewScrollback(max int) *Scrollback {
	if max <= 0 {
		max = DefaultScrollback
	}
	return &Scrollback{max: max}
}

// Push appends a line, evicting the oldest when over capacity.
func (sb *Scrollback) Push(l *Line) {
	sb.lines = append(sb.lines, l)
	if len(sb.lines) > sb.max {
		trim := len(sb.lines) - sb.max
		sb.lines = sb.lines[trim:]
	}
}

// Len returns the number of stored lines.
func (sb *Scrollback) Len() int {
	return len(sb.lines)
}

// Line returns the stored line at index i, oldest first. Nil if out of range.
func (sb *Scrollback) Line(i int) *Line {
	if i < 0 || i >= len(sb.lines) {
		return nil
	}
	return sb.lines[i]
}

// Clear drops all stored lines.
func (sb *Scrollback) Clear() {
	sb.lines = nil
}

// Screen is a rectangular character matrix with cursor, scroll region,
// alternate buffer, and saved-cursor state. All operations are total:
// out-of-range parameters are clamped. Screen does no locking of its own;
// the owner serializes access.
type Screen struct {
	rows, cols int

	normal     []*Line
	alt        []*Line
	scrollback *Scrollback

	cursor Cursor
	pen    Pen

	saved    *savedCursor // DECSC / SCOSC state
	altSaved *savedCursor // cursor stashed by the 1049 switch

	top, bottom int // scroll region, inclusive
	tabStops    []bool
	modes       Mode

	title     string
	palette   map[int]Color // OSC 4 overrides
	fgDefault *Color        // OSC 10 override, nil = terminal default
	bgDefault *Color        // OSC 11 override
}

// NewScreen returns a rows x cols screen with default modes (wrap on,
// cursor visible) and a scrollback capped at scrollbackMax lines.
func NewScreen(rows, cols, scrollbackMax int) *Screen {
	if rows <= 0 {
		rows = 24
	}
	if cols <= 0 {
		cols = 80
	}
	s := &Screen{
		rows:       rows,
		cols:       cols,
		scrollback: NewScrollback(scrollbackMax),
		palette:    make(map[int]Color),
	}
	s.normal = makeLines(rows, cols)
	s.alt = makeLines(rows, cols)
	s.top = 0
	s.bottom = rows - 1
	s.modes = ModeWrap | ModeCursorVisible
	s.tabStops = defaultTabStops(cols)
	return s
}

func makeLines(rows, cols int) []*Line {
	lines := make([]*Line, rows)
	for i := range lines {
		lines[i] = blankLine(cols)
	}
	return lines
}

func defaultTabStops(cols int) []bool {
	stops := make([]bool, cols)
	for i := 0; i < cols; i += 8 {
		stops[i] = true
	}
	return stops
}

// Rows returns the screen height.
func (s *Screen) Rows() int { return s.rows }

// Cols returns the screen width.
func (s *Screen) Cols() int { return s.cols }

// Cursor returns the current cursor position.
func (s *Screen) Cursor() Cursor { return s.cursor }

// Pen returns the current write attributes.
func (s *Screen) Pen() Pen { return s.pen }

// SetPen replaces the current write attributes.
func (s *Screen) SetPen(p Pen) { s.pen = p }

// Title returns the window title set via OSC 0/1/2.
func (s *Screen) Title() string { return s.title }

// SetTitle records the window title.
func (s *Screen) SetTitle(t string) { s.title = t }

// Scrollback returns the normal buffer's scrollback store.
func (s *Screen) Scrollback() *Scrollback { return s.scrollback }

// Mode reports whether all bits of m are set.
func (s *Screen) Mode(m Mode) bool { return s.modes&m == m }

// AltActive reports whether the alternate buffer is in use.
func (s *Screen) AltActive() bool { return s.Mode(ModeAltScreen) }

// lines returns the active buffer.
func (s *Screen) lines() []*Line {
	if s.Mode(ModeAltScreen) {
		return s.alt
	}
	return s.normal
}

// Line returns the visible line at row, or nil when out of range.
func (s *Screen) Line(row int) *Line {
	if row < 0 || row >= s.rows {
		return nil
	}
	return s.lines()[row]
}

// Cell returns a copy of the cell at (row, col), blank when out of range.
func (s *Screen) Cell(row, col int) Cell {
	if row < 0 || row >= s.rows || col < 0 || col >= s.cols {
		return BlankCell()
	}
	return s.lines()[row].Cells[col]
}

// VisibleLines iterates the active buffer top to bottom for one draw
// frame. The caller must hold whatever lock guards the screen for the
// duration of the iteration.
func (s *Screen) VisibleLines() iter.Seq2[int, *Line] {
	return func(yield func(int, *Line) bool) {
		for i, l := range s.lines() {
			if !yield(i, l) {
				return
			}
		}
	}
}

// blankCell returns the fill cell for erase and scroll operations. Erased
// cells inherit the current background color (background-color erase) but
// no other attributes.
func (s *Screen) blankCell() Cell {
	return Cell{Rune: ' ', Bg: s.pen.Bg}
}

// clampRow bounds r into the addressable row range, honoring origin mode.
func (s *Screen) clampRow(r int) int {
	lo, hi := 0, s.rows-1
	if s.Mode(ModeOrigin) {
		lo, hi = s.top, s.bottom
	}
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}

// homePosition is where the cursor lands after DECSTBM, RIS, and origin
// mode changes.
func (s *Screen) homePosition() Cursor {
	if s.Mode(ModeOrigin) {
		return Cursor{Row: s.top, Col: 0}
	}
	return Cursor{}
}

// MoveTo places the cursor at absolute (row, col). In origin mode row is
// relative to the scroll region top and confined to the region.
func (s *Screen) MoveTo(row, col int) {
	if s.Mode(ModeOrigin) {
		row += s.top
	}
	s.cursor.Row = s.clampRow(row)
	s.cursor.Col = clamp(col, 0, s.cols-1)
}

// MoveRelative moves the cursor by (dr, dc), clamped to the addressable
// area. A pending wrap is cancelled first.
func (s *Screen) MoveRelative(dr, dc int) {
	if s.cursor.Col > s.cols-1 {
		s.cursor.Col = s.cols - 1
	}
	s.cursor.Row = s.clampRow(s.cursor.Row + dr)
	s.cursor.Col = clamp(s.cursor.Col+dc, 0, s.cols-1)
}

// MoveToColumn sets the cursor column (CHA), cancelling pending wrap.
func (s *Screen) MoveToColumn(col int) {
	s.cursor.Col = clamp(col, 0, s.cols-1)
}

// MoveToRow sets the cursor row (VPA) without changing the column.
func (s *Screen) MoveToRow(row int) {
	if s.Mode(ModeOrigin) {
		row += s.top
	}
	s.cursor.Row = s.clampRow(row)
}

// PlaceChar writes one printable character at the cursor, honoring wrap,
// insert mode, and wide glyphs, then advances the cursor. The advanced
// column may equal the width (pending wrap).
func (s *Screen) PlaceChar(r rune) {
	w := runewidth.RuneWidth(r)
	if w <= 0 {
		// Zero-width characters do not occupy a cell.
		return
	}
	if w > s.cols {
		return
	}

	if s.cursor.Col+w > s.cols {
		if s.Mode(ModeWrap) {
			line := s.lines()[s.cursor.Row]
			line.Wrapped = true
			line.Dirty = true
			s.LineFeed()
			s.cursor.Col = 0
		} else {
			s.cursor.Col = s.cols - w
		}
	}

	line := s.lines()[s.cursor.Row]
	if s.Mode(ModeInsert) {
		s.insertCells(line, s.cursor.Col, w)
	}

	s.clearWideAt(line, s.cursor.Col)
	if w == 2 {
		s.clearWideAt(line, s.cursor.Col+1)
	}

	cell := Cell{Rune: r, Fg: s.pen.Fg, Bg: s.pen.Bg, Attrs: s.pen.Attrs}
	if w == 2 {
		cell.Flags = CellWide
	}
	line.Cells[s.cursor.Col] = cell
	if w == 2 {
		line.Cells[s.cursor.Col+1] = Cell{
			Rune: r, Fg: s.pen.Fg, Bg: s.pen.Bg, Attrs: s.pen.Attrs, Flags: CellSpacer,
		}
	}
	line.Dirty = true
	s.cursor.Col += w
}

// clearWideAt repairs a wide glyph pair when one of its halves is about
// to be overwritten.
func (s *Screen) clearWideAt(line *Line, col int) {
	if col < 0 || col >= len(line.Cells) {
		return
	}
	c := line.Cells[col]
	if c.IsWide() && col+1 < len(line.Cells) {
		line.Cells[col+1] = s.blankCell()
	}
	if c.IsSpacer() && col > 0 {
		line.Cells[col-1] = s.blankCell()
	}
}

// insertCells shifts cells [col, cols-1-n] right by n, dropping overflow.
func (s *Screen) insertCells(line *Line, col, n int) {
	for i := len(line.Cells) - 1; i >= col+n; i-- {
		line.Cells[i] = line.Cells[i-n]
	}
	for i := col; i < col+n && i < len(line.Cells); i++ {
		line.Cells[i] = s.blankCell()
	}
	line.Dirty = true
}

// LineFeed moves the cursor down one row, scrolling the region when the
// cursor sits on its bottom row.
func (s *Screen) LineFeed() {
	if s.cursor.Row == s.bottom {
		s.ScrollUp(1)
	} else if s.cursor.Row < s.rows-1 {
		s.cursor.Row++
	}
}

// ReverseLineFeed moves the cursor up one row, scrolling the region down
// when the cursor sits on its top row (RI).
func (s *Screen) ReverseLineFeed() {
	if s.cursor.Row == s.top {
		s.ScrollDown(1)
	} else if s.cursor.Row > 0 {
		s.cursor.Row--
	}
}

// CarriageReturn moves the cursor to column zero.
func (s *Screen) CarriageReturn() {
	s.cursor.Col = 0
}

// Backspace moves the cursor one column left, stopping at the margin.
func (s *Screen) Backspace() {
	if s.cursor.Col > s.cols-1 {
		s.cursor.Col = s.cols - 1
	}
	if s.cursor.Col > 0 {
		s.cursor.Col--
	}
}

// ScrollUp scrolls the region up by n. Lines leaving the top go to
// scrollback only when the region spans the full screen and the normal
// buffer is active.
func (s *Screen) ScrollUp(n int) {
	n = clamp(n, 0, s.bottom-s.top+1)
	if n == 0 {
		return
	}
	lines := s.lines()
	toScrollback := s.top == 0 && s.bottom == s.rows-1 && !s.Mode(ModeAltScreen)
	for i := 0; i < n; i++ {
		if toScrollback {
			s.scrollback.Push(lines[s.top+i])
		}
	}
	for r := s.top; r <= s.bottom-n; r++ {
		lines[r] = lines[r+n]
		lines[r].Dirty = true
	}
	for r := s.bottom - n + 1; r <= s.bottom; r++ {
		lines[r] = newLine(s.cols, s.blankCell())
	}
}

// ScrollDown scrolls the region down by n. The vacated top lines are
// blanked; lines pushed past the bottom are discarded.
func (s *Screen) ScrollDown(n int) {
	n = clamp(n, 0, s.bottom-s.top+1)
	if n == 0 {
		return
	}
	lines := s.lines()
	for r := s.bottom; r >= s.top+n; r-- {
		lines[r] = lines[r-n]
		lines[r].Dirty = true
	}
	for r := s.top; r < s.top+n; r++ {
		lines[r] = newLine(s.cols, s.blankCell())
	}
}

// InsertLines inserts n blank lines at the cursor row, shifting lines
// below down within the scroll region. No-op outside the region.
func (s *Screen) InsertLines(n int) {
	if s.cursor.Row < s.top || s.cursor.Row > s.bottom {
		return
	}
	savedTop := s.top
	s.top = s.cursor.Row
	s.ScrollDown(n)
	s.top = savedTop
	s.cursor.Col = 0
}

// DeleteLines removes n lines at the cursor row, shifting lines below up
// within the scroll region. No-op outside the region.
func (s *Screen) DeleteLines(n int) {
	if s.cursor.Row < s.top || s.cursor.Row > s.bottom {
		return
	}
	savedTop := s.top
	s.top = s.cursor.Row
	// Deleted lines never enter scrollback.
	s.scrollUpNoScrollback(n)
	s.top = savedTop
	s.cursor.Col = 0
}

func (s *Screen) scrollUpNoScrollback(n int) {
	n = clamp(n, 0, s.bottom-s.top+1)
	if n == 0 {
		return
	}
	lines := s.lines()
	for r := s.top; r <= s.bottom-n; r++ {
		lines[r] = lines[r+n]
		lines[r].Dirty = true
	}
	for r := s.bottom - n + 1; r <= s.bottom; r++ {
		lines[r] = newLine(s.cols, s.blankCell())
	}
}

// InsertChars inserts n blank cells at the cursor (ICH).
func (s *Screen) InsertChars(n int) {
	if s.cursor.Row < 0 || s.cursor.Row >= s.rows {
		return
	}
	n = clamp(n, 0, s.cols)
	if n == 0 {
		return
	}
	col := clamp(s.cursor.Col, 0, s.cols-1)
	s.insertCells(s.lines()[s.cursor.Row], col, n)
}

// DeleteChars removes n cells at the cursor, shifting the rest left (DCH).
func (s *Screen) DeleteChars(n int) {
	n = clamp(n, 0, s.cols)
	if n == 0 {
		return
	}
	line := s.lines()[s.cursor.Row]
	col := clamp(s.cursor.Col, 0, s.cols-1)
	for i := col; i < s.cols-n; i++ {
		line.Cells[i] = line.Cells[i+n]
	}
	line.fill(s.cols-n, s.cols, s.blankCell())
}

// EraseChars blanks n cells from the cursor without shifting (ECH).
func (s *Screen) EraseChars(n int) {
	n = clamp(n, 0, s.cols)
	if n == 0 {
		return
	}
	col := clamp(s.cursor.Col, 0, s.cols-1)
	s.lines()[s.cursor.Row].fill(col, col+n, s.blankCell())
}

// EraseRegion selects the extent of EraseInLine and EraseInDisplay.
type EraseRegion int

const (
	// EraseToEnd erases from the cursor to the end of the line or screen.
	EraseToEnd EraseRegion = iota
	// EraseToStart erases from the start of the line or screen through the cursor.
	EraseToStart
	// EraseAll erases the whole line or screen.
	EraseAll
	// EraseScrollback clears saved lines only (ED 3).
	EraseScrollback
)

// EraseInLine implements EL.
func (s *Screen) EraseInLine(region EraseRegion) {
	line := s.lines()[s.cursor.Row]
	col := clamp(s.cursor.Col, 0, s.cols-1)
	switch region {
	case EraseToEnd:
		line.fill(col, s.cols, s.blankCell())
	case EraseToStart:
		line.fill(0, col+1, s.blankCell())
	case EraseAll:
		line.fill(0, s.cols, s.blankCell())
	}
}

// EraseInDisplay implements ED.
func (s *Screen) EraseInDisplay(region EraseRegion) {
	lines := s.lines()
	col := clamp(s.cursor.Col, 0, s.cols-1)
	switch region {
	case EraseToEnd:
		lines[s.cursor.Row].fill(col, s.cols, s.blankCell())
		for r := s.cursor.Row + 1; r < s.rows; r++ {
			lines[r].fill(0, s.cols, s.blankCell())
			lines[r].Wrapped = false
		}
	case EraseToStart:
		for r := 0; r < s.cursor.Row; r++ {
			lines[r].fill(0, s.cols, s.blankCell())
			lines[r].Wrapped = false
		}
		lines[s.cursor.Row].fill(0, col+1, s.blankCell())
	case EraseAll:
		for r := 0; r < s.rows; r++ {
			lines[r].fill(0, s.cols, s.blankCell())
			lines[r].Wrapped = false
		}
	case EraseScrollback:
		s.scrollback.Clear()
	}
}

// SetScrollRegion sets the scroll region to [top, bottom] (inclusive,
// zero-based), clamped to the screen. Degenerate regions reset to the
// full screen. The cursor homes afterwards, as DECSTBM does.
func (s *Screen) SetScrollRegion(top, bottom int) {
	top = clamp(top, 0, s.rows-1)
	bottom = clamp(bottom, 0, s.rows-1)
	if top >= bottom {
		top, bottom = 0, s.rows-1
	}
	s.top, s.bottom = top, bottom
	s.cursor = s.homePosition()
}

// ScrollRegion returns the current region bounds, inclusive.
func (s *Screen) ScrollRegion() (top, bottom int) {
	return s.top, s.bottom
}

// SaveCursor stashes cursor position, pen, and origin mode (DECSC).
func (s *Screen) SaveCursor() {
	s.saved = &savedCursor{cursor: s.cursor, pen: s.pen, origin: s.Mode(ModeOrigin)}
}

// RestoreCursor restores the DECSC state. Without a prior save the cursor
// homes with a default pen, as xterm does after RIS.
func (s *Screen) RestoreCursor() {
	if s.saved == nil {
		s.cursor = Cursor{}
		s.pen = Pen{}
		return
	}
	s.cursor = s.saved.cursor
	s.pen = s.saved.pen
	s.setModeBit(ModeOrigin, s.saved.origin)
	s.cursor.Row = clamp(s.cursor.Row, 0, s.rows-1)
	s.cursor.Col = clamp(s.cursor.Col, 0, s.cols-1)
}

// SetModes sets or clears mode bits. Toggling origin mode homes the
// cursor to the region's top-left.
func (s *Screen) SetModes(m Mode, on bool) {
	had := s.Mode(ModeOrigin)
	s.setModeBit(m, on)
	if m&ModeOrigin != 0 && had != on {
		s.cursor = s.homePosition()
	}
}

func (s *Screen) setModeBit(m Mode, on bool) {
	if on {
		s.modes |= m
	} else {
		s.modes &^= m
	}
}

// EnterAlt switches to the alternate buffer, saving the cursor first.
// The alternate buffer starts cleared. No-op when already active.
func (s *Screen) EnterAlt() {
	if s.Mode(ModeAltScreen) {
		return
	}
	s.altSaved = &savedCursor{cursor: s.cursor, pen: s.pen, origin: s.Mode(ModeOrigin)}
	s.setModeBit(ModeAltScreen, true)
	s.alt = makeLines(s.rows, s.cols)
	s.cursor = Cursor{}
}

// ExitAlt switches back to the normal buffer and restores the cursor
// saved on entry. The normal buffer and scrollback are untouched by
// anything drawn while the alternate buffer was active.
func (s *Screen) ExitAlt() {
	if !s.Mode(ModeAltScreen) {
		return
	}
	s.setModeBit(ModeAltScreen, false)
	if s.altSaved != nil {
		s.cursor = s.altSaved.cursor
		s.pen = s.altSaved.pen
		s.setModeBit(ModeOrigin, s.altSaved.origin)
		s.altSaved = nil
	}
	s.cursor.Row = clamp(s.cursor.Row, 0, s.rows-1)
	s.cursor.Col = clamp(s.cursor.Col, 0, s.cols-1)
	for _, l := range s.normal {
		l.Dirty = true
	}
}

// Tab moves the cursor to the next tab stop, or the last column.
func (s *Screen) Tab() {
	for c := s.cursor.Col + 1; c < s.cols; c++ {
		if s.tabStops[c] {
			s.cursor.Col = c
			return
		}
	}
	s.cursor.Col = s.cols - 1
}

// BackTab moves the cursor to the previous tab stop, or column zero.
func (s *Screen) BackTab() {
	for c := min(s.cursor.Col, s.cols) - 1; c >= 0; c-- {
		if s.tabStops[c] {
			s.cursor.Col = c
			return
		}
	}
	s.cursor.Col = 0
}

// SetTabStop records a tab stop at the cursor column (HTS).
func (s *Screen) SetTabStop() {
	if s.cursor.Col >= 0 && s.cursor.Col < s.cols {
		s.tabStops[s.cursor.Col] = true
	}
}

// ClearTabStop removes the tab stop at the cursor column (TBC 0).
func (s *Screen) ClearTabStop() {
	if s.cursor.Col >= 0 && s.cursor.Col < s.cols {
		s.tabStops[s.cursor.Col] = false
	}
}

// ClearAllTabStops removes every tab stop (TBC 3).
func (s *Screen) ClearAllTabStops() {
	for i := range s.tabStops {
		s.tabStops[i] = false
	}
}

// ShiftLeft scrolls the whole region's columns left by n (DECSL: CSI n SP @).
func (s *Screen) ShiftLeft(n int) {
	n = clamp(n, 0, s.cols)
	if n == 0 {
		return
	}
	for r := s.top; r <= s.bottom; r++ {
		line := s.lines()[r]
		for c := 0; c < s.cols-n; c++ {
			line.Cells[c] = line.Cells[c+n]
		}
		line.fill(s.cols-n, s.cols, s.blankCell())
	}
}

// ShiftRight scrolls the whole region's columns right by n (DECSR: CSI n SP A).
func (s *Screen) ShiftRight(n int) {
	n = clamp(n, 0, s.cols)
	if n == 0 {
		return
	}
	for r := s.top; r <= s.bottom; r++ {
		line := s.lines()[r]
		for c := s.cols - 1; c >= n; c-- {
			line.Cells[c] = line.Cells[c-n]
		}
		line.fill(0, n, s.blankCell())
	}
}

// FillWithE fills the screen with E for the DECALN alignment pattern.
func (s *Screen) FillWithE() {
	for _, l := range s.lines() {
		l.fill(0, s.cols, Cell{Rune: 'E'})
	}
}

// Resize re-lays both buffers to the new dimensions. Lines are padded or
// truncated, the cursor and scroll region clamp, and tab stops extend.
// A resize to zero or negative dimensions is a no-op.
func (s *Screen) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	if rows == s.rows && cols == s.cols {
		return
	}

	resizeBuffer := func(lines []*Line) []*Line {
		for _, l := range lines {
			l.resize(cols, BlankCell())
		}
		switch {
		case rows < len(lines):
			lines = lines[:rows]
		case rows > len(lines):
			for len(lines) < rows {
				lines = append(lines, blankLine(cols))
			}
		}
		return lines
	}
	s.normal = resizeBuffer(s.normal)
	s.alt = resizeBuffer(s.alt)

	if cols > len(s.tabStops) {
		stops := make([]bool, cols)
		copy(stops, s.tabStops)
		for i := len(s.tabStops); i < cols; i++ {
			stops[i] = i%8 == 0
		}
		s.tabStops = stops
	} else {
		s.tabStops = s.tabStops[:cols]
	}

	wasFull := s.top == 0 && s.bottom == s.rows-1
	s.rows = rows
	s.cols = cols
	if wasFull {
		s.top, s.bottom = 0, rows-1
	} else {
		s.top = clamp(s.top, 0, rows-1)
		s.bottom = clamp(s.bottom, s.top, rows-1)
	}
	s.cursor.Row = clamp(s.cursor.Row, 0, rows-1)
	s.cursor.Col = clamp(s.cursor.Col, 0, cols)
	for _, l := range s.lines() {
		l.Dirty = true
	}
}

// Reset reinitializes the screen to its power-on state (RIS). The
// scrollback is retained.
func (s *Screen) Reset() {
	s.normal = makeLines(s.rows, s.cols)
	s.alt = makeLines(s.rows, s.cols)
	s.cursor = Cursor{}
	s.pen = Pen{}
	s.saved = nil
	s.altSaved = nil
	s.top, s.bottom = 0, s.rows-1
	s.modes = ModeWrap | ModeCursorVisible
	s.tabStops = defaultTabStops(s.cols)
	s.palette = make(map[int]Color)
	s.fgDefault = nil
	s.bgDefault = nil
}

// SetPaletteColor overrides a palette slot (OSC 4).
func (s *Screen) SetPaletteColor(idx int, c Color) {
	if idx < 0 || idx > 255 {
		return
	}
	s.palette[idx] = c
}

// PaletteColorAt returns the override for a palette slot, if any.
func (s *Screen) PaletteColorAt(idx int) (Color, bool) {
	c, ok := s.palette[idx]
	return c, ok
}

// ResetPalette drops all OSC 4 overrides (OSC 104).
func (s *Screen) ResetPalette() {
	s.palette = make(map[int]Color)
}

// SetDefaultFg overrides the terminal default foreground (OSC 10).
func (s *Screen) SetDefaultFg(c Color) { s.fgDefault = &c }

// SetDefaultBg overrides the terminal default background (OSC 11).
func (s *Screen) SetDefaultBg(c Color) { s.bgDefault = &c }

// DefaultFg returns the OSC 10 override, if set.
func (s *Screen) DefaultFg() (Color, bool) {
	if s.fgDefault == nil {
		return Color{}, false
	}
	return *s.fgDefault, true
}

// DefaultBg returns the OSC 11 override, if set.
func (s *Screen) DefaultBg() (Color, bool) {
	if s.bgDefault == nil {
		return Color{}, false
	}
	return *s.bgDefault, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
