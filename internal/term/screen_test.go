package term

import (
	"fmt"
	"testing"
)

func feed(t *testing.T, e *Emulator, s string) {
	t.Helper()
	if _, err := e.Write([]byte(s)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func rowText(s *Screen, row int) string {
	l := s.Line(row)
	if l == nil {
		return ""
	}
	return l.Text()
}

// Scenario: scroll region plus index at the region bottom (the nl test
// script shape). Ten numbered lines, region rows 2-8 (1-based), cursor
// parked on the region bottom, one line feed.
func TestScrollRegionIndexAtBottom(t *testing.T) {
	e := NewEmulator(25, 80, 100)
	for i := 0; i < 10; i++ {
		feed(t, e, fmt.Sprintf("%02d\r\n", i))
	}
	feed(t, e, "\x1b[2;8r") // region rows 1..7 zero-based
	feed(t, e, "\x1b[8d")   // VPA to region bottom
	feed(t, e, "\n")

	s := e.Screen()
	if got := rowText(s, 0); got != "00" {
		t.Errorf("row 0 = %q, want %q", got, "00")
	}
	for r := 1; r <= 6; r++ {
		want := fmt.Sprintf("%02d", r+1)
		if got := rowText(s, r); got != want {
			t.Errorf("row %d = %q, want %q", r, got, want)
		}
	}
	if got := rowText(s, 7); got != "" {
		t.Errorf("row 7 = %q, want blank", got)
	}
	if got := rowText(s, 8); got != "08" {
		t.Errorf("row 8 = %q, want %q", got, "08")
	}
	if got := rowText(s, 9); got != "09" {
		t.Errorf("row 9 = %q, want %q", got, "09")
	}
	if cur := s.Cursor(); cur.Row != 7 || cur.Col != 0 {
		t.Errorf("cursor = %+v, want row 7 col 0", cur)
	}
}

// Scenario: cursor-up then print continues in the column after the first
// glyph, one row higher.
func TestCursorUpThenChar(t *testing.T) {
	e := NewEmulator(25, 80, 0)
	feed(t, e, "\x1b[14;41H") // zero-based (13, 40)
	feed(t, e, "A\x1b[Aü")

	s := e.Screen()
	if got := s.Cell(13, 40); got.Rune != 'A' || got.Attrs != 0 || !got.Fg.IsDefault() || !got.Bg.IsDefault() {
		t.Errorf("cell (13,40) = %+v, want plain 'A'", got)
	}
	if got := s.Cell(12, 41); got.Rune != 'ü' || got.Attrs != 0 || !got.Fg.IsDefault() || !got.Bg.IsDefault() {
		t.Errorf("cell (12,41) = %+v, want plain 'ü'", got)
	}
	if cur := s.Cursor(); cur.Row != 12 || cur.Col != 42 {
		t.Errorf("cursor = %+v, want row 12 col 42", cur)
	}
}

// Scenario: SGR bold red applies to the next glyph only, reset restores
// the default pen.
func TestSgrBoldRedThenNormal(t *testing.T) {
	e := NewEmulator(25, 80, 0)
	feed(t, e, "\x1b[1;31mX\x1b[0mY")

	s := e.Screen()
	x := s.Cell(0, 0)
	if !x.Attrs.Has(AttrBold) {
		t.Errorf("X attrs = %v, want bold", x.Attrs)
	}
	if x.Fg != PaletteColor(1) {
		t.Errorf("X fg = %+v, want palette 1", x.Fg)
	}
	y := s.Cell(0, 1)
	if y.Attrs != 0 || !y.Fg.IsDefault() {
		t.Errorf("Y = %+v, want default attrs and fg", y)
	}
}

// Scenario: the 1049 round trip restores the normal buffer cell for cell
// and leaves scrollback alone.
func TestAltBufferRoundTrip(t *testing.T) {
	e := NewEmulator(25, 80, 100)
	feed(t, e, "abc")
	s := e.Screen()
	curBefore := s.Cursor()
	sbBefore := s.Scrollback().Len()

	feed(t, e, "\x1b[?1049h")
	if !s.AltActive() {
		t.Fatal("expected alternate buffer active")
	}
	feed(t, e, "xyz")
	if got := rowText(s, 0); got != "xyz" {
		t.Errorf("alt row 0 = %q, want %q", got, "xyz")
	}
	feed(t, e, "\x1b[?1049l")

	if s.AltActive() {
		t.Fatal("expected normal buffer active")
	}
	if got := rowText(s, 0); got != "abc" {
		t.Errorf("row 0 after round trip = %q, want %q", got, "abc")
	}
	if got := s.Scrollback().Len(); got != sbBefore {
		t.Errorf("scrollback len = %d, want %d", got, sbBefore)
	}
	if cur := s.Cursor(); cur != curBefore {
		t.Errorf("cursor = %+v, want %+v", cur, curBefore)
	}
}

func TestSizeInvariantAfterOperations(t *testing.T) {
	e := NewEmulator(10, 20, 50)
	ops := []string{
		"hello world this line is long enough to wrap around the edge",
		"\x1b[5;15r\x1b[3L\x1b[2M",
		"\x1b[10;100H\x1b[5@\x1b[3P\x1b[8X",
		"\x1b[?1049h tui stuff \x1b[?1049l",
		"\x1b[200;200H\x1b[99A\x1b[99D",
	}
	check := func() {
		s := e.Screen()
		rows := 0
		for range s.VisibleLines() {
			rows++
		}
		if rows != s.Rows() {
			t.Fatalf("visible rows = %d, want %d", rows, s.Rows())
		}
		for r, l := range s.VisibleLines() {
			if len(l.Cells) != s.Cols() {
				t.Fatalf("row %d width = %d, want %d", r, len(l.Cells), s.Cols())
			}
		}
		cur := s.Cursor()
		if cur.Row < 0 || cur.Row >= s.Rows() || cur.Col < 0 || cur.Col > s.Cols() {
			t.Fatalf("cursor %+v out of bounds for %dx%d", cur, s.Rows(), s.Cols())
		}
	}
	for _, op := range ops {
		feed(t, e, op)
		check()
	}
	for _, size := range [][2]int{{5, 10}, {30, 90}, {1, 1}, {0, 0}, {24, 80}} {
		e.Resize(size[0], size[1])
		check()
	}
}

func TestScrollRegionIsolation(t *testing.T) {
	e := NewEmulator(10, 20, 50)
	for i := 0; i < 10; i++ {
		feed(t, e, fmt.Sprintf("\x1b[%d;1Hline%d", i+1, i))
	}
	feed(t, e, "\x1b[4;7r")

	s := e.Screen()
	outside := map[int]string{}
	for _, r := range []int{0, 1, 2, 7, 8, 9} {
		outside[r] = rowText(s, r)
	}

	feed(t, e, "\x1b[7d\n\n\n")          // scroll the region up
	feed(t, e, "\x1b[4d\x1bM\x1bM")      // and back down
	feed(t, e, "\x1b[5;1H\x1b[2L\x1b[M") // insert and delete lines inside

	for _, r := range []int{0, 1, 2, 7, 8, 9} {
		if got := rowText(s, r); got != outside[r] {
			t.Errorf("row %d changed: %q -> %q", r, outside[r], got)
		}
	}
	if got := s.Scrollback().Len(); got != 0 {
		t.Errorf("region scroll leaked %d lines to scrollback", got)
	}
}

func TestScrollbackOnFullScreenScroll(t *testing.T) {
	e := NewEmulator(5, 20, 100)
	for i := 0; i < 8; i++ {
		feed(t, e, fmt.Sprintf("line%d\r\n", i))
	}
	s := e.Screen()
	if got := s.Scrollback().Len(); got != 4 {
		t.Fatalf("scrollback len = %d, want 4", got)
	}
	if got := s.Scrollback().Line(0).Text(); got != "line0" {
		t.Errorf("oldest scrollback line = %q, want %q", got, "line0")
	}
}

func TestScrollbackCap(t *testing.T) {
	e := NewEmulator(5, 20, 10)
	for i := 0; i < 50; i++ {
		feed(t, e, fmt.Sprintf("line%d\r\n", i))
	}
	s := e.Screen()
	if got := s.Scrollback().Len(); got != 10 {
		t.Errorf("scrollback len = %d, want 10", got)
	}
}

func TestWrapAndPendingWrap(t *testing.T) {
	e := NewEmulator(5, 4, 0)
	feed(t, e, "abcd")
	s := e.Screen()
	if cur := s.Cursor(); cur.Row != 0 || cur.Col != 4 {
		t.Fatalf("cursor = %+v, want pending wrap at col 4", cur)
	}
	feed(t, e, "e")
	if got := rowText(s, 0); got != "abcd" {
		t.Errorf("row 0 = %q, want %q", got, "abcd")
	}
	if got := rowText(s, 1); got != "e" {
		t.Errorf("row 1 = %q, want %q", got, "e")
	}
	if !s.Line(0).Wrapped {
		t.Error("row 0 should carry the wrap marker")
	}
}

func TestNoWrapOverwritesLastCell(t *testing.T) {
	e := NewEmulator(5, 4, 0)
	feed(t, e, "\x1b[?7l")
	feed(t, e, "abcdXY")
	s := e.Screen()
	if got := rowText(s, 0); got != "abcY" {
		t.Errorf("row 0 = %q, want %q", got, "abcY")
	}
	if got := rowText(s, 1); got != "" {
		t.Errorf("row 1 = %q, want blank", got)
	}
}

func TestWideGlyph(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	feed(t, e, "漢x")
	s := e.Screen()
	lead := s.Cell(0, 0)
	if lead.Rune != '漢' || !lead.IsWide() {
		t.Errorf("lead cell = %+v, want wide 漢", lead)
	}
	spacer := s.Cell(0, 1)
	if !spacer.IsSpacer() || spacer.Rune != '漢' {
		t.Errorf("spacer cell = %+v, want spacer carrying 漢", spacer)
	}
	if got := s.Cell(0, 2); got.Rune != 'x' {
		t.Errorf("cell (0,2) = %q, want 'x'", got.Rune)
	}
}

func TestWideGlyphWrapsAtMargin(t *testing.T) {
	e := NewEmulator(5, 4, 0)
	feed(t, e, "abc漢")
	s := e.Screen()
	if got := rowText(s, 0); got != "abc" {
		t.Errorf("row 0 = %q, want %q", got, "abc")
	}
	if got := s.Cell(1, 0); got.Rune != '漢' || !got.IsWide() {
		t.Errorf("cell (1,0) = %+v, want wide 漢", got)
	}
}

func TestOverwriteWideLeaderClearsSpacer(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	feed(t, e, "漢")
	feed(t, e, "\x1b[1;1HZ")
	s := e.Screen()
	if got := s.Cell(0, 0); got.Rune != 'Z' {
		t.Errorf("cell (0,0) = %q, want 'Z'", got.Rune)
	}
	if got := s.Cell(0, 1); got.IsSpacer() {
		t.Errorf("cell (0,1) = %+v, stale spacer survived", got)
	}
}

func TestInsertMode(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	feed(t, e, "world\x1b[1;1H\x1b[4hhi ")
	s := e.Screen()
	if got := rowText(s, 0); got != "hi world" {
		t.Errorf("row 0 = %q, want %q", got, "hi world")
	}
}

func TestBackgroundColorErase(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	feed(t, e, "text\x1b[44m\x1b[2K")
	s := e.Screen()
	c := s.Cell(0, 0)
	if c.Rune != ' ' {
		t.Errorf("cell rune = %q, want space", c.Rune)
	}
	if c.Bg != PaletteColor(4) {
		t.Errorf("cell bg = %+v, want palette 4 (bce)", c.Bg)
	}
	if c.Attrs != 0 {
		t.Errorf("cell attrs = %v, want none", c.Attrs)
	}
}

func TestOriginMode(t *testing.T) {
	e := NewEmulator(10, 20, 0)
	feed(t, e, "\x1b[3;8r\x1b[?6h")
	s := e.Screen()
	if cur := s.Cursor(); cur.Row != 2 || cur.Col != 0 {
		t.Fatalf("cursor = %+v, want region home (2,0)", cur)
	}
	feed(t, e, "\x1b[1;1HA")
	if got := s.Cell(2, 0); got.Rune != 'A' {
		t.Errorf("cell (2,0) = %q, want 'A' (origin-relative addressing)", got.Rune)
	}
	feed(t, e, "\x1b[99;1HB")
	if got := s.Cell(7, 0); got.Rune != 'B' {
		t.Errorf("cell (7,0) = %q, want 'B' (clamped to region bottom)", got.Rune)
	}
}

func TestResizeReLayout(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	feed(t, e, "0123456789")
	e.Resize(3, 6)
	s := e.Screen()
	if s.Rows() != 3 || s.Cols() != 6 {
		t.Fatalf("size = %dx%d, want 3x6", s.Rows(), s.Cols())
	}
	if got := rowText(s, 0); got != "012345" {
		t.Errorf("row 0 = %q, want truncated %q", got, "012345")
	}
	e.Resize(6, 12)
	if got := rowText(e.Screen(), 0); got != "012345" {
		t.Errorf("row 0 after grow = %q, want %q", got, "012345")
	}
	cur := e.Screen().Cursor()
	if cur.Row >= 6 || cur.Col > 12 {
		t.Errorf("cursor %+v out of bounds after resize", cur)
	}
}

func TestResizeZeroIsNoop(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	feed(t, e, "hello")
	e.Resize(0, 0)
	s := e.Screen()
	if s.Rows() != 5 || s.Cols() != 10 {
		t.Errorf("size = %dx%d, want unchanged 5x10", s.Rows(), s.Cols())
	}
	if got := rowText(s, 0); got != "hello" {
		t.Errorf("row 0 = %q, want %q", got, "hello")
	}
}

func TestTabStops(t *testing.T) {
	e := NewEmulator(5, 40, 0)
	feed(t, e, "\tx")
	s := e.Screen()
	if got := s.Cell(0, 8); got.Rune != 'x' {
		t.Errorf("default tab: cell (0,8) = %q, want 'x'", got.Rune)
	}
	// Clear all stops, set one at column 20.
	feed(t, e, "\r\x1b[3g\x1b[1;21H\x1bH\x1b[1;1H\ty")
	if got := s.Cell(0, 20); got.Rune != 'y' {
		t.Errorf("custom tab: cell (0,20) = %q, want 'y'", got.Rune)
	}
}

func TestSaveRestoreCursor(t *testing.T) {
	e := NewEmulator(10, 20, 0)
	feed(t, e, "\x1b[5;6H\x1b[1;33m\x1b7")
	feed(t, e, "\x1b[1;1H\x1b[0m")
	feed(t, e, "\x1b8Q")
	s := e.Screen()
	if got := s.Cell(4, 5); got.Rune != 'Q' {
		t.Errorf("restored cursor wrote at wrong place, (4,5) = %q", got.Rune)
	}
	if got := s.Cell(4, 5); !got.Attrs.Has(AttrBold) || got.Fg != PaletteColor(3) {
		t.Errorf("restored pen lost attributes: %+v", got)
	}
}

func TestReverseLineFeedAtTop(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	feed(t, e, "first\r\nsecond\x1b[1;1H\x1bM")
	s := e.Screen()
	if got := rowText(s, 1); got != "first" {
		t.Errorf("row 1 = %q, want %q (scrolled down)", got, "first")
	}
	if got := rowText(s, 0); got != "" {
		t.Errorf("row 0 = %q, want blank", got)
	}
}

func TestEraseDisplayVariants(t *testing.T) {
	e := NewEmulator(3, 5, 0)
	feed(t, e, "aaaaa\r\nbbbbb\r\nccccc")
	feed(t, e, "\x1b[2;3H\x1b[0J")
	s := e.Screen()
	if got := rowText(s, 0); got != "aaaaa" {
		t.Errorf("row 0 = %q, want untouched", got)
	}
	if got := rowText(s, 1); got != "bb" {
		t.Errorf("row 1 = %q, want %q", got, "bb")
	}
	if got := rowText(s, 2); got != "" {
		t.Errorf("row 2 = %q, want blank", got)
	}

	feed(t, e, "\x1b[1;1Haaaaa\x1b[1;3H\x1b[1K")
	if got := rowText(s, 0); got != "   aa" {
		// EL 1 erases through the cursor inclusive.
		t.Errorf("row 0 after EL1 = %q, want %q", got, "   aa")
	}
}

func TestDeleteAndInsertChars(t *testing.T) {
	e := NewEmulator(3, 10, 0)
	feed(t, e, "abcdef\x1b[1;2H\x1b[2P")
	s := e.Screen()
	if got := rowText(s, 0); got != "adef" {
		t.Errorf("after DCH: %q, want %q", got, "adef")
	}
	feed(t, e, "\x1b[1;2H\x1b[3@")
	if got := rowText(s, 0); got != "a   def" {
		t.Errorf("after ICH: %q, want %q", got, "a   def")
	}
}

func TestShiftLeftRight(t *testing.T) {
	e := NewEmulator(3, 8, 0)
	feed(t, e, "abcdefgh\x1b[2 @")
	s := e.Screen()
	if got := rowText(s, 0); got != "cdefgh" {
		t.Errorf("after SL: %q, want %q", got, "cdefgh")
	}
	feed(t, e, "\x1b[1 A")
	if got := rowText(s, 0); got != " cdefgh" {
		t.Errorf("after SR: %q, want %q", got, " cdefgh")
	}
}

func TestDecaln(t *testing.T) {
	e := NewEmulator(3, 4, 0)
	feed(t, e, "\x1b#8")
	s := e.Screen()
	for r := 0; r < 3; r++ {
		if got := rowText(s, r); got != "EEEE" {
			t.Errorf("row %d = %q, want EEEE", r, got)
		}
	}
}

func TestRisReset(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	feed(t, e, "\x1b[31mhello\x1b[2;4r\x1b[?6h\x1bc")
	s := e.Screen()
	if got := rowText(s, 0); got != "" {
		t.Errorf("row 0 after RIS = %q, want blank", got)
	}
	top, bottom := s.ScrollRegion()
	if top != 0 || bottom != 4 {
		t.Errorf("region = [%d,%d], want full screen", top, bottom)
	}
	if s.Mode(ModeOrigin) {
		t.Error("origin mode survived RIS")
	}
	if got := s.Pen(); got != (Pen{}) {
		t.Errorf("pen after RIS = %+v, want default", got)
	}
}

func TestModeTracking(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	s := e.Screen()
	for _, tc := range []struct {
		seq  string
		mode Mode
	}{
		{"\x1b[?1h", ModeAppCursorKeys},
		{"\x1b[?12h", ModeCursorBlink},
		{"\x1b[?1000h", ModeMouseClick},
		{"\x1b[?1006h", ModeMouseSGR},
		{"\x1b[?2004h", ModeBracketedPaste},
		{"\x1b[?5h", ModeReverseVideo},
	} {
		feed(t, e, tc.seq)
		if !s.Mode(tc.mode) {
			t.Errorf("%q did not set mode %v", tc.seq, tc.mode)
		}
	}
	// Mouse modes are mutually exclusive.
	feed(t, e, "\x1b[?1003h")
	if s.Mode(ModeMouseClick) {
		t.Error("mode 1000 still set after 1003")
	}
	if !s.Mode(ModeMouseAny) {
		t.Error("mode 1003 not set")
	}
	feed(t, e, "\x1b[?25l")
	if s.Mode(ModeCursorVisible) {
		t.Error("cursor still visible after DECTCEM reset")
	}
}

func TestSgr256AndRgb(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	feed(t, e, "\x1b[38;5;120ma\x1b[48;2;1;2;3mb\x1b[38:2:9:8:7mc")
	s := e.Screen()
	if got := s.Cell(0, 0).Fg; got != PaletteColor(120) {
		t.Errorf("a fg = %+v, want palette 120", got)
	}
	if got := s.Cell(0, 1).Bg; got != RGBColor(1, 2, 3) {
		t.Errorf("b bg = %+v, want rgb(1,2,3)", got)
	}
	if got := s.Cell(0, 2).Fg; got != RGBColor(9, 8, 7) {
		t.Errorf("c fg = %+v, want rgb(9,8,7)", got)
	}
}

func TestOscTitleAndPalette(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	var titles []string
	e.Dispatcher().OnTitle = func(title string) { titles = append(titles, title) }
	feed(t, e, "\x1b]2;my window\x07")
	s := e.Screen()
	if s.Title() != "my window" {
		t.Errorf("title = %q, want %q", s.Title(), "my window")
	}
	if len(titles) != 1 || titles[0] != "my window" {
		t.Errorf("title hook got %v", titles)
	}

	feed(t, e, "\x1b]4;1;rgb:ff/00/00\x07")
	if c, ok := s.PaletteColorAt(1); !ok || c != RGBColor(255, 0, 0) {
		t.Errorf("palette 1 = %+v ok=%v, want red", c, ok)
	}
	feed(t, e, "\x1b]104\x07")
	if _, ok := s.PaletteColorAt(1); ok {
		t.Error("palette override survived OSC 104")
	}
}

func TestDsrCursorReport(t *testing.T) {
	e := NewEmulator(10, 20, 0)
	var resp []byte
	e.Dispatcher().Answerback = writerFunc(func(p []byte) (int, error) {
		resp = append(resp, p...)
		return len(p), nil
	})
	feed(t, e, "\x1b[3;7H\x1b[6n")
	if got := string(resp); got != "\x1b[3;7R" {
		t.Errorf("CPR = %q, want %q", got, "\x1b[3;7R")
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestAltScreenHook(t *testing.T) {
	e := NewEmulator(5, 10, 0)
	var events []bool
	e.Dispatcher().OnAltScreen = func(active bool) { events = append(events, active) }
	feed(t, e, "\x1b[?1049h\x1b[?1049h\x1b[?1049l")
	if len(events) != 2 || !events[0] || events[1] {
		t.Errorf("alt screen events = %v, want [true false]", events)
	}
}
