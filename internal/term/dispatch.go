package term

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dispatcher applies parsed screen actions to a Screen. The mapping is a
// pure table: every recognized sequence maps to a fixed set of Screen
// operations, and unrecognized sequences are dropped without effect.
type Dispatcher struct {
	screen *Screen

	// Answerback receives DSR/DA responses destined for the child's
	// input. Nil discards them.
	Answerback io.Writer
	// OnBell is called for BEL. Nil ignores it.
	OnBell func()
	// OnTitle is called when OSC 0/1/2 changes the title.
	OnTitle func(title string)
	// OnAltScreen is called when mode 1049/1047/47 switches buffers.
	// The session uses the first enable to promote an interaction to
	// TUI mode.
	OnAltScreen func(active bool)
	// OnClipboard receives the OSC 52 payload (still base64-encoded).
	OnClipboard func(data []byte)
}

// NewDispatcher returns a dispatcher mutating the given screen.
func NewDispatcher(s *Screen) *Dispatcher {
	return &Dispatcher{screen: s}
}

// Screen returns the screen this dispatcher mutates.
func (d *Dispatcher) Screen() *Screen { return d.screen }

// Print writes one decoded character.
func (d *Dispatcher) Print(r rune) {
	d.screen.PlaceChar(r)
}

// Execute performs a C0 control.
func (d *Dispatcher) Execute(b byte) {
	s := d.screen
	switch b {
	case 0x07: // BEL
		if d.OnBell != nil {
			d.OnBell()
		}
	case 0x08: // BS
		s.Backspace()
	case 0x09: // HT
		s.Tab()
	case 0x0A, 0x0B, 0x0C: // LF, VT, FF
		s.LineFeed()
	case 0x0D: // CR
		s.CarriageReturn()
	case 0x0E, 0x0F:
		// SO/SI shift alternate charsets; G1 graphics are not mapped.
	}
}

// EscDispatch performs a non-CSI escape sequence.
func (d *Dispatcher) EscDispatch(seq Esc) {
	s := d.screen
	if len(seq.Intermediates) > 0 {
		switch seq.Intermediates[0] {
		case '#':
			if seq.Final == '8' { // DECALN
				s.FillWithE()
			}
		case '(', ')', '*', '+':
			// Charset designation; only ASCII is supported.
		}
		return
	}
	switch seq.Final {
	case 'D': // IND
		s.LineFeed()
	case 'E': // NEL
		s.CarriageReturn()
		s.LineFeed()
	case 'H': // HTS
		s.SetTabStop()
	case 'M': // RI
		s.ReverseLineFeed()
	case '7': // DECSC
		s.SaveCursor()
	case '8': // DECRC
		s.RestoreCursor()
	case 'c': // RIS
		s.Reset()
	case '=': // DECKPAM
		s.SetModes(ModeAppKeypad, true)
	case '>': // DECKPNM
		s.SetModes(ModeAppKeypad, false)
	}
}

// CsiDispatch performs a CSI sequence.
func (d *Dispatcher) CsiDispatch(seq CSI) {
	s := d.screen

	if len(seq.Intermediates) == 1 && seq.Intermediates[0] == ' ' {
		switch seq.Final {
		case '@': // SL
			s.ShiftLeft(int(seq.Param(0, 1)))
		case 'A': // SR
			s.ShiftRight(int(seq.Param(0, 1)))
		case 'q': // DECSCUSR cursor style: only blink on/off is tracked
			style := seq.ParamRaw(0, 0)
			s.SetModes(ModeCursorBlink, style == 0 || style%2 == 1)
		}
		return
	}
	if len(seq.Intermediates) > 0 {
		return
	}

	if seq.Private == '?' {
		switch seq.Final {
		case 'h':
			d.setPrivateModes(seq, true)
		case 'l':
			d.setPrivateModes(seq, false)
		}
		return
	}
	if seq.Private != 0 {
		return
	}

	switch seq.Final {
	case 'A': // CUU
		s.MoveRelative(-int(seq.Param(0, 1)), 0)
	case 'B': // CUD
		s.MoveRelative(int(seq.Param(0, 1)), 0)
	case 'C': // CUF
		s.MoveRelative(0, int(seq.Param(0, 1)))
	case 'D': // CUB
		s.MoveRelative(0, -int(seq.Param(0, 1)))
	case 'E': // CNL
		s.MoveRelative(int(seq.Param(0, 1)), 0)
		s.CarriageReturn()
	case 'F': // CPL
		s.MoveRelative(-int(seq.Param(0, 1)), 0)
		s.CarriageReturn()
	case 'G', '`': // CHA / HPA
		s.MoveToColumn(int(seq.Param(0, 1)) - 1)
	case 'H', 'f': // CUP / HVP
		s.MoveTo(int(seq.Param(0, 1))-1, int(seq.Param(1, 1))-1)
	case 'J': // ED
		s.EraseInDisplay(eraseRegion(seq.ParamRaw(0, 0)))
	case 'K': // EL
		s.EraseInLine(eraseRegion(seq.ParamRaw(0, 0)))
	case 'L': // IL
		s.InsertLines(int(seq.Param(0, 1)))
	case 'M': // DL
		s.DeleteLines(int(seq.Param(0, 1)))
	case 'P': // DCH
		s.DeleteChars(int(seq.Param(0, 1)))
	case '@': // ICH
		s.InsertChars(int(seq.Param(0, 1)))
	case 'S': // SU
		s.ScrollUp(int(seq.Param(0, 1)))
	case 'T': // SD
		s.ScrollDown(int(seq.Param(0, 1)))
	case 'X': // ECH
		s.EraseChars(int(seq.Param(0, 1)))
	case 'Z': // CBT
		for i := 0; i < int(seq.Param(0, 1)); i++ {
			s.BackTab()
		}
	case 'd': // VPA
		s.MoveToRow(int(seq.Param(0, 1)) - 1)
	case 'g': // TBC
		switch seq.ParamRaw(0, 0) {
		case 0:
			s.ClearTabStop()
		case 3:
			s.ClearAllTabStops()
		}
	case 'h': // SM
		d.setAnsiModes(seq, true)
	case 'l': // RM
		d.setAnsiModes(seq, false)
	case 'm': // SGR
		d.applySgr(seq.Params)
	case 'n': // DSR
		d.deviceStatusReport(seq.ParamRaw(0, 0))
	case 'c': // DA
		d.respond("\x1b[?62c")
	case 'r': // DECSTBM
		top := int(seq.Param(0, 1)) - 1
		bottom := int(seq.Param(1, uint16(s.Rows()))) - 1
		s.SetScrollRegion(top, bottom)
	case 's': // SCOSC
		s.SaveCursor()
	case 'u': // SCORC
		s.RestoreCursor()
	}
}

func eraseRegion(p uint16) EraseRegion {
	switch p {
	case 1:
		return EraseToStart
	case 2:
		return EraseAll
	case 3:
		return EraseScrollback
	default:
		return EraseToEnd
	}
}

func (d *Dispatcher) setAnsiModes(seq CSI, on bool) {
	for i := range seq.Params {
		switch seq.ParamRaw(i, 0) {
		case 4: // IRM
			d.screen.SetModes(ModeInsert, on)
		}
	}
}

func (d *Dispatcher) setPrivateModes(seq CSI, on bool) {
	s := d.screen
	for i := range seq.Params {
		switch seq.ParamRaw(i, 0) {
		case 1: // DECCKM
			s.SetModes(ModeAppCursorKeys, on)
		case 3: // DECCOLM: 132-column switching is accepted and ignored
		case 5: // DECSCNM
			s.SetModes(ModeReverseVideo, on)
		case 6: // DECOM
			s.SetModes(ModeOrigin, on)
		case 7: // DECAWM
			s.SetModes(ModeWrap, on)
		case 12:
			s.SetModes(ModeCursorBlink, on)
		case 25: // DECTCEM
			s.SetModes(ModeCursorVisible, on)
		case 47, 1047:
			d.switchAlt(on, false)
		case 1000:
			s.SetModes(ModeMouseButton|ModeMouseAny, false)
			s.SetModes(ModeMouseClick, on)
		case 1002:
			s.SetModes(ModeMouseClick|ModeMouseAny, false)
			s.SetModes(ModeMouseButton, on)
		case 1003:
			s.SetModes(ModeMouseClick|ModeMouseButton, false)
			s.SetModes(ModeMouseAny, on)
		case 1006:
			s.SetModes(ModeMouseSGR, on)
		case 1048:
			if on {
				s.SaveCursor()
			} else {
				s.RestoreCursor()
			}
		case 1049:
			d.switchAlt(on, true)
		case 2004:
			s.SetModes(ModeBracketedPaste, on)
		}
	}
}

func (d *Dispatcher) switchAlt(on, saveCursor bool) {
	s := d.screen
	was := s.AltActive()
	if on {
		if saveCursor {
			s.SaveCursor()
		}
		s.EnterAlt()
	} else {
		s.ExitAlt()
		if saveCursor {
			s.RestoreCursor()
		}
	}
	if was != s.AltActive() && d.OnAltScreen != nil {
		d.OnAltScreen(s.AltActive())
	}
}

func (d *Dispatcher) deviceStatusReport(kind uint16) {
	switch kind {
	case 5: // operating status
		d.respond("\x1b[0n")
	case 6: // CPR
		cur := d.screen.Cursor()
		row := cur.Row
		if d.screen.Mode(ModeOrigin) {
			top, _ := d.screen.ScrollRegion()
			row -= top
		}
		col := cur.Col
		if col > d.screen.Cols()-1 {
			col = d.screen.Cols() - 1
		}
		d.respond(fmt.Sprintf("\x1b[%d;%dR", row+1, col+1))
	}
}

func (d *Dispatcher) respond(s string) {
	if d.Answerback != nil {
		io.WriteString(d.Answerback, s)
	}
}

// applySgr walks SGR parameter groups, handling both semicolon and colon
// forms of the 38/48 extended-color selectors.
func (d *Dispatcher) applySgr(params [][]uint16) {
	s := d.screen
	pen := s.Pen()
	if len(params) == 0 {
		params = [][]uint16{{0}}
	}
	for i := 0; i < len(params); i++ {
		g := params[i]
		if len(g) == 0 {
			continue
		}
		switch g[0] {
		case 0:
			pen = Pen{}
		case 1:
			pen.Attrs |= AttrBold
		case 2:
			pen.Attrs |= AttrFaint
		case 3:
			pen.Attrs |= AttrItalic
		case 4:
			pen.Attrs |= AttrUnderline
		case 5, 6:
			pen.Attrs |= AttrBlink
		case 7:
			pen.Attrs |= AttrInverse
		case 8:
			pen.Attrs |= AttrHidden
		case 9:
			pen.Attrs |= AttrStrikeout
		case 21, 22:
			pen.Attrs &^= AttrBold | AttrFaint
		case 23:
			pen.Attrs &^= AttrItalic
		case 24:
			pen.Attrs &^= AttrUnderline
		case 25:
			pen.Attrs &^= AttrBlink
		case 27:
			pen.Attrs &^= AttrInverse
		case 28:
			pen.Attrs &^= AttrHidden
		case 29:
			pen.Attrs &^= AttrStrikeout
		case 38:
			c, skip, ok := extendedColor(params, i)
			if !ok {
				return
			}
			pen.Fg = c
			i += skip
		case 48:
			c, skip, ok := extendedColor(params, i)
			if !ok {
				return
			}
			pen.Bg = c
			i += skip
		case 39:
			pen.Fg = DefaultColor()
		case 49:
			pen.Bg = DefaultColor()
		default:
			switch {
			case g[0] >= 30 && g[0] <= 37:
				pen.Fg = PaletteColor(uint8(g[0] - 30))
			case g[0] >= 40 && g[0] <= 47:
				pen.Bg = PaletteColor(uint8(g[0] - 40))
			case g[0] >= 90 && g[0] <= 97:
				pen.Fg = PaletteColor(uint8(g[0] - 90 + 8))
			case g[0] >= 100 && g[0] <= 107:
				pen.Bg = PaletteColor(uint8(g[0] - 100 + 8))
			}
		}
	}
	s.SetPen(pen)
}

// extendedColor decodes a 38/48 selector starting at group i. It returns
// the color and how many additional semicolon groups were consumed.
func extendedColor(params [][]uint16, i int) (Color, int, bool) {
	g := params[i]
	if len(g) >= 2 {
		// Colon form: all values are sub-parameters of one group.
		switch g[1] {
		case 5:
			if len(g) >= 3 {
				return PaletteColor(uint8(g[2])), 0, true
			}
		case 2:
			if len(g) >= 5 {
				// A colon form may carry a color-space id: 38:2:id:r:g:b.
				if len(g) >= 6 {
					return RGBColor(uint8(g[3]), uint8(g[4]), uint8(g[5])), 0, true
				}
				return RGBColor(uint8(g[2]), uint8(g[3]), uint8(g[4])), 0, true
			}
		}
		return Color{}, 0, false
	}
	// Semicolon form: the selector and values are separate groups.
	if i+1 >= len(params) || len(params[i+1]) == 0 {
		return Color{}, 0, false
	}
	switch params[i+1][0] {
	case 5:
		if i+2 < len(params) && len(params[i+2]) > 0 {
			return PaletteColor(uint8(params[i+2][0])), 2, true
		}
	case 2:
		if i+4 < len(params) {
			return RGBColor(
				uint8(first(params[i+2])),
				uint8(first(params[i+3])),
				uint8(first(params[i+4])),
			), 4, true
		}
	}
	return Color{}, 0, false
}

func first(g []uint16) uint16 {
	if len(g) == 0 {
		return 0
	}
	return g[0]
}

// OscDispatch performs an operating system command.
func (d *Dispatcher) OscDispatch(seq Osc) {
	if len(seq.Params) == 0 {
		return
	}
	code, err := strconv.Atoi(string(seq.Params[0]))
	if err != nil {
		return
	}
	s := d.screen
	switch code {
	case 0, 1, 2:
		if len(seq.Params) >= 2 {
			title := string(seq.Params[1])
			s.SetTitle(title)
			if d.OnTitle != nil {
				d.OnTitle(title)
			}
		}
	case 4:
		// Pairs of index;colorspec.
		for i := 1; i+1 < len(seq.Params); i += 2 {
			idx, err := strconv.Atoi(string(seq.Params[i]))
			if err != nil {
				continue
			}
			if c, ok := parseXColor(string(seq.Params[i+1])); ok {
				s.SetPaletteColor(idx, c)
			}
		}
	case 10:
		if len(seq.Params) >= 2 {
			if c, ok := parseXColor(string(seq.Params[1])); ok {
				s.SetDefaultFg(c)
			}
		}
	case 11:
		if len(seq.Params) >= 2 {
			if c, ok := parseXColor(string(seq.Params[1])); ok {
				s.SetDefaultBg(c)
			}
		}
	case 52:
		if len(seq.Params) >= 3 && d.OnClipboard != nil {
			d.OnClipboard(seq.Params[2])
		}
	case 104:
		if len(seq.Params) == 1 {
			s.ResetPalette()
			return
		}
		for _, p := range seq.Params[1:] {
			if idx, err := strconv.Atoi(string(p)); err == nil {
				delete(s.palette, idx)
			}
		}
	}
}

// DcsDispatch consumes a device control string. None are acted on; the
// payload is captured by the parser and dropped here.
func (d *Dispatcher) DcsDispatch(seq Dcs) {}

// parseXColor decodes the X11 color forms used by OSC 4/10/11:
// rgb:RR/GG/BB (1-4 hex digits per component) and #RRGGBB.
func parseXColor(spec string) (Color, bool) {
	spec = strings.TrimSpace(spec)
	if strings.HasPrefix(spec, "#") && len(spec) == 7 {
		r, err1 := strconv.ParseUint(spec[1:3], 16, 8)
		g, err2 := strconv.ParseUint(spec[3:5], 16, 8)
		b, err3 := strconv.ParseUint(spec[5:7], 16, 8)
		if err1 != nil || err2 != nil || err3 != nil {
			return Color{}, false
		}
		return RGBColor(uint8(r), uint8(g), uint8(b)), true
	}
	if !strings.HasPrefix(spec, "rgb:") {
		return Color{}, false
	}
	parts := strings.Split(spec[4:], "/")
	if len(parts) != 3 {
		return Color{}, false
	}
	var comps [3]uint8
	for i, p := range parts {
		if len(p) == 0 || len(p) > 4 {
			return Color{}, false
		}
		v, err := strconv.ParseUint(p, 16, 16)
		if err != nil {
			return Color{}, false
		}
		// Scale to 8 bits from however many digits were given.
		max := uint64(1)<<(4*len(p)) - 1
		comps[i] = uint8(v * 255 / max)
	}
	return RGBColor(comps[0], comps[1], comps[2]), true
}
