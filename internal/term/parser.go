package term

import "unicode/utf8"

// maxParams caps the number of CSI/DCS parameter groups, matching the
// VT500 parser table.
const maxParams = 32

// maxOscLen caps accumulated OSC and DCS payloads so a stream that never
// terminates its string cannot grow memory without bound.
const maxOscLen = 64 * 1024

// CSI is a parsed control sequence introducer dispatch. Sub-parameters
// separated by ':' are preserved as nested groups.
type CSI struct {
	Private       byte // '?', '<', '=', '>' or 0
	Params        [][]uint16
	Intermediates []byte
	Final         byte
}

// Param returns the first value of parameter group i, or def when the
// group is absent or zero.
func (c CSI) Param(i int, def uint16) uint16 {
	if i >= len(c.Params) || len(c.Params[i]) == 0 || c.Params[i][0] == 0 {
		return def
	}
	return c.Params[i][0]
}

// ParamRaw returns the first value of group i without the zero-to-default
// substitution, for parameters where zero is meaningful.
func (c CSI) ParamRaw(i int, def uint16) uint16 {
	if i >= len(c.Params) || len(c.Params[i]) == 0 {
		return def
	}
	return c.Params[i][0]
}

// Esc is a parsed ESC dispatch (a non-CSI escape sequence).
type Esc struct {
	Intermediates []byte
	Final         byte
}

// Osc is a parsed operating system command. Payload parameters are opaque
// byte strings split on ';'.
type Osc struct {
	Params [][]byte
	// Bel is true when the string was terminated by BEL rather than ST.
	Bel bool
}

// Dcs is a parsed device control string with its passthrough payload.
type Dcs struct {
	Private       byte
	Params        [][]uint16
	Intermediates []byte
	Final         byte
	Data          []byte
}

// Performer receives the abstract screen actions produced by the Parser.
type Performer interface {
	Print(r rune)
	Execute(b byte)
	CsiDispatch(seq CSI)
	EscDispatch(seq Esc)
	OscDispatch(seq Osc)
	DcsDispatch(seq Dcs)
}

type parserState uint8

const (
	stateGround parserState = iota
	stateEscape
	stateEscapeIntermediate
	stateCsiEntry
	stateCsiParam
	stateCsiIntermediate
	stateCsiIgnore
	stateOscString
	stateDcsEntry
	stateDcsParam
	stateDcsIntermediate
	stateDcsPassthrough
	stateDcsIgnore
	stateSosPmApcString
)

// Parser is a byte-stream state machine following the public VT500
// parser topology. It classifies bytes into printable text, C0 controls,
// and ESC/CSI/OSC/DCS sequences and dispatches them on a Performer.
// Parsing is resumable: Advance may be called with arbitrary chunk
// boundaries, including mid-sequence and mid-UTF-8-rune, and the action
// stream is identical to parsing the concatenated input.
type Parser struct {
	perform Performer
	state   parserState

	// CSI / DCS accumulators.
	private       byte
	params        [][]uint16
	curGroup      []uint16
	curVal        uint32
	groupOpen     bool
	paramOverflow bool
	intermediates []byte

	// OSC accumulator.
	oscBuf     []byte
	oscEsc     bool // saw ESC inside the OSC string (possible ST)
	stringOver bool

	// DCS passthrough accumulator.
	dcsSeq Dcs
	dcsEsc bool

	// Resumable UTF-8 decode state.
	utf8Buf  [4]byte
	utf8Len  int
	utf8Need int
}

// NewParser returns a parser dispatching to the given performer.
func NewParser(p Performer) *Parser {
	return &Parser{perform: p}
}

// Advance feeds a chunk of bytes through the state machine.
func (p *Parser) Advance(data []byte) {
	for _, b := range data {
		p.advanceByte(b)
	}
}

func (p *Parser) advanceByte(b byte) {
	switch p.state {
	case stateGround:
		p.ground(b)
	case stateEscape:
		p.escape(b)
	case stateEscapeIntermediate:
		p.escapeIntermediate(b)
	case stateCsiEntry:
		p.csiEntry(b)
	case stateCsiParam:
		p.csiParam(b)
	case stateCsiIntermediate:
		p.csiIntermediate(b)
	case stateCsiIgnore:
		p.csiIgnore(b)
	case stateOscString:
		p.oscString(b)
	case stateDcsEntry:
		p.dcsEntry(b)
	case stateDcsParam:
		p.dcsParam(b)
	case stateDcsIntermediate:
		p.dcsIntermediate(b)
	case stateDcsPassthrough:
		p.dcsPassthrough(b)
	case stateDcsIgnore:
		p.dcsIgnore(b)
	case stateSosPmApcString:
		p.sosPmApcString(b)
	}
}

// clearSequence resets all sequence accumulators.
func (p *Parser) clearSequence() {
	p.private = 0
	p.params = nil
	p.curGroup = nil
	p.curVal = 0
	p.groupOpen = false
	p.paramOverflow = false
	p.intermediates = nil
	p.oscBuf = nil
	p.oscEsc = false
	p.stringOver = false
	p.dcsSeq = Dcs{}
	p.dcsEsc = false
}

// enterEscape handles an ESC byte seen in any state: the current sequence
// accumulator is abandoned and a fresh escape sequence begins.
func (p *Parser) enterEscape() {
	p.clearSequence()
	p.state = stateEscape
}

// flushUtf8Error emits U+FFFD for an interrupted or malformed UTF-8
// sequence and resets the decode state.
func (p *Parser) flushUtf8Error() {
	p.perform.Print(utf8.RuneError)
	p.utf8Len = 0
	p.utf8Need = 0
}

func (p *Parser) ground(b byte) {
	if p.utf8Need > 0 {
		if b >= 0x80 && b < 0xC0 {
			p.utf8Buf[p.utf8Len] = b
			p.utf8Len++
			if p.utf8Len == p.utf8Need {
				r, _ := utf8.DecodeRune(p.utf8Buf[:p.utf8Len])
				p.perform.Print(r)
				p.utf8Len = 0
				p.utf8Need = 0
			}
			return
		}
		// Malformed continuation: substitute and reprocess the byte.
		p.flushUtf8Error()
	}

	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.perform.Execute(b)
	case b < 0x20 || b == 0x7F:
		if b == 0x7F {
			return // DEL is ignored on the wire
		}
		p.perform.Execute(b)
	case b < 0x80:
		p.perform.Print(rune(b))
	case b >= 0xC2 && b <= 0xDF:
		p.utf8Buf[0] = b
		p.utf8Len = 1
		p.utf8Need = 2
	case b >= 0xE0 && b <= 0xEF:
		p.utf8Buf[0] = b
		p.utf8Len = 1
		p.utf8Need = 3
	case b >= 0xF0 && b <= 0xF4:
		p.utf8Buf[0] = b
		p.utf8Len = 1
		p.utf8Need = 4
	default:
		// Stray continuation byte or invalid lead (C0/C1 overlongs, F5-FF).
		p.perform.Print(utf8.RuneError)
	}
}

func (p *Parser) escape(b byte) {
	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.perform.Execute(b)
		p.state = stateGround
	case b < 0x20:
		p.perform.Execute(b)
	case b >= 0x20 && b <= 0x2F:
		p.intermediates = append(p.intermediates, b)
		p.state = stateEscapeIntermediate
	case b == '[':
		p.clearSequence()
		p.state = stateCsiEntry
	case b == ']':
		p.clearSequence()
		p.state = stateOscString
	case b == 'P':
		p.clearSequence()
		p.state = stateDcsEntry
	case b == 'X' || b == '^' || b == '_':
		// SOS, PM, APC: consumed without action.
		p.clearSequence()
		p.state = stateSosPmApcString
	case b >= 0x30 && b <= 0x7E:
		p.perform.EscDispatch(Esc{Intermediates: p.takeIntermediates(), Final: b})
		p.state = stateGround
	default:
		p.state = stateGround
	}
}

func (p *Parser) escapeIntermediate(b byte) {
	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.perform.Execute(b)
		p.state = stateGround
	case b < 0x20:
		p.perform.Execute(b)
	case b >= 0x20 && b <= 0x2F:
		p.intermediates = append(p.intermediates, b)
	case b >= 0x30 && b <= 0x7E:
		p.perform.EscDispatch(Esc{Intermediates: p.takeIntermediates(), Final: b})
		p.state = stateGround
	default:
		p.state = stateGround
	}
}

func (p *Parser) csiEntry(b byte) {
	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.perform.Execute(b)
		p.state = stateGround
	case b < 0x20:
		p.perform.Execute(b)
	case b >= '0' && b <= ';':
		p.state = stateCsiParam
		p.csiParam(b)
	case b >= 0x3C && b <= 0x3F:
		p.private = b
		p.state = stateCsiParam
	case b >= 0x20 && b <= 0x2F:
		p.intermediates = append(p.intermediates, b)
		p.state = stateCsiIntermediate
	case b >= 0x40 && b <= 0x7E:
		p.dispatchCsi(b)
	default:
		p.state = stateCsiIgnore
	}
}

func (p *Parser) csiParam(b byte) {
	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.perform.Execute(b)
		p.state = stateGround
	case b < 0x20:
		p.perform.Execute(b)
	case b >= '0' && b <= '9':
		p.pushDigit(b)
	case b == ':':
		p.pushSubparam()
	case b == ';':
		p.closeParamGroup()
	case b >= 0x3C && b <= 0x3F:
		// A private marker after parameters is malformed.
		p.state = stateCsiIgnore
	case b >= 0x20 && b <= 0x2F:
		p.intermediates = append(p.intermediates, b)
		p.state = stateCsiIntermediate
	case b >= 0x40 && b <= 0x7E:
		p.dispatchCsi(b)
	default:
		p.state = stateCsiIgnore
	}
}

func (p *Parser) csiIntermediate(b byte) {
	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.perform.Execute(b)
		p.state = stateGround
	case b < 0x20:
		p.perform.Execute(b)
	case b >= 0x20 && b <= 0x2F:
		p.intermediates = append(p.intermediates, b)
	case b >= 0x30 && b <= 0x3F:
		p.state = stateCsiIgnore
	case b >= 0x40 && b <= 0x7E:
		p.dispatchCsi(b)
	default:
		p.state = stateCsiIgnore
	}
}

func (p *Parser) csiIgnore(b byte) {
	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.perform.Execute(b)
		p.state = stateGround
	case b < 0x20:
		p.perform.Execute(b)
	case b >= 0x40 && b <= 0x7E:
		p.state = stateGround
	}
}

func (p *Parser) oscString(b byte) {
	if p.oscEsc {
		p.oscEsc = false
		if b == '\\' {
			p.dispatchOsc(false)
			p.state = stateGround
			return
		}
		// ESC followed by anything else aborts the OSC and starts a new
		// escape sequence with that byte.
		p.enterEscape()
		p.escape(b)
		return
	}
	switch {
	case b == 0x07:
		p.dispatchOsc(true)
		p.state = stateGround
	case b == 0x9C:
		p.dispatchOsc(false)
		p.state = stateGround
	case b == 0x1B:
		p.oscEsc = true
	case b == 0x18 || b == 0x1A:
		p.clearSequence()
		p.state = stateGround
	default:
		if !p.stringOver {
			p.oscBuf = append(p.oscBuf, b)
			if len(p.oscBuf) > maxOscLen {
				p.oscBuf = p.oscBuf[:maxOscLen]
				p.stringOver = true
			}
		}
	}
}

func (p *Parser) dcsEntry(b byte) {
	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.state = stateGround
	case b < 0x20:
		// C0 inside the DCS header is ignored.
	case b >= '0' && b <= ';':
		p.state = stateDcsParam
		p.dcsParam(b)
	case b >= 0x3C && b <= 0x3F:
		p.private = b
		p.state = stateDcsParam
	case b >= 0x20 && b <= 0x2F:
		p.intermediates = append(p.intermediates, b)
		p.state = stateDcsIntermediate
	case b >= 0x40 && b <= 0x7E:
		p.beginDcsPassthrough(b)
	default:
		p.state = stateDcsIgnore
	}
}

func (p *Parser) dcsParam(b byte) {
	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.state = stateGround
	case b < 0x20:
	case b >= '0' && b <= '9':
		p.pushDigit(b)
	case b == ':':
		p.pushSubparam()
	case b == ';':
		p.closeParamGroup()
	case b >= 0x3C && b <= 0x3F:
		p.state = stateDcsIgnore
	case b >= 0x20 && b <= 0x2F:
		p.intermediates = append(p.intermediates, b)
		p.state = stateDcsIntermediate
	case b >= 0x40 && b <= 0x7E:
		p.beginDcsPassthrough(b)
	default:
		p.state = stateDcsIgnore
	}
}

func (p *Parser) dcsIntermediate(b byte) {
	switch {
	case b == 0x1B:
		p.enterEscape()
	case b == 0x18 || b == 0x1A:
		p.state = stateGround
	case b < 0x20:
	case b >= 0x20 && b <= 0x2F:
		p.intermediates = append(p.intermediates, b)
	case b >= 0x30 && b <= 0x3F:
		p.state = stateDcsIgnore
	case b >= 0x40 && b <= 0x7E:
		p.beginDcsPassthrough(b)
	default:
		p.state = stateDcsIgnore
	}
}

func (p *Parser) beginDcsPassthrough(final byte) {
	p.finishParams()
	p.dcsSeq = Dcs{
		Private:       p.private,
		Params:        p.params,
		Intermediates: p.takeIntermediates(),
		Final:         final,
	}
	p.params = nil
	p.state = stateDcsPassthrough
}

func (p *Parser) dcsPassthrough(b byte) {
	if p.dcsEsc {
		p.dcsEsc = false
		if b == '\\' {
			// ESC-ST terminates the DCS normally.
			p.perform.DcsDispatch(p.dcsSeq)
			p.clearSequence()
			p.state = stateGround
			return
		}
		// Any other escape abandons the DCS payload.
		p.enterEscape()
		p.escape(b)
		return
	}
	switch {
	case b == 0x1B:
		p.dcsEsc = true
	case b == 0x9C:
		p.perform.DcsDispatch(p.dcsSeq)
		p.clearSequence()
		p.state = stateGround
	case b == 0x18 || b == 0x1A:
		p.clearSequence()
		p.state = stateGround
	default:
		if !p.stringOver {
			p.dcsSeq.Data = append(p.dcsSeq.Data, b)
			if len(p.dcsSeq.Data) > maxOscLen {
				p.dcsSeq.Data = p.dcsSeq.Data[:maxOscLen]
				p.stringOver = true
			}
		}
	}
}

func (p *Parser) dcsIgnore(b byte) {
	if p.dcsEsc {
		p.dcsEsc = false
		if b == '\\' {
			p.state = stateGround
			return
		}
		p.enterEscape()
		p.escape(b)
		return
	}
	switch b {
	case 0x1B:
		p.dcsEsc = true
	case 0x9C, 0x18, 0x1A:
		p.state = stateGround
	}
}

func (p *Parser) sosPmApcString(b byte) {
	if p.oscEsc {
		p.oscEsc = false
		if b == '\\' {
			p.state = stateGround
			return
		}
		p.enterEscape()
		p.escape(b)
		return
	}
	switch b {
	case 0x1B:
		p.oscEsc = true
	case 0x9C, 0x18, 0x1A:
		p.state = stateGround
	}
}

// pushDigit accumulates a decimal digit into the current parameter value,
// saturating at the uint16 range.
func (p *Parser) pushDigit(b byte) {
	p.groupOpen = true
	p.curVal = p.curVal*10 + uint32(b-'0')
	if p.curVal > 0xFFFF {
		p.curVal = 0xFFFF
	}
}

// pushSubparam closes the current value as a sub-parameter within the
// current group (the ':' separator).
func (p *Parser) pushSubparam() {
	p.groupOpen = true
	p.curGroup = append(p.curGroup, uint16(p.curVal))
	p.curVal = 0
}

// closeParamGroup finishes the current group at a ';'.
func (p *Parser) closeParamGroup() {
	if len(p.params) >= maxParams {
		p.paramOverflow = true
		p.curGroup = nil
		p.curVal = 0
		p.groupOpen = false
		return
	}
	p.params = append(p.params, append(p.curGroup, uint16(p.curVal)))
	p.curGroup = nil
	p.curVal = 0
	p.groupOpen = false
}

// finishParams closes a trailing group, if any parameters were seen.
func (p *Parser) finishParams() {
	if p.groupOpen || len(p.params) > 0 {
		p.closeParamGroup()
	}
}

func (p *Parser) takeIntermediates() []byte {
	im := p.intermediates
	p.intermediates = nil
	return im
}

func (p *Parser) dispatchCsi(final byte) {
	p.finishParams()
	seq := CSI{
		Private:       p.private,
		Params:        p.params,
		Intermediates: p.takeIntermediates(),
		Final:         final,
	}
	if !p.paramOverflow {
		p.perform.CsiDispatch(seq)
	}
	p.clearSequence()
	p.state = stateGround
}

func (p *Parser) dispatchOsc(bel bool) {
	var params [][]byte
	if len(p.oscBuf) > 0 {
		start := 0
		for i, b := range p.oscBuf {
			if b == ';' {
				params = append(params, p.oscBuf[start:i])
				start = i + 1
			}
		}
		params = append(params, p.oscBuf[start:])
	}
	p.perform.OscDispatch(Osc{Params: params, Bel: bel})
	p.clearSequence()
}
