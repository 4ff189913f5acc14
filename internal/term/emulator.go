package term

import "io"

// Emulator bundles a Screen, its Dispatcher, and a Parser into a single
// byte sink: everything written mutates the screen the way an xterm
// would. It satisfies io.Writer so child output can be piped in directly.
type Emulator struct {
	screen     *Screen
	dispatcher *Dispatcher
	parser     *Parser
}

var _ io.Writer = (*Emulator)(nil)

// NewEmulator returns an emulator with a rows x cols screen and the given
// scrollback cap.
func NewEmulator(rows, cols, scrollbackMax int) *Emulator {
	s := NewScreen(rows, cols, scrollbackMax)
	d := NewDispatcher(s)
	return &Emulator{
		screen:     s,
		dispatcher: d,
		parser:     NewParser(d),
	}
}

// Screen returns the underlying screen.
func (e *Emulator) Screen() *Screen { return e.screen }

// Dispatcher returns the dispatcher for wiring hooks (bell, title,
// alt-screen promotion, answerback).
func (e *Emulator) Dispatcher() *Dispatcher { return e.dispatcher }

// Write feeds bytes through the parser. It never fails; malformed input
// degrades to replacement characters per the parser's recovery rules.
func (e *Emulator) Write(p []byte) (int, error) {
	e.parser.Advance(p)
	return len(p), nil
}

// Resize re-lays the screen to the new dimensions.
func (e *Emulator) Resize(rows, cols int) {
	e.screen.Resize(rows, cols)
}
