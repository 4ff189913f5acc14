package interaction

import (
	"iter"
	"time"

	"bite/internal/term"
)

// LineRef locates one display line within the session's interaction
// sequence.
type LineRef struct {
	InteractionID int64
	Stream        Stream
	Row           int
	Line          *term.Line
}

// Store is the ordered collection of a session's interactions.
// Interactions are appended, never reordered, and destroyed only with
// the store.
type Store struct {
	interactions []*Interaction
	byID         map[int64]*Interaction
	nextID       int64

	rows, cols    int
	scrollbackCap int

	// promptText is rendered into each new interaction's prompt screen.
	promptText string
}

// NewStore returns an empty store whose screens are created at the given
// dimensions.
func NewStore(rows, cols, scrollbackCap int) *Store {
	return &Store{
		byID:          make(map[int64]*Interaction),
		nextID:        1,
		rows:          rows,
		cols:          cols,
		scrollbackCap: scrollbackCap,
		promptText:    "$ ",
	}
}

// SetPrompt changes the prompt text seeded into new interactions.
func (st *Store) SetPrompt(p string) { st.promptText = p }

// Prompt returns the current prompt text.
func (st *Store) Prompt() string { return st.promptText }

// Create appends a new Unstarted interaction for the given command text
// and returns its ID. The prompt screen is seeded from the current
// prompt.
func (st *Store) Create(command string) int64 {
	in := &Interaction{
		ID:        st.nextID,
		Command:   command,
		CreatedAt: time.Now(),
		prompt:    term.NewEmulator(1, st.cols, 0),
		output:    term.NewEmulator(st.rows, st.cols, st.scrollbackCap),
		errOut:    term.NewEmulator(st.rows, st.cols, st.scrollbackCap),
		visibility: map[Stream]Visibility{
			StreamPrompt: Visible,
			StreamOutput: Visible,
			StreamError:  Visible,
		},
	}
	st.nextID++
	in.prompt.Write([]byte(st.promptText + command))
	st.interactions = append(st.interactions, in)
	st.byID[in.ID] = in
	return in.ID
}

// SetCommand records the submitted command text on an interaction that
// was created for composing, echoing it onto the prompt screen.
func (st *Store) SetCommand(id int64, command string) {
	in := st.byID[id]
	if in == nil || in.state != Unstarted {
		return
	}
	in.Command = command
	in.prompt.Write([]byte(command))
}

// Get returns the interaction with the given ID, or nil.
func (st *Store) Get(id int64) *Interaction {
	return st.byID[id]
}

// Len returns the number of interactions.
func (st *Store) Len() int { return len(st.interactions) }

// Last returns the most recently created interaction, or nil.
func (st *Store) Last() *Interaction {
	if len(st.interactions) == 0 {
		return nil
	}
	return st.interactions[len(st.interactions)-1]
}

// Append feeds bytes into the parser attached to the stream's screen.
// Unknown IDs and empty input are silently dropped: the job may have
// been torn down between a read and its post.
func (st *Store) Append(id int64, stream Stream, data []byte) {
	if len(data) == 0 {
		return
	}
	in := st.byID[id]
	if in == nil {
		return
	}
	in.Emulator(stream).Write(data)
}

// SetRunning transitions the interaction's run state. Transitions are
// monotone: Unstarted to Running, and Unstarted or Running to Exited
// (a spawn failure may exit without running). Anything else is ignored;
// an Exited interaction is frozen.
func (st *Store) SetRunning(id int64, state RunState, exitCode int) {
	in := st.byID[id]
	if in == nil {
		return
	}
	switch {
	case in.state == Unstarted && state == Running:
		in.state = Running
	case in.state != Exited && state == Exited:
		in.state = Exited
		in.exitCode = exitCode
	}
}

// SetVisibility sets the per-stream display policy.
func (st *Store) SetVisibility(id int64, stream Stream, v Visibility) {
	if in := st.byID[id]; in != nil {
		in.visibility[stream] = v
	}
}

// MarkTUI flags the interaction as driving the full display through its
// alternate buffer. The flag is sticky.
func (st *Store) MarkTUI(id int64) {
	if in := st.byID[id]; in != nil {
		in.TUI = true
	}
}

// Resize re-lays every screen of every interaction.
func (st *Store) Resize(rows, cols int) {
	st.rows = rows
	st.cols = cols
	for _, in := range st.interactions {
		in.prompt.Resize(1, cols)
		in.output.Resize(rows, cols)
		in.errOut.Resize(rows, cols)
	}
}

// contentRows returns how many leading rows of the screen hold content.
// The row under the cursor counts so an empty prompt line still shows.
func contentRows(s *term.Screen) int {
	last := -1
	for row, line := range s.VisibleLines() {
		if line.Text() != "" {
			last = row
		}
	}
	if cur := s.Cursor(); cur.Row > last && (cur.Col > 0 || last >= 0) {
		last = cur.Row
	}
	return last + 1
}

// IterLines produces the user-visible display sequence: for each
// interaction in creation order, its prompt rows, then the output
// screen's scrollback and content rows, then the error screen's content
// rows (its scrollback is not included), honoring per-stream
// visibility. The caller must hold the session lock for the duration of
// the iteration.
func (st *Store) IterLines() iter.Seq[LineRef] {
	return func(yield func(LineRef) bool) {
		for _, in := range st.interactions {
			if in.Visibility(StreamPrompt) == Visible {
				if !yieldScreen(yield, in, StreamPrompt, false) {
					return
				}
			}
			for _, stream := range []Stream{StreamOutput, StreamError} {
				if in.Visibility(stream) != Visible {
					continue
				}
				if !yieldScreen(yield, in, stream, stream == StreamOutput) {
					return
				}
			}
		}
	}
}

func yieldScreen(yield func(LineRef) bool, in *Interaction, stream Stream, withScrollback bool) bool {
	s := in.Screen(stream)
	row := 0
	if withScrollback {
		sb := s.Scrollback()
		for i := 0; i < sb.Len(); i++ {
			if !yield(LineRef{InteractionID: in.ID, Stream: stream, Row: row, Line: sb.Line(i)}) {
				return false
			}
			row++
		}
	}
	n := contentRows(s)
	for r, line := range s.VisibleLines() {
		if r >= n {
			break
		}
		if !yield(LineRef{InteractionID: in.ID, Stream: stream, Row: row, Line: line}) {
			return false
		}
		row++
	}
	return true
}
