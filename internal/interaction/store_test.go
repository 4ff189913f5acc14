package interaction

import (
	"strings"
	"testing"

	"bite/internal/term"
)

func TestCreateSeedsPrompt(t *testing.T) {
	st := NewStore(24, 80, 100)
	id := st.Create("ls -la")
	in := st.Get(id)
	if in == nil {
		t.Fatal("interaction not found")
	}
	if in.State() != Unstarted {
		t.Errorf("state = %v, want Unstarted", in.State())
	}
	if got := in.Screen(StreamPrompt).Line(0).Text(); got != "$ ls -la" {
		t.Errorf("prompt line = %q, want %q", got, "$ ls -la")
	}
	if in.CreatedAt.IsZero() {
		t.Error("creation timestamp not set")
	}
}

func TestIDsAreMonotonic(t *testing.T) {
	st := NewStore(24, 80, 100)
	a := st.Create("a")
	b := st.Create("b")
	c := st.Create("c")
	if !(a < b && b < c) {
		t.Errorf("ids = %d %d %d, want strictly increasing", a, b, c)
	}
}

func TestAppendFeedsParser(t *testing.T) {
	st := NewStore(24, 80, 100)
	id := st.Create("x")
	st.Append(id, StreamOutput, []byte("hello \x1b[1mbold\x1b[0m"))
	scr := st.Get(id).Screen(StreamOutput)
	if got := scr.Line(0).Text(); got != "hello bold" {
		t.Errorf("line = %q, want %q", got, "hello bold")
	}
	if c := scr.Cell(0, 6); !c.Attrs.Has(term.AttrBold) {
		t.Errorf("cell attrs = %v, want bold", c.Attrs)
	}
}

func TestAppendUnknownIDDropped(t *testing.T) {
	st := NewStore(24, 80, 100)
	st.Append(42, StreamOutput, []byte("lost"))
	// Must not panic; the bytes vanish.
}

func TestAppendEmptyIsNoop(t *testing.T) {
	st := NewStore(24, 80, 100)
	id := st.Create("x")
	st.Append(id, StreamOutput, nil)
	st.Append(id, StreamOutput, []byte{})
	if got := st.Get(id).Screen(StreamOutput).Line(0).Text(); got != "" {
		t.Errorf("line = %q, want empty", got)
	}
}

func TestRunStateMonotone(t *testing.T) {
	st := NewStore(24, 80, 100)
	id := st.Create("x")

	// Exited before Running is legal (spawn failure path).
	st.SetRunning(id, Exited, 127)
	in := st.Get(id)
	if code, ok := in.ExitCode(); !ok || code != 127 {
		t.Fatalf("exit code = %d,%v want 127,true", code, ok)
	}

	// An Exited interaction is frozen.
	st.SetRunning(id, Running, 0)
	if in.State() != Exited {
		t.Errorf("state = %v, want still Exited", in.State())
	}
	st.SetRunning(id, Exited, 0)
	if code, _ := in.ExitCode(); code != 127 {
		t.Errorf("exit code changed to %d, want frozen 127", code)
	}
}

func TestExitCodeHiddenBeforeExit(t *testing.T) {
	st := NewStore(24, 80, 100)
	id := st.Create("x")
	if _, ok := st.Get(id).ExitCode(); ok {
		t.Error("exit code visible while Unstarted")
	}
	st.SetRunning(id, Running, 0)
	if _, ok := st.Get(id).ExitCode(); ok {
		t.Error("exit code visible while Running")
	}
}

func TestVisibilityFiltersIterLines(t *testing.T) {
	st := NewStore(5, 40, 100)
	id := st.Create("cmd")
	st.Append(id, StreamOutput, []byte("shown output\r\n"))
	st.Append(id, StreamError, []byte("shown error\r\n"))

	collect := func() string {
		var lines []string
		for ref := range st.IterLines() {
			lines = append(lines, ref.Line.Text())
		}
		return strings.Join(lines, "\n")
	}

	all := collect()
	if !strings.Contains(all, "shown output") || !strings.Contains(all, "shown error") {
		t.Fatalf("iter = %q, want both streams", all)
	}

	st.SetVisibility(id, StreamError, Hidden)
	filtered := collect()
	if strings.Contains(filtered, "shown error") {
		t.Errorf("iter = %q, hidden stream leaked", filtered)
	}
	if !strings.Contains(filtered, "shown output") {
		t.Errorf("iter = %q, lost visible stream", filtered)
	}
}

func TestIterLinesIncludesScrollback(t *testing.T) {
	st := NewStore(3, 40, 100)
	id := st.Create("cmd")
	for _, s := range []string{"one", "two", "three", "four", "five"} {
		st.Append(id, StreamOutput, []byte(s+"\r\n"))
	}
	var lines []string
	for ref := range st.IterLines() {
		if ref.Stream == StreamOutput && ref.Line.Text() != "" {
			lines = append(lines, ref.Line.Text())
		}
	}
	want := []string{"one", "two", "three", "four", "five"}
	if len(lines) < len(want) {
		t.Fatalf("lines = %v, want at least %d", lines, len(want))
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q (emission order)", i, lines[i], w)
		}
	}
}

func TestIterLinesRowNumbering(t *testing.T) {
	st := NewStore(5, 40, 100)
	id := st.Create("cmd")
	st.Append(id, StreamOutput, []byte("a\r\nb\r\n"))
	prev := -1
	for ref := range st.IterLines() {
		if ref.Stream != StreamOutput {
			continue
		}
		if ref.Row <= prev {
			t.Errorf("rows not increasing: %d after %d", ref.Row, prev)
		}
		prev = ref.Row
	}
}

func TestMarkTUISticky(t *testing.T) {
	st := NewStore(24, 80, 100)
	id := st.Create("vi")
	st.MarkTUI(id)
	if !st.Get(id).TUI {
		t.Error("TUI flag not set")
	}
}

func TestSetCommandOnlyWhileUnstarted(t *testing.T) {
	st := NewStore(24, 80, 100)
	id := st.Create("")
	st.SetCommand(id, "typed")
	if got := st.Get(id).Command; got != "typed" {
		t.Errorf("command = %q, want typed", got)
	}
	st.SetRunning(id, Running, 0)
	st.SetCommand(id, "changed")
	if got := st.Get(id).Command; got != "typed" {
		t.Errorf("command = %q, running interaction must freeze text", got)
	}
}

func TestStoreResize(t *testing.T) {
	st := NewStore(10, 40, 100)
	id := st.Create("x")
	st.Append(id, StreamOutput, []byte("content"))
	st.Resize(5, 20)
	scr := st.Get(id).Screen(StreamOutput)
	if scr.Rows() != 5 || scr.Cols() != 20 {
		t.Errorf("size = %dx%d, want 5x20", scr.Rows(), scr.Cols())
	}
	if got := scr.Line(0).Text(); got != "content" {
		t.Errorf("content lost on resize: %q", got)
	}
}
