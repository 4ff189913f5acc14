package shell

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, input string) *Program {
	t.Helper()
	prog, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return prog
}

func TestParseSimpleCommand(t *testing.T) {
	prog := mustParse(t, "ls -la /tmp")
	if len(prog.Lists) != 1 {
		t.Fatalf("lists = %d, want 1", len(prog.Lists))
	}
	items := prog.Lists[0].Items
	if len(items) != 1 || len(items[0].Pipeline.Stages) != 1 {
		t.Fatalf("unexpected shape: %+v", prog.Lists[0])
	}
	argv := items[0].Pipeline.Stages[0].Argv
	want := []string{"ls", "-la", "/tmp"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestParsePipeline(t *testing.T) {
	prog := mustParse(t, "cat foo | grep bar | wc -l")
	stages := prog.Lists[0].Items[0].Pipeline.Stages
	if len(stages) != 3 {
		t.Fatalf("stages = %d, want 3", len(stages))
	}
	if stages[1].Name() != "grep" {
		t.Errorf("stage 1 = %q, want grep", stages[1].Name())
	}
}

func TestParseAndOr(t *testing.T) {
	prog := mustParse(t, "false && echo yes || echo no")
	items := prog.Lists[0].Items
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[0].Conn != ConnNone || items[1].Conn != ConnAnd || items[2].Conn != ConnOr {
		t.Errorf("connectors = %v %v %v, want none/and/or",
			items[0].Conn, items[1].Conn, items[2].Conn)
	}
}

func TestParseSequenceAndBackground(t *testing.T) {
	prog := mustParse(t, "sleep 10 & echo done; ls")
	if len(prog.Lists) != 3 {
		t.Fatalf("lists = %d, want 3", len(prog.Lists))
	}
	if !prog.Lists[0].Background {
		t.Error("first list should be background")
	}
	if prog.Lists[1].Background || prog.Lists[2].Background {
		t.Error("later lists should be foreground")
	}
}

func TestParseQuotedOperators(t *testing.T) {
	prog := mustParse(t, `echo "a | b" 'c && d'`)
	stages := prog.Lists[0].Items[0].Pipeline.Stages
	if len(stages) != 1 {
		t.Fatalf("quoted operators split the pipeline: %+v", stages)
	}
	argv := stages[0].Argv
	if len(argv) != 3 || argv[1] != "a | b" || argv[2] != "c && d" {
		t.Errorf("argv = %q", argv)
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"a |",
		"| a",
		"a &&",
		"&& a",
		"a | | b",
		"'unterminated",
	} {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) error type %T, want *ParseError", input, err)
		}
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", ";", "; ;"} {
		prog, err := Parse(input)
		if err != nil {
			t.Errorf("Parse(%q): %v", input, err)
			continue
		}
		if !prog.Empty() {
			t.Errorf("Parse(%q) not empty: %+v", input, prog)
		}
	}
}

func TestInterpreterBuiltins(t *testing.T) {
	in := NewInterpreter()

	if got := in.Getenv("TERM"); got != "xterm-256color" {
		t.Errorf("TERM = %q, want xterm-256color", got)
	}

	code, _, _, err := in.RunBuiltin(&Command{Argv: []string{"FOO=bar"}})
	if err != nil || code != 0 {
		t.Fatalf("assignment: code=%d err=%v", code, err)
	}
	if got := in.Getenv("FOO"); got != "bar" {
		t.Errorf("FOO = %q, want bar", got)
	}

	code, _, _, _ = in.RunBuiltin(&Command{Argv: []string{"true"}})
	if code != 0 {
		t.Errorf("true = %d, want 0", code)
	}
	code, _, _, _ = in.RunBuiltin(&Command{Argv: []string{"false"}})
	if code != 1 {
		t.Errorf("false = %d, want 1", code)
	}

	_, _, _, err = in.RunBuiltin(&Command{Argv: []string{"exit", "3"}})
	var exitReq *ExitRequest
	if !errors.As(err, &exitReq) || exitReq.Code != 3 {
		t.Errorf("exit: err=%v, want ExitRequest{3}", err)
	}
}

func TestInterpreterCd(t *testing.T) {
	in := NewInterpreter()
	dir := t.TempDir()

	code, _, stderr, _ := in.RunBuiltin(&Command{Argv: []string{"cd", dir}})
	if code != 0 || stderr != "" {
		t.Fatalf("cd %s: code=%d stderr=%q", dir, code, stderr)
	}
	if in.Dir() != dir {
		t.Errorf("dir = %q, want %q", in.Dir(), dir)
	}
	if in.Getenv("PWD") != dir {
		t.Errorf("PWD = %q, want %q", in.Getenv("PWD"), dir)
	}

	code, _, stderr, _ = in.RunBuiltin(&Command{Argv: []string{"cd", "/definitely/not/a/dir"}})
	if code == 0 || stderr == "" {
		t.Errorf("cd to bogus dir: code=%d stderr=%q, want failure", code, stderr)
	}
}

func TestIsBuiltin(t *testing.T) {
	in := NewInterpreter()
	for _, name := range []string{"cd", "exit", "export", "true", "false", "unset", "NAME=v"} {
		if !in.IsBuiltin(&Command{Argv: []string{name}}) {
			t.Errorf("%q should be a builtin", name)
		}
	}
	for _, name := range []string{"ls", "grep", "3=x", "=x", "a-b=c"} {
		if in.IsBuiltin(&Command{Argv: []string{name}}) {
			t.Errorf("%q should not be a builtin", name)
		}
	}
}
