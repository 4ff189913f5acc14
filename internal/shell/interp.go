package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Interpreter holds the in-process shell state: the environment map and
// working directory shared by every command of a session. It is an owned
// value with no process-global state; the session passes it to builtins
// explicitly.
type Interpreter struct {
	env map[string]string
	dir string

	// Pipefail folds earlier stage failures into a pipeline's exit code.
	Pipefail bool
}

// ExitRequest is returned by the exit builtin to unwind the session.
type ExitRequest struct {
	Code int
}

func (e *ExitRequest) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

// NewInterpreter returns an interpreter seeded from the process
// environment and working directory.
func NewInterpreter() *Interpreter {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	dir, err := os.Getwd()
	if err != nil {
		dir = env["HOME"]
	}
	// Children see a terminal, not whatever hosted bite.
	env["TERM"] = "xterm-256color"
	return &Interpreter{env: env, dir: dir}
}

// Dir returns the interpreter's working directory.
func (in *Interpreter) Dir() string { return in.dir }

// Getenv returns the value for key, empty when unset.
func (in *Interpreter) Getenv(key string) string { return in.env[key] }

// Setenv sets an environment value.
func (in *Interpreter) Setenv(key, value string) { in.env[key] = value }

// Environ renders the environment as KEY=value pairs for exec, sorted
// for stable child environments.
func (in *Interpreter) Environ() []string {
	keys := make([]string, 0, len(in.env))
	for k := range in.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+in.env[k])
	}
	return out
}

// LookPath resolves a command name against the interpreter's PATH.
func (in *Interpreter) LookPath(name string) (string, error) {
	return LookPath(name, in.env["PATH"], in.dir)
}

// LookPath resolves a command name against an explicit PATH value and
// working directory, so callers can resolve from a snapshot without
// holding the interpreter.
func LookPath(name, pathEnv, workDir string) (string, error) {
	if strings.ContainsRune(name, '/') {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		if isExecutable(path) {
			return path, nil
		}
		return "", fmt.Errorf("%s: no such file or directory", name)
	}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			dir = "."
		}
		path := filepath.Join(dir, name)
		if isExecutable(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s: command not found", name)
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0
}

// IsBuiltin reports whether the command runs in-process without a job.
// A standalone NAME=value assignment counts as a builtin.
func (in *Interpreter) IsBuiltin(cmd *Command) bool {
	switch cmd.Name() {
	case "cd", "exit", "export", "unset", "true", "false", "pwd":
		return true
	}
	return isAssignment(cmd.Name())
}

// isAssignment reports whether the word has the NAME=value shape.
func isAssignment(word string) bool {
	i := strings.IndexByte(word, '=')
	if i <= 0 {
		return false
	}
	for _, r := range word[:i] {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	if word[0] >= '0' && word[0] <= '9' {
		return false
	}
	return true
}

// RunBuiltin executes a builtin and returns its exit code plus any text
// destined for the interaction's output and error screens. The exit
// builtin returns an *ExitRequest so the session can unwind.
func (in *Interpreter) RunBuiltin(cmd *Command) (code int, stdout, stderr string, err error) {
	switch cmd.Name() {
	case "cd":
		code, stderr = in.cd(cmd.Argv[1:])
		return code, "", stderr, nil
	case "exit":
		c := 0
		if len(cmd.Argv) > 1 {
			fmt.Sscanf(cmd.Argv[1], "%d", &c)
		}
		return c, "", "", &ExitRequest{Code: c}
	case "export":
		for _, arg := range cmd.Argv[1:] {
			if i := strings.IndexByte(arg, '='); i > 0 {
				in.env[arg[:i]] = arg[i+1:]
			}
		}
		return 0, "", "", nil
	case "unset":
		for _, arg := range cmd.Argv[1:] {
			delete(in.env, arg)
		}
		return 0, "", "", nil
	case "true":
		return 0, "", "", nil
	case "false":
		return 1, "", "", nil
	case "pwd":
		return 0, in.dir + "\r\n", "", nil
	default:
		if isAssignment(cmd.Name()) {
			i := strings.IndexByte(cmd.Name(), '=')
			in.env[cmd.Name()[:i]] = cmd.Name()[i+1:]
			return 0, "", "", nil
		}
	}
	return 127, "", fmt.Sprintf("bite: %s: not a builtin", cmd.Name()), nil
}

func (in *Interpreter) cd(args []string) (int, string) {
	target := in.env["HOME"]
	arg := target
	if len(args) > 0 {
		target = args[0]
		arg = target
	}
	if target == "" {
		return 1, "bite: cd: HOME not set"
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(in.dir, target)
	}
	fi, err := os.Stat(target)
	if err != nil {
		return 1, fmt.Sprintf("bite: cd: %s: no such file or directory", arg)
	}
	if !fi.IsDir() {
		return 1, fmt.Sprintf("bite: cd: %s: not a directory", arg)
	}
	in.dir = target
	in.env["PWD"] = target
	return 0, ""
}
