// Package shell parses submitted command lines into the small grammar
// the session executes: simple commands, pipelines, and-or chains,
// sequencing, and background marks. It is deliberately not a POSIX
// shell; word splitting and quoting follow shlex rules.
package shell

// Connector joins a pipeline to the result of the previous one.
type Connector int

const (
	// ConnNone marks the first pipeline of a list.
	ConnNone Connector = iota
	// ConnAnd runs the pipeline only if the previous succeeded (&&).
	ConnAnd
	// ConnOr runs the pipeline only if the previous failed (||).
	ConnOr
)

// Command is one pipeline stage: an argv vector after word splitting.
type Command struct {
	Argv []string
}

// Name returns the command name, or empty for a degenerate command.
func (c *Command) Name() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// Pipeline is one or more commands joined by '|'.
type Pipeline struct {
	Stages []*Command
}

// List is a chain of pipelines joined by && and ||, optionally marked to
// run in the background.
type List struct {
	Items      []ListItem
	Background bool
}

// ListItem is one pipeline of an and-or chain together with how it joins
// the previous item's result.
type ListItem struct {
	Conn     Connector
	Pipeline *Pipeline
}

// Program is a full submitted line: lists separated by ';' (or by a '&'
// that also backgrounds the list it terminates).
type Program struct {
	Lists []*List
}

// Empty returns true when the program contains no commands at all.
func (p *Program) Empty() bool {
	return p == nil || len(p.Lists) == 0
}
