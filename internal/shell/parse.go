package shell

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// ParseError is a shell grammar error. It is a value, never a panic; the
// session surfaces it on the interaction's error screen.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bite: parse error: %s", e.Msg)
}

// operator tokens recognized between words, longest match first.
var operators = []string{"&&", "||", ";", "|", "&"}

// token is either an operator or a run of ordinary shell text.
type token struct {
	op   string // operator, or empty for text
	text string
}

// Parse turns a submitted line into a Program. Quoting is respected when
// locating operators; word splitting within each command uses shlex.
func Parse(input string) (*Program, error) {
	tokens, err := splitOperators(input)
	if err != nil {
		return nil, &ParseError{Input: input, Msg: err.Error()}
	}

	prog := &Program{}
	list := &List{}
	pipeline := &Pipeline{}
	conn := ConnNone

	flushCommand := func(text string) error {
		words, err := shlex.Split(text)
		if err != nil {
			return err
		}
		if len(words) == 0 {
			return fmt.Errorf("missing command")
		}
		pipeline.Stages = append(pipeline.Stages, &Command{Argv: words})
		return nil
	}
	flushPipeline := func() {
		if len(pipeline.Stages) == 0 {
			return
		}
		list.Items = append(list.Items, ListItem{Conn: conn, Pipeline: pipeline})
		pipeline = &Pipeline{}
	}
	flushList := func(background bool) {
		flushPipeline()
		if len(list.Items) == 0 {
			return
		}
		list.Background = background
		prog.Lists = append(prog.Lists, list)
		list = &List{}
		conn = ConnNone
	}

	pendingText := ""
	takeText := func(op string) (string, error) {
		t := strings.TrimSpace(pendingText)
		pendingText = ""
		if t == "" {
			return "", fmt.Errorf("syntax error near %q", op)
		}
		return t, nil
	}

	for _, tok := range tokens {
		if tok.op == "" {
			pendingText += tok.text
			continue
		}
		switch tok.op {
		case "|":
			text, err := takeText("|")
			if err != nil {
				return nil, &ParseError{Input: input, Msg: err.Error()}
			}
			if err := flushCommand(text); err != nil {
				return nil, &ParseError{Input: input, Msg: err.Error()}
			}
		case "&&", "||":
			text, err := takeText(tok.op)
			if err != nil {
				return nil, &ParseError{Input: input, Msg: err.Error()}
			}
			if err := flushCommand(text); err != nil {
				return nil, &ParseError{Input: input, Msg: err.Error()}
			}
			flushPipeline()
			if tok.op == "&&" {
				conn = ConnAnd
			} else {
				conn = ConnOr
			}
		case ";", "&":
			if t := strings.TrimSpace(pendingText); t != "" {
				pendingText = ""
				if err := flushCommand(t); err != nil {
					return nil, &ParseError{Input: input, Msg: err.Error()}
				}
			} else if len(pipeline.Stages) == 0 && len(list.Items) == 0 {
				// A bare separator with nothing before it.
				if tok.op == "&" {
					return nil, &ParseError{Input: input, Msg: "syntax error near \"&\""}
				}
				continue
			}
			flushList(tok.op == "&")
		}
	}

	if t := strings.TrimSpace(pendingText); t != "" {
		if err := flushCommand(t); err != nil {
			return nil, &ParseError{Input: input, Msg: err.Error()}
		}
	} else if len(pipeline.Stages) > 0 || conn != ConnNone {
		// The line ended right after an operator that needs an operand.
		return nil, &ParseError{Input: input, Msg: "unexpected end of input"}
	}
	flushList(false)

	return prog, nil
}

// splitOperators walks the raw line and separates operator tokens from
// ordinary text, honoring single quotes, double quotes, and backslash
// escapes so a '|' inside quotes stays literal.
func splitOperators(input string) ([]token, error) {
	var tokens []token
	var text strings.Builder
	flushText := func() {
		if text.Len() > 0 {
			tokens = append(tokens, token{text: text.String()})
			text.Reset()
		}
	}

	i := 0
	for i < len(input) {
		c := input[i]
		switch c {
		case '\\':
			if i+1 < len(input) {
				text.WriteByte(c)
				text.WriteByte(input[i+1])
				i += 2
				continue
			}
			text.WriteByte(c)
			i++
		case '\'', '"':
			quote := c
			start := i
			i++
			closed := false
			for i < len(input) {
				if quote == '"' && input[i] == '\\' && i+1 < len(input) {
					i += 2
					continue
				}
				if input[i] == quote {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated %c quote", quote)
			}
			text.WriteString(input[start:i])
		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(input[i:], op) {
					flushText()
					tokens = append(tokens, token{op: op})
					i += len(op)
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			text.WriteByte(c)
			i++
		}
	}
	flushText()
	return tokens, nil
}
