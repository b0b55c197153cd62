package repl

import (
	"strings"
	"unicode"
)

// Separator chains several commands on one line
const Separator = ';'

// Command is one sub-command of an input line
type Command struct {
	Core string
	Args []string
	// Carryover is the trimmed, unparsed text after the separator. Empty
	// when the line is consumed.
	Carryover string
}

type scanState int

const (
	stateBare scanState = iota
	stateSingle
	stateDouble
)

// Parse extracts the first command of line. Whitespace separates tokens,
// single quotes group literally, double quotes group with \" and \\
// escapes, and a backslash outside quotes escapes the next rune. An
// unterminated quote runs to the end of the line. A Command with an empty
// Core means there was nothing before the separator.
func Parse(line string) Command {
	var (
		tokens  []string
		cur     strings.Builder
		inToken bool
		escaped bool
		state   = stateBare
	)

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
		inToken = false
	}

	for i, r := range line {
		if escaped {
			if state == stateDouble && r != '"' && r != '\\' {
				cur.WriteRune('\\')
			}
			cur.WriteRune(r)
			escaped = false
			continue
		}

		switch state {
		case stateSingle:
			if r == '\'' {
				state = stateBare
				continue
			}
			cur.WriteRune(r)

		case stateDouble:
			switch r {
			case '\\':
				escaped = true
			case '"':
				state = stateBare
			default:
				cur.WriteRune(r)
			}

		default:
			switch {
			case r == '\\':
				escaped = true
				inToken = true
			case r == '\'':
				state = stateSingle
				inToken = true
			case r == '"':
				state = stateDouble
				inToken = true
			case r == Separator:
				flush()
				return newCommand(tokens, strings.TrimSpace(line[i+1:]))
			case unicode.IsSpace(r):
				flush()
			default:
				cur.WriteRune(r)
				inToken = true
			}
		}
	}

	if escaped {
		cur.WriteRune('\\')
	}
	flush()
	return newCommand(tokens, "")
}

func newCommand(tokens []string, carryover string) Command {
	cmd := Command{Carryover: carryover}
	if len(tokens) > 0 {
		cmd.Core = tokens[0]
	}
	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}
	return cmd
}

// Split parses every chained command of line in order, dropping empty ones
func Split(line string) []Command {
	var cmds []Command
	for rest := strings.TrimSpace(line); rest != ""; {
		cmd := Parse(rest)
		rest = cmd.Carryover
		if cmd.Core != "" {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}
