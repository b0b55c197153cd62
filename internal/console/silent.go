package console

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Entry is a message recorded by Silent
type Entry struct {
	Level   zapcore.Level
	Message string
}

// Silent is a non-interactive UI. It prints nothing, records messages,
// answers prompts from a script and reads input lines from a queue. Used
// by tests and by one-shot command execution.
type Silent struct {
	Entries []Entry
	Prompts []string

	answers []bool
	lines   []string
	out     bytes.Buffer
}

// NewSilent creates a Silent UI that answers Confirm prompts in order with
// answers; once they run out the prompt's default is used.
func NewSilent(answers ...bool) *Silent {
	return &Silent{answers: answers}
}

// QueueLines appends input lines returned by ReadLine
func (s *Silent) QueueLines(lines ...string) {
	s.lines = append(s.lines, lines...)
}

func (s *Silent) record(l zapcore.Level, msg string) {
	s.Entries = append(s.Entries, Entry{Level: l, Message: msg})
}

func (s *Silent) Debug(msg string, _ ...zap.Field)  { s.record(zapcore.DebugLevel, msg) }
func (s *Silent) Info(msg string, _ ...zap.Field)   { s.record(zapcore.InfoLevel, msg) }
func (s *Silent) Warn(msg string, _ ...zap.Field)   { s.record(zapcore.WarnLevel, msg) }
func (s *Silent) Error(msg string, _ ...zap.Field)  { s.record(zapcore.ErrorLevel, msg) }
func (s *Silent) Severe(msg string, _ ...zap.Field) { s.record(SevereLevel, msg) }

// Confirm implements UI
func (s *Silent) Confirm(prompt string, def bool) bool {
	s.Prompts = append(s.Prompts, prompt)
	if len(s.answers) == 0 {
		return def
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a
}

// ReadLine implements UI
func (s *Silent) ReadLine(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

// Out implements UI
func (s *Silent) Out() io.Writer {
	return &s.out
}

// Output returns everything written to Out
func (s *Silent) Output() string {
	return s.out.String()
}

// Messages returns the recorded messages at level l
func (s *Silent) Messages(l zapcore.Level) []string {
	var msgs []string
	for _, e := range s.Entries {
		if e.Level == l {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// Contains reports whether any message at level l contains substr
func (s *Silent) Contains(l zapcore.Level, substr string) bool {
	for _, m := range s.Messages(l) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func (s *Silent) String() string {
	var b strings.Builder
	for _, e := range s.Entries {
		fmt.Fprintf(&b, "[%s] %s\n", LevelLabel(e.Level), e.Message)
	}
	return b.String()
}
