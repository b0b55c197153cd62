// Package console is the human-facing side of a session: leveled messages,
// yes/no prompts and line input.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// UI is what the verifier, the interpreter and the command handlers need
// from the operator's console.
type UI interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	// Severe reports a condition that ends the session
	Severe(msg string, fields ...zap.Field)

	// Confirm asks a yes/no question. Unrecognised answers yield def.
	Confirm(prompt string, def bool) bool
	// ReadLine shows prompt and returns the next input line without its
	// line terminator. io.EOF signals the end of input.
	ReadLine(prompt string) (string, error)
	// Out is where listings and help text are written
	Out() io.Writer
}

// SevereLevel carries severe messages. The console logger is never built in
// development mode, so this level logs without panicking.
const SevereLevel = zapcore.DPanicLevel

var (
	debugStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
	severeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#B91C1C")).Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
)

// LevelLabel returns the label printed for a level
func LevelLabel(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return "DEBUG"
	case zapcore.InfoLevel:
		return "INFO"
	case zapcore.WarnLevel:
		return "WARNING"
	case zapcore.ErrorLevel:
		return "ERROR"
	case SevereLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return "SEVERE"
	default:
		return strings.ToUpper(l.String())
	}
}

func styledLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	label := "[" + LevelLabel(l) + "]"
	switch l {
	case zapcore.DebugLevel:
		label = debugStyle.Render(label)
	case zapcore.InfoLevel:
		label = infoStyle.Render(label)
	case zapcore.WarnLevel:
		label = warnStyle.Render(label)
	case zapcore.ErrorLevel:
		label = errorStyle.Render(label)
	default:
		label = severeStyle.Render(label)
	}
	enc.AppendString(label)
}

func plainLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + LevelLabel(l) + "]")
}

// ParseLevel maps a configuration value to a level. "severe" and
// "warning" are accepted alongside zap's own names.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "severe":
		return SevereLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q: %w", name, err)
	}
	return l, nil
}

// Option configures a Console
type Option func(*options)

type options struct {
	level   zapcore.Level
	logFile string
	color   bool
}

// WithLevel sets the minimum level printed on the console
func WithLevel(l zapcore.Level) Option {
	return func(o *options) { o.level = l }
}

// WithLogFile additionally writes every message, at debug level and above,
// to a rotated log file
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// WithColor toggles lipgloss styling of level labels
func WithColor(enabled bool) Option {
	return func(o *options) { o.color = enabled }
}

// Console is the interactive UI
type Console struct {
	logger *zap.Logger
	in     *bufio.Reader
	out    io.Writer
	closer io.Closer
	color  bool

	mu sync.Mutex
}

// New creates a console reading answers from in and writing to out
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	o := options{level: zapcore.InfoLevel, color: true}
	for _, opt := range opts {
		opt(&o)
	}

	encCfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      plainLevelEncoder,
		ConsoleSeparator: " ",
	}
	if o.color {
		encCfg.EncodeLevel = styledLevelEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), o.level),
	}

	c := &Console{
		in:    bufio.NewReader(in),
		out:   out,
		color: o.color,
	}

	if o.logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCfg.EncodeLevel = plainLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileCfg), zapcore.AddSync(rotator), zapcore.DebugLevel))
		c.closer = rotator
	}

	c.logger = zap.New(zapcore.NewTee(cores...))
	return c
}

// Logger exposes the underlying zap logger
func (c *Console) Logger() *zap.Logger {
	return c.logger
}

func (c *Console) Debug(msg string, fields ...zap.Field) { c.logger.Debug(msg, fields...) }
func (c *Console) Info(msg string, fields ...zap.Field)  { c.logger.Info(msg, fields...) }
func (c *Console) Warn(msg string, fields ...zap.Field)  { c.logger.Warn(msg, fields...) }
func (c *Console) Error(msg string, fields ...zap.Field) { c.logger.Error(msg, fields...) }

func (c *Console) Severe(msg string, fields ...zap.Field) {
	if ce := c.logger.Check(SevereLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Confirm prints prompt followed by [Y/N] and reads one answer line
func (c *Console) Confirm(prompt string, def bool) bool {
	line, err := c.ReadLine(prompt + " [Y/N] >")
	if err != nil {
		return def
	}
	return ParseAnswer(line, def)
}

// ReadLine implements UI
func (c *Console) ReadLine(prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prompt != "" {
		if c.color {
			prompt = promptStyle.Render(prompt)
		}
		_, _ = fmt.Fprint(c.out, prompt+" ")
	}

	line, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Out implements UI
func (c *Console) Out() io.Writer {
	return c.out
}

// Close flushes the logger and closes the log file, if any
func (c *Console) Close() error {
	_ = c.logger.Sync()
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

var (
	yesAnswers = []string{"y", "yes", "t", "true", "1"}
	noAnswers  = []string{"n", "no", "f", "false", "0"}
)

// ParseAnswer interprets a yes/no answer, falling back to def
func ParseAnswer(answer string, def bool) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	for _, y := range yesAnswers {
		if a == y {
			return true
		}
	}
	for _, n := range noAnswers {
		if a == n {
			return false
		}
	}
	return def
}
