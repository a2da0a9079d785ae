package logger

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

var noColor = os.Getenv("TERM") == "dumb" ||
	(!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))

const (
	reset      = "\033[0m"
	gray       = "\033[1;90m"
	blueBold   = "\033[34;1m"
	yellowBold = "\033[33;1m"
	redBold    = "\033[31;1m"
	cyanBold   = "\033[36;1m"
)

func colorize(code, s string) string {
	if isWindows || noColor {
		return s
	}
	return code + s + reset
}

// consoleLogger renders colorized, human-readable lines to a Sink. Color is
// suppressed on Windows, when TERM is "dumb", or when the process's stdout
// is not a terminal; the sink itself is not inspected.
type consoleLogger struct {
	mu       *sync.Mutex
	sink     Sink
	level    LogLevel
	prefixes []string
	fields   map[string]interface{}
}

var _ SinkLogger = (*consoleLogger)(nil)

// NewConsole returns a Logger that writes colorized lines to sink at or
// above level. A nil sink defaults to os.Stderr.
func NewConsole(sink Sink, level LogLevel) SinkLogger {
	if sink == nil {
		sink = os.Stderr
	}
	return &consoleLogger{mu: &sync.Mutex{}, sink: sink, level: level, fields: map[string]interface{}{}}
}

func (c *consoleLogger) clone() *consoleLogger {
	prefixes := make([]string, len(c.prefixes))
	copy(prefixes, c.prefixes)
	fields := make(map[string]interface{}, len(c.fields))
	for k, v := range c.fields {
		fields[k] = v
	}
	return &consoleLogger{mu: c.mu, sink: c.sink, level: c.level, prefixes: prefixes, fields: fields}
}

func (c *consoleLogger) With(fields map[string]interface{}) Logger {
	clone := c.clone()
	for k, v := range fields {
		clone.fields[k] = v
	}
	return clone
}

func (c *consoleLogger) WithPrefix(prefix string) Logger {
	clone := c.clone()
	clone.prefixes = append(clone.prefixes, prefix)
	return clone
}

func (c *consoleLogger) SetSink(sink Sink, level LogLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
	c.level = level
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return level >= c.level
}

func (c *consoleLogger) log(level LogLevel, label, color, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	line := fmt.Sprintf(msg, args...)
	prefix := ""
	if len(c.prefixes) > 0 {
		prefix = "[" + strings.Join(c.prefixes, ".") + "] "
	}
	var fieldStr strings.Builder
	for k, v := range c.fields {
		fmt.Fprintf(&fieldStr, " %s=%v", k, v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.sink, "%s %s %s%s%s\n",
		time.Now().Format(time.RFC3339),
		colorize(color, label),
		prefix, line, fieldStr.String())
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) {
	c.log(LevelTrace, "TRACE", gray, msg, args...)
}
func (c *consoleLogger) Debug(msg string, args ...interface{}) {
	c.log(LevelDebug, "DEBUG", blueBold, msg, args...)
}
func (c *consoleLogger) Info(msg string, args ...interface{}) {
	c.log(LevelInfo, "INFO", cyanBold, msg, args...)
}
func (c *consoleLogger) Warn(msg string, args ...interface{}) {
	c.log(LevelWarn, "WARN", yellowBold, msg, args...)
}
func (c *consoleLogger) Error(msg string, args ...interface{}) {
	c.log(LevelError, "ERROR", redBold, msg, args...)
}
