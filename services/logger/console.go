package logsvc

import (
	"log"

	"github.com/trezcool/certstudio/core"
)

// ConsoleLogger only writes to a standard logger. Used in DEV and TEST.
type ConsoleLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*ConsoleLogger)(nil)

func NewConsoleLogger(std *log.Logger, debug bool) *ConsoleLogger {
	return &ConsoleLogger{std: std, debug: debug}
}

func (l ConsoleLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		printEvent(l.std, "DEBUG", msg, args)
	}
}

func (l ConsoleLogger) Info(msg string, args ...interface{}) {
	printEvent(l.std, "INFO", msg, args)
}

func (l ConsoleLogger) Warn(msg string, args ...interface{}) {
	printEvent(l.std, "WARN", msg, args)
}

func (l ConsoleLogger) Error(msg string, args ...interface{}) {
	printEvent(l.std, "ERROR", msg, args)
}

func (l ConsoleLogger) Fatal(msg string, args ...interface{}) {
	printEvent(l.std, "FATAL", msg, args)
	l.std.Fatal(msg)
}

// printEvent writes the message, then one line per argument.
func printEvent(std *log.Logger, level, msg string, args []interface{}) {
	std.Printf("%s: %s\n", level, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case core.Person:
			std.Printf("  user: %s (%s)\n", a.Username, a.ID)
		default:
			std.Printf("  %+v\n", a)
		}
	}
}

// New returns the Rollbar logger when a token is configured, the console logger otherwise.
func New(std *log.Logger, conf *core.Config) core.Logger {
	if conf.RollbarToken == "" {
		return NewConsoleLogger(std, conf.Debug)
	}
	return NewRollbarLogger(std, conf)
}
