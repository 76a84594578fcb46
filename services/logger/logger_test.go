package logsvc

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
)

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(log.New(&buf, "", 0), false)

	l.Debug("hidden")
	l.Warn("reading export cache", errors.New("redis: connection refused"), core.Person{ID: "u1", Username: "ann"})

	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Error("Debug() printed with debug disabled")
	}
	for _, want := range []string{"WARN: reading export cache", "redis: connection refused", "user: ann (u1)"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q does not contain %q", got, want)
		}
	}
}

func TestNew(t *testing.T) {
	std := log.New(&bytes.Buffer{}, "", 0)
	if _, ok := New(std, &core.Config{}).(*ConsoleLogger); !ok {
		t.Error("New() without a token is not a ConsoleLogger")
	}
}

func TestRollbarLogger_prepare(t *testing.T) {
	var buf bytes.Buffer
	l := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST"})
	err := errors.New("boom")
	args := l.prepare("saving", []interface{}{err, core.Person{ID: "u1"}, map[string]interface{}{"design": "d1"}})
	if len(args) != 3 || args[0] != "saving" || args[1] != err {
		t.Errorf("prepare() = %v", args)
	}
}
