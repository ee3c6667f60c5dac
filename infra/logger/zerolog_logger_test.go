package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerJSONOutput(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	var buf bytes.Buffer
	l := NewZerologLoggerTo("dispatch", &buf)
	l.Infof("unit %s dispatched", "u1")
	out := buf.String()
	assert.Contains(t, out, `"component":"dispatch"`)
	assert.Contains(t, out, "unit u1 dispatched")
}
