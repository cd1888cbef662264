package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{" ERROR ", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q): got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := Setup("info", "json", &buf)

	log.WithField("tile", "18/1/2").Info("fetched")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["tile"] != "18/1/2" {
		t.Errorf("tile field: got %v", entry["tile"])
	}
	if entry["msg"] != "fetched" {
		t.Errorf("msg field: got %v", entry["msg"])
	}
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := Setup("warn", "text", &buf)

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message missing")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	// Must not panic.
	OrDiscard(nil).WithField("k", "v").Error("dropped")

	l := logrus.New()
	if OrDiscard(l) != logrus.FieldLogger(l) {
		t.Error("OrDiscard should return a non-nil logger unchanged")
	}
}
