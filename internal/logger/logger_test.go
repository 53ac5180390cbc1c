package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"DEBUG":   logrus.DebugLevel,
		" warn ":  logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigure_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevLevel := Logger.Out, Logger.GetLevel()
	defer func() {
		Logger.SetOutput(prevOut)
		Logger.SetLevel(prevLevel)
	}()

	Configure("debug", &buf)
	WithField("use_case", "poster").Debug("analysis requested")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["use_case"] != "poster" {
		t.Errorf("Expected use_case field, got %v", entry["use_case"])
	}
	if entry["msg"] != "analysis requested" {
		t.Errorf("Unexpected msg: %v", entry["msg"])
	}
}
