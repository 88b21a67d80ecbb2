package logging

import "testing"

func TestNewLoggerWithService(t *testing.T) {
	l := NewLoggerWithService("trawler")
	entry := l.WithField("account", "somebrand")
	if entry == nil {
		t.Fatalf("expected non-nil entry")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if parseLevel("verbose").String() != "info" {
		t.Fatalf("unknown level should default to info")
	}
	if parseLevel("debug").String() != "debug" {
		t.Fatalf("debug level not honored")
	}
}
