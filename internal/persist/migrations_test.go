package persist

import (
	"io/fs"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil || len(files) == 0 {
		t.Fatalf("no embedded migrations: %v", err)
	}
	for _, f := range files {
		raw, err := fs.ReadFile(migrations, f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		body := string(raw)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s lacks goose up/down markers", f)
		}
	}
}

func TestGooseLoggerWritesDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := gooseLogger{s: zap.New(core).Sugar()}

	l.Printf("OK   %s", "00001_scene_transitions.sql")

	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zap.DebugLevel || entries[0].Message != "OK   00001_scene_transitions.sql" {
		t.Fatalf("entries = %+v", entries)
	}
}
