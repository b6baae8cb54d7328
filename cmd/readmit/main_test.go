package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/readmit/readmit/internal/config"
	"github.com/readmit/readmit/internal/platform/db"
	"github.com/readmit/readmit/internal/platform/middleware"
	"github.com/readmit/readmit/internal/serving"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	want := []string{"serve", "clean", "featurize", "train", "pipeline", "migrate", "schema"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("expected subcommand %q, got %v (%v)", name, cmd, err)
		}
	}
	for _, path := range [][]string{{"migrate", "up"}, {"migrate", "status"}, {"schema", "list"}, {"schema", "show"}} {
		if cmd, _, err := root.Find(path); err != nil || cmd.Name() != path[1] {
			t.Errorf("expected subcommand %v", path)
		}
	}
}

func TestResolvePaths_FlagOverrides(t *testing.T) {
	cfg := &config.Config{
		RawDataPath:       "raw.csv",
		CleanedDataPath:   "cleaned.parquet",
		FeatureDataPath:   "features.parquet",
		FeatureSchemaPath: "schema.json",
		ModelPath:         "model.zst",
	}
	cmd := trainCmd()
	if err := cmd.Flags().Set("model", "other.zst"); err != nil {
		t.Fatal(err)
	}

	p := resolvePaths(cmd, cfg)
	if p.Model != "other.zst" {
		t.Errorf("expected flag override, got %s", p.Model)
	}
	if p.Features != "features.parquet" || p.Raw != "raw.csv" {
		t.Errorf("expected config paths for unset flags, got %+v", p)
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&config.Config{Env: "production", LogLevel: "warn"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected log output: %q", buf.String())
	}

	buf.Reset()
	logger = newLogger(&config.Config{Env: "production", LogLevel: "bogus"}, &buf)
	logger.Info().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("expected invalid level to fall back to info")
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, "public", []db.MigrationStatus{
		{Version: 1, Name: "feature_schemas", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "model_artifacts"},
	})
	out := buf.String()
	if !strings.Contains(out, "2026-01-02 03:04:05") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status output:\n%s", out)
	}
}

func TestNewServer_Middleware(t *testing.T) {
	cfg := &config.Config{
		CORSOrigins:    []string{"*"},
		BodyLimit:      "1K",
		RequestTimeout: time.Second,
	}
	holder := serving.Open(filepath.Join(t.TempDir(), "missing.zst"), zerolog.Nop())
	e := newServer(cfg, holder, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"age":"[70-80)"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("predict without model: expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	big := `{"x":"` + strings.Repeat("a", 2048) + `"}`
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(big)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: expected 413, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "readmission_model_loaded 0") {
		t.Errorf("expected model_loaded gauge at 0:\n%s", body)
	}
	if !strings.Contains(body, `route="/predict",status_code="503"`) {
		t.Errorf("expected /predict 503 series:\n%s", body)
	}
}
