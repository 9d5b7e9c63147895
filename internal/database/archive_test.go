package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/redirscan/internal/model"
)

// setupTestDB creates a temporary archive for testing.
func setupTestDB(t *testing.T) *ArchiveDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testReport(initial, final string, hops, status int, analyzedAt time.Time) *model.Report {
	return &model.Report{
		Chain: &model.ChainResult{
			InitialURL: initial,
			HopCount:   hops,
			Final:      model.FinalDestination{Hop: model.Hop{URL: final, StatusCode: status}},
		},
		Security:   &model.SecurityAnalysis{SuspiciousIndicators: []string{"URL shortener detected"}},
		RiskScore:  2,
		RiskLevel:  model.RiskMedium,
		AnalyzedAt: analyzedAt,
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %s", db.Path())
		}
	})

	t.Run("creates database readable by owner only", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("unix permission bits are not enforced on windows")
		}

		dbDir := t.TempDir()
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		info, err := os.Stat(filepath.Join(dbDir, FileName))
		if err != nil {
			t.Fatalf("stat database: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("database mode = %o, want 600", perm)
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if _, err := db.SaveReport(context.Background(), testReport("https://a.example/", "https://b.example/", 1, 200, time.Time{})); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}
		_ = db.Close()

		reopened, err := Open(dir, Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer reopened.Close()

		urls, err := reopened.ListURLs(context.Background())
		if err != nil || !slices.Equal(urls, []string{"https://a.example/"}) {
			t.Errorf("ListURLs = %v, %v", urls, err)
		}
	})
}

func TestSaveAndLoadReport(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	analyzedAt := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	id, err := db.SaveReport(ctx, testReport("https://a.example/", "https://b.example/", 1, 200, analyzedAt))
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	report, err := db.ReportByID(ctx, id)
	if err != nil {
		t.Fatalf("ReportByID failed: %v", err)
	}
	if report.Chain.Final.URL != "https://b.example/" || report.RiskLevel != model.RiskMedium {
		t.Errorf("unexpected report %+v", report)
	}
	if !report.AnalyzedAt.Equal(analyzedAt) {
		t.Errorf("analyzedAt = %v, want %v", report.AnalyzedAt, analyzedAt)
	}

	if _, err := db.ReportByID(ctx, id+100); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
	if _, err := db.SaveReport(ctx, &model.Report{}); err == nil {
		t.Error("expected error for report without chain")
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, final := range []string{"https://one.example/", "https://two.example/", "https://three.example/"} {
		if _, err := db.SaveReport(ctx, testReport("https://a.example/", final, i, 200, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}
	}
	if _, err := db.SaveReport(ctx, testReport("https://other.example/", "https://x.example/", 0, 200, base)); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()

		entries, err := db.History(ctx, "https://a.example/", 0)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		if entries[0].FinalURL != "https://three.example/" || entries[2].FinalURL != "https://one.example/" {
			t.Errorf("unexpected order: %+v", entries)
		}
		if !entries[0].AnalyzedAt.Equal(base.Add(2 * time.Hour)) {
			t.Errorf("unexpected analyzedAt %v", entries[0].AnalyzedAt)
		}
		if entries[0].RiskLevel != "medium" || entries[0].RiskScore != 2 {
			t.Errorf("unexpected risk columns %+v", entries[0])
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		entries, err := db.History(ctx, "https://a.example/", 1)
		if err != nil || len(entries) != 1 {
			t.Errorf("expected 1 entry, got %d (%v)", len(entries), err)
		}
	})

	t.Run("diff of the two latest", func(t *testing.T) {
		t.Parallel()

		diff, err := db.DiffLatest(ctx, "https://a.example/")
		if err != nil {
			t.Fatalf("DiffLatest failed: %v", err)
		}
		want := []model.Change{
			{Type: model.DiffHopCount, Old: "1", New: "2"},
			{Type: model.DiffFinalDestination, Old: "https://two.example/", New: "https://three.example/"},
		}
		if !diff.Changed || !slices.Equal(diff.Changes, want) {
			t.Errorf("unexpected diff %+v", diff)
		}
	})

	t.Run("diff needs two reports", func(t *testing.T) {
		t.Parallel()

		if _, err := db.DiffLatest(ctx, "https://other.example/"); !errors.Is(err, ErrNotEnoughHistory) {
			t.Errorf("expected ErrNotEnoughHistory, got %v", err)
		}
	})

	t.Run("list urls", func(t *testing.T) {
		t.Parallel()

		urls, err := db.ListURLs(ctx)
		if err != nil {
			t.Fatalf("ListURLs failed: %v", err)
		}
		if !slices.Equal(urls, []string{"https://a.example/", "https://other.example/"}) {
			t.Errorf("unexpected urls %v", urls)
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  time.Time
	}{
		{"2026-01-02 03:04:05", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2026-01-02T03:04:05Z", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"garbage", time.Time{}},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
