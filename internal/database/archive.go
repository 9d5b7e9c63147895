package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/redirscan/internal/history"
	"github.com/nao1215/redirscan/internal/model"
)

// FileName is the archive file name inside the data directory.
const FileName = "redirscan.db"

var (
	// ErrReportNotFound is returned when no archived report matches.
	ErrReportNotFound = errors.New("report not found")

	// ErrNotEnoughHistory is returned by DiffLatest with fewer than two reports.
	ErrNotEnoughHistory = errors.New("at least two archived reports are required")
)

// ArchiveDB stores analysis reports in a SQLite file.
type ArchiveDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ArchiveDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive in dbDir.
func Open(dbDir string, opts Options) (*ArchiveDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// Archived reports carry captured headers; keep the file owner-only.
		f, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600) //nolint:gosec // path is built from the data directory
		if err != nil {
			return nil, fmt.Errorf("failed to create database file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to create database file: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &ArchiveDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return adb, nil
}

// Path returns the database file path.
func (a *ArchiveDB) Path() string {
	return a.dbPath
}

// Close closes the database connection.
func (a *ArchiveDB) Close() error {
	return a.db.Close()
}

func (a *ArchiveDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		url_key TEXT NOT NULL,
		final_url TEXT NOT NULL,
		final_status INTEGER NOT NULL,
		hop_count INTEGER NOT NULL,
		risk_score INTEGER NOT NULL,
		risk_level TEXT NOT NULL,
		analyzed_at TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_url_key ON reports(url_key);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON reports(timestamp);
	`
	_, err := a.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport archives report and returns its id.
func (a *ArchiveDB) SaveReport(ctx context.Context, report *model.Report) (int64, error) {
	if report == nil || report.Chain == nil {
		return 0, errors.New("cannot archive a report without a chain")
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	var analyzedAt string
	if !report.AnalyzedAt.IsZero() {
		analyzedAt = report.AnalyzedAt.UTC().Format(time.RFC3339Nano)
	}

	query := `
	INSERT INTO reports (url, url_key, final_url, final_status, hop_count, risk_score, risk_level, analyzed_at, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := a.db.ExecContext(ctx, query,
		report.Chain.InitialURL,
		history.Key(report.Chain.InitialURL),
		report.Chain.Final.URL,
		report.Chain.Final.StatusCode,
		report.Chain.HopCount,
		report.RiskScore,
		report.RiskLevel.String(),
		analyzedAt,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}
	return result.LastInsertId()
}

// ReportMetadata summarizes one archived report.
type ReportMetadata struct {
	ID          int64
	URL         string
	FinalURL    string
	FinalStatus int
	HopCount    int
	RiskScore   int
	RiskLevel   string

	// AnalyzedAt is the analysis start time, or the insert time when unknown.
	AnalyzedAt time.Time
}

// History returns metadata of archived reports for rawURL, newest first.
// limit <= 0 returns all of them.
func (a *ArchiveDB) History(ctx context.Context, rawURL string, limit int) ([]ReportMetadata, error) {
	query := `
	SELECT id, url, final_url, final_status, hop_count, risk_score, risk_level, analyzed_at, timestamp
	FROM reports
	WHERE url_key = ?
	ORDER BY id DESC
	`
	args := []any{history.Key(rawURL)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	defer rows.Close()

	var results []ReportMetadata
	for rows.Next() {
		var (
			meta       ReportMetadata
			analyzedAt sql.NullString
			timestamp  string
		)
		if err := rows.Scan(&meta.ID, &meta.URL, &meta.FinalURL, &meta.FinalStatus,
			&meta.HopCount, &meta.RiskScore, &meta.RiskLevel, &analyzedAt, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.AnalyzedAt = parseTimestamp(timestamp)
		if analyzedAt.Valid && analyzedAt.String != "" {
			meta.AnalyzedAt = parseTimestamp(analyzedAt.String)
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// ReportByID returns the archived report with id.
func (a *ArchiveDB) ReportByID(ctx context.Context, id int64) (*model.Report, error) {
	var reportJSON string
	err := a.db.QueryRowContext(ctx, `SELECT report_json FROM reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport(reportJSON)
}

// LatestReports returns up to n archived reports for rawURL, newest first.
func (a *ArchiveDB) LatestReports(ctx context.Context, rawURL string, n int) ([]*model.Report, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT report_json FROM reports WHERE url_key = ? ORDER BY id DESC LIMIT ?`,
		history.Key(rawURL), n)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue // skip malformed rows
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// DiffLatest compares the two most recent archived reports of rawURL.
func (a *ArchiveDB) DiffLatest(ctx context.Context, rawURL string) (*model.HistoryDiff, error) {
	reports, err := a.LatestReports(ctx, rawURL, 2)
	if err != nil {
		return nil, err
	}
	if len(reports) < 2 {
		return nil, fmt.Errorf("%w: %d archived for %s", ErrNotEnoughHistory, len(reports), rawURL)
	}
	return history.Diff(reports[1].Chain, reports[0].Chain), nil
}

// ListURLs returns every archived initial URL, sorted.
func (a *ArchiveDB) ListURLs(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT DISTINCT url FROM reports ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan URL: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func decodeReport(reportJSON string) (*model.Report, error) {
	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if report.Chain == nil {
		return nil, errors.New("archived report has no chain")
	}
	return &report, nil
}

// timestampFormats contains the timestamp formats SQLite and the archive write.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
