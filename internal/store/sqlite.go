package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

//go:embed sql/queries/upsert-reading.sql
var upsertReadingSQL string

//go:embed sql/queries/get-readings.sql
var getReadingsSQL string

// capturedAtLayout is fixed-width so lexical order equals time order.
const capturedAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteHistory is the sqlite history backend.
type SQLiteHistory struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database at path and migrates it.
// Parent directories are created automatically.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteHistory, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// sqlite serializes writers; one connection also keeps :memory: coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	h, err := NewSQLiteHistory(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

// NewSQLiteHistory wraps an open database and applies pending migrations.
func NewSQLiteHistory(db *sql.DB, logger *slog.Logger) (*SQLiteHistory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := migrate(db, logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteHistory{db: db, logger: logger}, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}

	if !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// Append upserts r under (id, r.CapturedAt).
func (h *SQLiteHistory) Append(ctx context.Context, id airquality.Identity, r airquality.Reading) error {
	var lat, lon any
	if r.Coordinates != nil {
		lat = r.Coordinates.Latitude
		lon = r.Coordinates.Longitude
	}

	_, err := h.db.ExecContext(ctx, upsertReadingSQL,
		string(id),
		r.CapturedAt.UTC().Format(capturedAtLayout),
		r.Index,
		r.LocationLabel,
		lat,
		lon,
		string(r.Source),
	)
	if err != nil {
		return fmt.Errorf("upsert reading: %w", err)
	}
	return nil
}

// Query returns the identity's readings, newest first.
func (h *SQLiteHistory) Query(ctx context.Context, id airquality.Identity) ([]airquality.Reading, error) {
	rows, err := h.db.QueryContext(ctx, getReadingsSQL, string(id))
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			h.logger.Error("close readings rows", "error", err)
		}
	}()

	out := []airquality.Reading{}
	for rows.Next() {
		var (
			r        airquality.Reading
			ts       string
			source   string
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&ts, &r.Index, &r.LocationLabel, &lat, &lon, &source); err != nil {
			return nil, err
		}
		t, err := time.Parse(capturedAtLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse captured_at %q: %w", ts, err)
		}
		r.CapturedAt = t.UTC()
		r.Source = airquality.Source(source)
		if lat.Valid && lon.Valid {
			r.Coordinates = &airquality.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping checks database connectivity.
func (h *SQLiteHistory) Ping(ctx context.Context) error {
	var ok int
	if err := h.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("database connection failed")
	}
	return nil
}

func (h *SQLiteHistory) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}
