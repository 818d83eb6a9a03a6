package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func mkReading(t *testing.T, index int, at time.Time, coords *airquality.Coordinates) airquality.Reading {
	t.Helper()
	source := airquality.SourceGeoAPI
	if coords == nil {
		source = airquality.SourceDevice
	}
	r, err := airquality.NewReading(index, "Test", coords, at, source)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// backends runs fn against every history backend.
func backends(t *testing.T, fn func(t *testing.T, h HistoryBackend)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryHistory(0))
	})
	t.Run("sqlite", func(t *testing.T) {
		h, err := OpenSQLite(":memory:", nil)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = h.Close() })
		fn(t, h)
	})
}

func TestQueryHistoryEmpty(t *testing.T) {
	backends(t, func(t *testing.T, h HistoryBackend) {
		s := NewReadings(h)
		out, err := s.QueryHistory(context.Background(), "nobody")
		if err != nil {
			t.Fatal(err)
		}
		if out == nil || len(out) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", out)
		}
	})
}

func TestQueryHistoryNewestFirst(t *testing.T) {
	backends(t, func(t *testing.T, h HistoryBackend) {
		s := NewReadings(h)
		ctx := context.Background()

		// Appended out of order on purpose.
		for _, r := range []airquality.Reading{
			mkReading(t, 20, base.Add(time.Minute), nil),
			mkReading(t, 10, base, &airquality.Coordinates{Latitude: 1.5, Longitude: -2.25}),
			mkReading(t, 30, base.Add(2*time.Minute), nil),
		} {
			if err := s.AppendHistory(ctx, "u1", r); err != nil {
				t.Fatal(err)
			}
		}

		out, err := s.QueryHistory(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != 3 {
			t.Fatalf("expected 3 readings, got %d", len(out))
		}
		for i, want := range []int{30, 20, 10} {
			if out[i].Index != want {
				t.Fatalf("out[%d].Index = %d, want %d", i, out[i].Index, want)
			}
		}
		last := out[2]
		if last.Coordinates == nil || last.Coordinates.Latitude != 1.5 || last.Coordinates.Longitude != -2.25 {
			t.Fatalf("coordinates lost: %+v", last.Coordinates)
		}
		if !last.CapturedAt.Equal(base) || last.Source != airquality.SourceGeoAPI {
			t.Fatalf("reading = %+v", last)
		}
		if out[0].Coordinates != nil || out[0].Source != airquality.SourceDevice {
			t.Fatalf("device reading = %+v", out[0])
		}
	})
}

func TestAppendHistoryUpserts(t *testing.T) {
	backends(t, func(t *testing.T, h HistoryBackend) {
		s := NewReadings(h)
		ctx := context.Background()

		_ = s.AppendHistory(ctx, "u1", mkReading(t, 10, base, nil))
		_ = s.AppendHistory(ctx, "u1", mkReading(t, 99, base, nil))

		out, _ := s.QueryHistory(ctx, "u1")
		if len(out) != 1 || out[0].Index != 99 {
			t.Fatalf("expected single upserted reading, got %+v", out)
		}
	})
}

func TestHistoryIsPerIdentity(t *testing.T) {
	backends(t, func(t *testing.T, h HistoryBackend) {
		s := NewReadings(h)
		ctx := context.Background()

		_ = s.AppendHistory(ctx, "a", mkReading(t, 1, base, nil))
		_ = s.AppendHistory(ctx, "b", mkReading(t, 2, base, nil))

		out, _ := s.QueryHistory(ctx, "a")
		if len(out) != 1 || out[0].Index != 1 {
			t.Fatalf("identity a history = %+v", out)
		}
	})
}

func TestSubSecondOrdering(t *testing.T) {
	backends(t, func(t *testing.T, h HistoryBackend) {
		s := NewReadings(h)
		ctx := context.Background()

		_ = s.AppendHistory(ctx, "u1", mkReading(t, 1, base.Add(900*time.Millisecond), nil))
		_ = s.AppendHistory(ctx, "u1", mkReading(t, 2, base.Add(100*time.Millisecond), nil))
		_ = s.AppendHistory(ctx, "u1", mkReading(t, 3, base.Add(time.Second), nil))

		out, _ := s.QueryHistory(ctx, "u1")
		if len(out) != 3 || out[0].Index != 3 || out[1].Index != 1 || out[2].Index != 2 {
			t.Fatalf("order = %+v", out)
		}
	})
}

func TestRecordCurrentLastWriteWins(t *testing.T) {
	s := NewReadings(nil)
	if _, ok := s.Current("u1"); ok {
		t.Fatal("unexpected current reading")
	}
	s.RecordCurrent("u1", mkReading(t, 1, base, nil))
	s.RecordCurrent("u1", mkReading(t, 2, base.Add(-time.Hour), nil))

	r, ok := s.Current("u1")
	if !ok || r.Index != 2 {
		t.Fatalf("current = %+v, %v", r, ok)
	}
}

func TestMemoryHistoryCap(t *testing.T) {
	s := NewReadings(NewMemoryHistory(2))
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_ = s.AppendHistory(ctx, "u1", mkReading(t, i, base.Add(time.Duration(i)*time.Minute), nil))
	}
	out, _ := s.QueryHistory(ctx, "u1")
	if len(out) != 2 || out[0].Index != 3 || out[1].Index != 2 {
		t.Fatalf("capped history = %+v", out)
	}
}

type failingBackend struct{ MemoryHistory }

func (*failingBackend) Append(context.Context, airquality.Identity, airquality.Reading) error {
	return errors.New("disk full")
}

func TestAppendFailureIsWriteFailed(t *testing.T) {
	s := NewReadings(&failingBackend{})
	err := s.AppendHistory(context.Background(), "u1", mkReading(t, 1, base, nil))
	if !errors.Is(err, airquality.ErrWriteFailed) {
		t.Fatalf("expected write_failed, got %v", err)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "airvita.db")

	h, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Append(context.Background(), "u1", mkReading(t, 77, base, nil)); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	// Migrations must be idempotent on reopen.
	h, err = OpenSQLite(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if err := h.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	out, err := h.Query(context.Background(), "u1")
	if err != nil || len(out) != 1 || out[0].Index != 77 {
		t.Fatalf("after reopen: %+v, %v", out, err)
	}
}

func TestSQLiteRejectsNegativeIndex(t *testing.T) {
	h, err := OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	r := mkReading(t, 1, base, nil)
	r.Index = -1
	if err := h.Append(context.Background(), "u1", r); err == nil {
		t.Fatal("expected constraint violation")
	}
}

func TestReadingsPing(t *testing.T) {
	if err := NewReadings(nil).Ping(context.Background()); err != nil {
		t.Fatalf("memory ping: %v", err)
	}

	h, err := OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	s := NewReadings(h)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("sqlite ping: %v", err)
	}
	_ = s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail on a closed database")
	}
}

func TestSQLiteKeepsInjectedLogger(t *testing.T) {
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := OpenSQLite(":memory:", lg)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if h.logger != lg {
		t.Fatal("sqlite history does not use the injected logger")
	}

	d, err := OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.logger == nil {
		t.Fatal("nil logger not defaulted")
	}
}
