package airquality

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Ef(KindBadStatus, "waqi", "status %d", 500))
	if !errors.Is(err, ErrBadStatus) {
		t.Fatal("expected errors.Is to match the sentinel")
	}
	if errors.Is(err, ErrNetwork) {
		t.Fatal("different kinds must not match")
	}
	if KindOf(err) != KindBadStatus {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("plain errors have no kind")
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil, "op", KindNetwork) != nil {
		t.Fatal("nil stays nil")
	}

	orig := E(KindNotPaired, "device", nil)
	if got := Classify(orig, "op", KindNetwork); got != orig {
		t.Fatal("classified errors pass through")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	if got := Classify(ctx.Err(), "op", KindNetwork); got.Kind != KindTimeout {
		t.Fatalf("deadline classified as %q", got.Kind)
	}

	if got := Classify(errors.New("x"), "op", KindConnectionFailed); got.Kind != KindConnectionFailed {
		t.Fatalf("fallback not applied: %q", got.Kind)
	}
}

func TestKindProperties(t *testing.T) {
	actionable := map[ErrorKind]bool{
		KindLocationUnsupported: true,
		KindPermissionDenied:    true,
		KindNotPaired:           true,
	}
	all := []ErrorKind{
		KindLocationUnsupported, KindPermissionDenied, KindLocationUnavailable,
		KindNetwork, KindBadStatus, KindTimeout, KindNotConfigured,
		KindNotPaired, KindConnectionFailed, KindWriteFailed,
	}
	for _, k := range all {
		if k.Actionable() != actionable[k] {
			t.Errorf("%s: Actionable() = %v", k, k.Actionable())
		}
		if k.Message() == "" {
			t.Errorf("%s: empty message", k)
		}
	}
	if !KindNetwork.Transient() || !KindTimeout.Transient() || KindBadStatus.Transient() {
		t.Fatal("only network and timeout are transient")
	}
}

func TestNewReadingRejectsNegativeIndex(t *testing.T) {
	if _, err := NewReading(-1, "x", nil, time.Now(), SourceGeoAPI); err == nil {
		t.Fatal("expected error for negative index")
	}
}

func TestNewReadingCopiesCoordinates(t *testing.T) {
	c := &Coordinates{Latitude: 1, Longitude: 2}
	loc := time.FixedZone("X", 3600)
	r, err := NewReading(0, "x", c, time.Date(2024, 1, 1, 12, 0, 0, 0, loc), SourceGeoAPI)
	if err != nil {
		t.Fatal(err)
	}
	c.Latitude = 50
	if r.Coordinates.Latitude != 1 {
		t.Fatal("reading aliases caller coordinates")
	}
	if r.CapturedAt.Location() != time.UTC || r.CapturedAt.Hour() != 11 {
		t.Fatalf("captured at not normalized to UTC: %v", r.CapturedAt)
	}
}

func TestCoordinatesString(t *testing.T) {
	c := Coordinates{Latitude: 37.7749, Longitude: -122.4194}
	if got := c.String(); got != "37.7749;-122.4194" {
		t.Fatalf("String() = %q", got)
	}
}
