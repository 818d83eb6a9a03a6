package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

var sf = airquality.Coordinates{Latitude: 37.7749, Longitude: -122.4194}

func newTestWAQI(t *testing.T, handler http.HandlerFunc) *WAQIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWAQIProvider(srv.Client(), srv.URL, "test-token")
}

func TestWAQIOK(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	urls := make(chan *url.URL, 1)
	p := newTestWAQI(t, func(w http.ResponseWriter, r *http.Request) {
		urls <- r.URL
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","data":{"aqi":42,"city":{"name":"San Francisco"}}}`))
	})
	p.now = func() time.Time { return fixed }

	r, err := p.FetchByCoordinates(context.Background(), sf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u := <-urls
	if u.Path != "/feed/geo:37.7749;-122.4194/" || u.Query().Get("token") != "test-token" {
		t.Fatalf("request url = %s", u)
	}
	if r.Index != 42 || r.LocationLabel != "San Francisco" || r.Source != airquality.SourceGeoAPI {
		t.Fatalf("reading = %+v", r)
	}
	if r.Coordinates == nil || *r.Coordinates != sf || !r.CapturedAt.Equal(fixed) {
		t.Fatalf("reading = %+v", r)
	}
}

func TestWAQIMissingCityName(t *testing.T) {
	p := newTestWAQI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","data":{"aqi":17.6,"city":{}}}`))
	})
	r, err := p.FetchByCoordinates(context.Background(), sf)
	if err != nil {
		t.Fatal(err)
	}
	if r.LocationLabel != airquality.DefaultLocationLabel || r.Index != 18 {
		t.Fatalf("reading = %+v", r)
	}
}

func TestWAQIBadStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"status error", 200, `{"status":"error","data":"Invalid key"}`},
		{"no data", 200, `{"status":"ok","data":{"aqi":"-","city":{"name":"x"}}}`},
		{"negative", 200, `{"status":"ok","data":{"aqi":-3}}`},
		{"missing aqi", 200, `{"status":"ok","data":{"city":{"name":"x"}}}`},
		{"missing status", 200, `{}`},
		{"not json", 200, `<html>`},
		{"http 500", 500, `oops`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestWAQI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := p.FetchByCoordinates(context.Background(), sf)
			if !errors.Is(err, airquality.ErrBadStatus) {
				t.Fatalf("expected bad_status, got %v", err)
			}
		})
	}
}

func TestWAQIStatusReasonIsKept(t *testing.T) {
	p := newTestWAQI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","data":"Invalid key"}`))
	})
	_, err := p.FetchByCoordinates(context.Background(), sf)
	if err == nil || !strings.Contains(err.Error(), "Invalid key") {
		t.Fatalf("error = %v", err)
	}
}

func TestWAQINoToken(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer srv.Close()

	p := NewWAQIProvider(srv.Client(), srv.URL, "")
	_, err := p.FetchByCoordinates(context.Background(), sf)
	if !errors.Is(err, airquality.ErrNotConfigured) {
		t.Fatalf("expected not_configured, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("no request may be made without a token")
	}
}

func TestWAQITimeout(t *testing.T) {
	p := newTestWAQI(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.FetchByCoordinates(ctx, sf)
	if !errors.Is(err, airquality.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestWAQINetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	p := NewWAQIProvider(&http.Client{Timeout: time.Second}, base, "t")
	_, err := p.FetchByCoordinates(context.Background(), sf)
	if !errors.Is(err, airquality.ErrNetwork) {
		t.Fatalf("expected network_error, got %v", err)
	}
}

func TestWAQICircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	p := newTestWAQI(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		if _, err := p.FetchByCoordinates(context.Background(), sf); !errors.Is(err, airquality.ErrBadStatus) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	_, err := p.FetchByCoordinates(context.Background(), sf)
	if !errors.Is(err, airquality.ErrNetwork) {
		t.Fatalf("expected network_error from open circuit, got %v", err)
	}
	if n := hits.Load(); n != 5 {
		t.Fatalf("open circuit still hit upstream: %d", n)
	}
}

func TestNilClientNotConfigured(t *testing.T) {
	p := NewWAQIProvider(nil, "", "t")
	_, err := p.FetchByCoordinates(context.Background(), sf)
	if !errors.Is(err, airquality.ErrNotConfigured) {
		t.Fatalf("expected not_configured, got %v", err)
	}
}
