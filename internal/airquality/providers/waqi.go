package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

// DefaultWAQIBaseURL is the public World Air Quality Index API.
const DefaultWAQIBaseURL = "https://api.waqi.info"

// WAQIProvider implements airquality.Provider for the WAQI geo feed.
type WAQIProvider struct {
	name    string
	token   string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewWAQIProvider(client *http.Client, baseURL, token string) *WAQIProvider {
	if baseURL == "" {
		baseURL = DefaultWAQIBaseURL
	}
	return &WAQIProvider{
		name:    "waqi",
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		circuit: newCircuitBreaker("waqi"),
		now:     time.Now,
	}
}

func (p *WAQIProvider) Name() string {
	return p.name
}

// waqiFeed is the raw envelope. Data is decoded only after Status is known,
// because on failure WAQI sends a reason string where the payload would be.
type waqiFeed struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type waqiData struct {
	AQI  json.RawMessage `json:"aqi"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

// feedResult is the decoded variant: exactly one of ok/reason is meaningful.
type feedResult struct {
	ok       bool
	aqi      int
	cityName string
	reason   string
}

func (p *WAQIProvider) FetchByCoordinates(ctx context.Context, coords airquality.Coordinates) (airquality.Reading, error) {
	if p.token == "" {
		return airquality.Reading{}, airquality.Ef(airquality.KindNotConfigured, p.name, "api token is not configured")
	}

	u := fmt.Sprintf("%s/feed/geo:%s/?token=%s", p.baseURL, coords.String(), url.QueryEscape(p.token))
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return airquality.Reading{}, airquality.E(airquality.KindNetwork, p.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doRequest(ctx, p.client, p.circuit, p.name, req)
	if err != nil {
		return airquality.Reading{}, err
	}
	defer resp.Body.Close()

	var feed waqiFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		if ctx.Err() != nil {
			return airquality.Reading{}, classifyTransport(ctx, p.name, err)
		}
		return airquality.Reading{}, airquality.E(airquality.KindBadStatus, p.name, fmt.Errorf("decode feed: %w", err))
	}

	res, err := decodeFeed(feed)
	if err != nil {
		return airquality.Reading{}, airquality.E(airquality.KindBadStatus, p.name, err)
	}
	if !res.ok {
		return airquality.Reading{}, airquality.Ef(airquality.KindBadStatus, p.name, "provider status not ok: %s", res.reason)
	}

	label := res.cityName
	if label == "" {
		label = airquality.DefaultLocationLabel
	}

	reading, err := airquality.NewReading(res.aqi, label, &coords, p.now(), airquality.SourceGeoAPI)
	if err != nil {
		return airquality.Reading{}, airquality.E(airquality.KindBadStatus, p.name, err)
	}
	return reading, nil
}

func decodeFeed(feed waqiFeed) (feedResult, error) {
	if feed.Status != "ok" {
		reason := feed.Status
		var msg string
		if len(feed.Data) > 0 && json.Unmarshal(feed.Data, &msg) == nil && msg != "" {
			reason = msg
		}
		if reason == "" {
			reason = "missing status"
		}
		return feedResult{reason: reason}, nil
	}

	var data waqiData
	if err := json.Unmarshal(feed.Data, &data); err != nil {
		return feedResult{}, fmt.Errorf("decode feed data: %w", err)
	}

	aqi, err := parseAQI(data.AQI)
	if err != nil {
		return feedResult{}, err
	}

	return feedResult{
		ok:       true,
		aqi:      aqi,
		cityName: strings.TrimSpace(data.City.Name),
	}, nil
}

// parseAQI accepts a JSON number. WAQI sends "-" for stations without data.
func parseAQI(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("aqi missing")
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("aqi not numeric: %s", string(raw))
	}
	if math.IsNaN(n) || n < 0 {
		return 0, fmt.Errorf("aqi out of range: %v", n)
	}
	return int(math.Round(n)), nil
}
