package airquality

import (
	"fmt"
	"strconv"
	"time"
)

// Source identifies where a reading was obtained.
type Source string

const (
	SourceGeoAPI Source = "geo_api"
	SourceDevice Source = "device"
)

// DefaultLocationLabel is used when the provider does not name the place.
const DefaultLocationLabel = "Your Location"

// DefaultDeviceLabel is used for readings from an unnamed device.
const DefaultDeviceLabel = "Device Reading"

// Identity is the user or session key under which history is grouped.
type Identity string

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// String renders the pair the way the geo feed expects it: "lat;lon".
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + ";" + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// Reading is one normalized air-quality observation.
// It is a value type; a new acquisition produces a new Reading.
type Reading struct {
	Index         int          `json:"index"`
	LocationLabel string       `json:"locationLabel"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
	CapturedAt    time.Time    `json:"capturedAt"` // always UTC
	Source        Source       `json:"source"`
}

// NewReading validates the index and stamps the capture time in UTC.
func NewReading(index int, label string, coords *Coordinates, capturedAt time.Time, source Source) (Reading, error) {
	if index < 0 {
		return Reading{}, fmt.Errorf("aqi index must be non-negative, got %d", index)
	}
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	var c *Coordinates
	if coords != nil {
		cp := *coords
		c = &cp
	}
	return Reading{
		Index:         index,
		LocationLabel: label,
		Coordinates:   c,
		CapturedAt:    capturedAt.UTC(),
		Source:        source,
	}, nil
}

// DeviceRef is an opaque reference to a paired sensor. Name is display only.
type DeviceRef struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

// IsZero reports whether no device is referenced.
func (d DeviceRef) IsZero() bool {
	return d.ID == ""
}

// DeviceReading is a reading plus the ancillary telemetry a sensor reports.
type DeviceReading struct {
	Reading      Reading `json:"reading"`
	BatteryLevel int     `json:"batteryLevel"` // 0..100
}
