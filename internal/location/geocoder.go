package location

import (
	"context"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

var setAPIKey sync.Once

type geocodeFunc func(geocoder.Address) (geocoder.Location, error)

// Geocoder resolves a place name through the Google geocoding API.
type Geocoder struct {
	enabled bool
	geocode geocodeFunc
}

// NewGeocoder configures the geocoding client. An empty key yields a
// Geocoder whose resolvers always report location_unsupported. The client
// library keeps its key globally, so only the first non-empty key is used.
func NewGeocoder(apiKey string) *Geocoder {
	if apiKey == "" {
		return &Geocoder{}
	}
	setAPIKey.Do(func() { geocoder.ApiKey = apiKey })
	return &Geocoder{enabled: true, geocode: geocoder.Geocoding}
}

// Enabled reports whether an API key is configured.
func (g *Geocoder) Enabled() bool {
	return g != nil && g.enabled
}

// ForPlace returns a resolver for a city and optional country.
func (g *Geocoder) ForPlace(city, country string) airquality.Resolver {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)

	return airquality.ResolverFunc(func(ctx context.Context) (airquality.Coordinates, error) {
		if !g.Enabled() {
			return airquality.Coordinates{}, airquality.Ef(airquality.KindLocationUnsupported, "geocode", "no geocoder api key configured")
		}
		if city == "" {
			return airquality.Coordinates{}, airquality.Ef(airquality.KindLocationUnavailable, "geocode", "city is required")
		}

		type result struct {
			loc geocoder.Location
			err error
		}
		// The library call has no context; buffered so it never leaks blocked.
		ch := make(chan result, 1)
		go func() {
			loc, err := g.geocode(geocoder.Address{City: city, Country: country})
			ch <- result{loc: loc, err: err}
		}()

		select {
		case <-ctx.Done():
			return airquality.Coordinates{}, airquality.E(airquality.KindLocationUnavailable, "geocode", ctx.Err())
		case res := <-ch:
			if res.err != nil {
				return airquality.Coordinates{}, airquality.E(airquality.KindLocationUnavailable, "geocode", res.err)
			}
			return airquality.Coordinates{Latitude: res.loc.Latitude, Longitude: res.loc.Longitude}, nil
		}
	})
}
