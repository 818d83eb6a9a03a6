package location

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/patrickmn/go-cache"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

type cityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// GeoIP resolves a caller's IP through a MaxMind-format city database.
type GeoIP struct {
	reader cityLookup
	closer func() error
	cache  *cache.Cache
}

// OpenGeoIP opens the city database at path. An empty path yields a GeoIP
// whose resolvers always report location_unsupported.
func OpenGeoIP(path string) (*GeoIP, error) {
	g := &GeoIP{cache: cache.New(30*time.Minute, time.Hour)}
	if path == "" {
		return g, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip db %s: %w", path, err)
	}
	g.reader = reader
	g.closer = reader.Close
	return g, nil
}

// Enabled reports whether a database is loaded.
func (g *GeoIP) Enabled() bool {
	return g != nil && g.reader != nil
}

// ForIP returns a resolver for one caller address.
func (g *GeoIP) ForIP(ip string) airquality.Resolver {
	return airquality.ResolverFunc(func(ctx context.Context) (airquality.Coordinates, error) {
		if !g.Enabled() {
			return airquality.Coordinates{}, airquality.Ef(airquality.KindLocationUnsupported, "geoip", "no geoip database configured")
		}
		if err := ctx.Err(); err != nil {
			return airquality.Coordinates{}, airquality.E(airquality.KindLocationUnavailable, "geoip", err)
		}
		return g.lookup(ip)
	})
}

func (g *GeoIP) lookup(ip string) (airquality.Coordinates, error) {
	if cached, found := g.cache.Get(ip); found {
		return cached.(airquality.Coordinates), nil
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return airquality.Coordinates{}, airquality.Ef(airquality.KindLocationUnavailable, "geoip", "invalid IP address: %s", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return airquality.Coordinates{}, airquality.Ef(airquality.KindLocationUnavailable, "geoip", "cannot geolocate private/local IP: %s", ip)
	}

	record, err := g.reader.City(parsed)
	if err != nil {
		return airquality.Coordinates{}, airquality.E(airquality.KindLocationUnavailable, "geoip", err)
	}
	if record.Location.Latitude == 0 && record.Location.Longitude == 0 {
		return airquality.Coordinates{}, airquality.Ef(airquality.KindLocationUnavailable, "geoip", "no location for %s", ip)
	}

	coords := airquality.Coordinates{
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}
	g.cache.Set(ip, coords, cache.DefaultExpiration)
	return coords, nil
}

func (g *GeoIP) Close() error {
	if g == nil || g.closer == nil {
		return nil
	}
	return g.closer()
}
