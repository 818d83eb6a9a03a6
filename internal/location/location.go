// Package location provides the request-scoped positioning capabilities a
// server can offer: client-supplied coordinates, a client-reported failure,
// IP geolocation and place-name geocoding.
package location

import (
	"context"
	"fmt"
	"strings"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

// Fixed resolves to coordinates the caller already determined.
func Fixed(c airquality.Coordinates) airquality.Resolver {
	return airquality.ResolverFunc(func(ctx context.Context) (airquality.Coordinates, error) {
		if err := ctx.Err(); err != nil {
			return airquality.Coordinates{}, airquality.E(airquality.KindLocationUnavailable, "locate", err)
		}
		return c, nil
	})
}

// Reported statuses a client may send when its own positioning failed.
const (
	ReportedDenied      = "denied"
	ReportedUnsupported = "unsupported"
	ReportedUnavailable = "unavailable"
)

// Reported turns a client-side positioning failure into the matching
// location error. A denial is never replaced by another source.
func Reported(status string) (airquality.Resolver, error) {
	var kind airquality.ErrorKind
	switch strings.ToLower(strings.TrimSpace(status)) {
	case ReportedDenied:
		kind = airquality.KindPermissionDenied
	case ReportedUnsupported:
		kind = airquality.KindLocationUnsupported
	case ReportedUnavailable:
		kind = airquality.KindLocationUnavailable
	default:
		return nil, fmt.Errorf("unknown geo_error %q", status)
	}
	return airquality.ResolverFunc(func(context.Context) (airquality.Coordinates, error) {
		return airquality.Coordinates{}, airquality.Ef(kind, "locate", "client reported %s", status)
	}), nil
}

// Unsupported is the resolver used when no positioning capability exists.
func Unsupported(reason string) airquality.Resolver {
	return airquality.ResolverFunc(func(context.Context) (airquality.Coordinates, error) {
		return airquality.Coordinates{}, airquality.Ef(airquality.KindLocationUnsupported, "locate", "%s", reason)
	})
}
