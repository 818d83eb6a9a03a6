package httpapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/madankumar045/airvitaweb/internal/airquality"
	"github.com/madankumar045/airvitaweb/internal/location"
	"github.com/madankumar045/airvitaweb/internal/metrics"
)

var validate = validator.New()

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the routes need besides the service. Any of
// them may be nil.
type Deps struct {
	GeoIP    *location.GeoIP
	Geocoder *location.Geocoder
	Metrics  *metrics.Metrics
	History  Pinger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *airquality.Service, deps Deps) {
	if deps.Metrics != nil {
		app.Use(metricsMiddleware(deps.Metrics))
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		if deps.History != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := deps.History.Ping(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status":  "degraded",
					"service": "airvita",
					"history": err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "airvita",
		})
	})

	v1 := app.Group("/api/v1")

	// Stateless.
	v1.Get("/air-quality/legend", func(c *fiber.Ctx) error {
		return c.JSON(airquality.Legend())
	})

	v1.Get("/air-quality/categorize", func(c *fiber.Ctx) error {
		var q categorizeQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{
			"index":    q.AQI,
			"category": airquality.Categorize(q.AQI),
		})
	})

	aq := v1.Group("/air-quality", identityMiddleware())

	aq.Post("/refresh", func(c *fiber.Ctx) error {
		var q refreshQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		resolver, err := q.resolver(c, deps)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		state := service.Acquire(c.UserContext(), identity(c), resolver)
		return c.JSON(newStateView(state))
	})

	aq.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(newStateView(service.State(identity(c))))
	})

	aq.Post("/abandon", func(c *fiber.Ctx) error {
		return c.JSON(newStateView(service.Abandon(identity(c))))
	})

	aq.Get("/current", func(c *fiber.Ctx) error {
		r, ok := service.Current(identity(c))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no air quality reading yet")
		}
		return c.JSON(newReadingView(r))
	})

	aq.Get("/history", func(c *fiber.Ctx) error {
		var q historyQuery
		q.Format = strings.ToLower(c.Query("format", "json"))
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		readings, err := service.History(c.UserContext(), identity(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load air quality history")
		}

		if q.Format == "csv" {
			data, err := historyCSV(readings)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to export air quality history")
			}
			c.Attachment("air-quality-history.csv")
			c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
			return c.Send(data)
		}

		out := make([]readingView, 0, len(readings))
		for _, r := range readings {
			out = append(out, newReadingView(r))
		}
		return c.JSON(out)
	})

	dev := v1.Group("/device", identityMiddleware())

	dev.Get("/", func(c *fiber.Ctx) error {
		ref, ok, err := service.PairedDevice()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read paired device")
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no device paired")
		}
		return c.JSON(ref)
	})

	dev.Post("/pair", func(c *fiber.Ctx) error {
		if len(bytes.TrimSpace(c.Body())) == 0 {
			ref, err := service.Scan(c.UserContext())
			if err != nil {
				return deviceError(err)
			}
			return c.Status(fiber.StatusCreated).JSON(ref)
		}

		var req pairRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ref := airquality.DeviceRef{ID: strings.TrimSpace(req.ID), Name: strings.TrimSpace(req.Name)}
		if err := service.Pair(ref); err != nil {
			return deviceError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(ref)
	})

	dev.Delete("/", func(c *fiber.Ctx) error {
		if err := service.Unpair(); err != nil {
			return deviceError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	dev.Post("/refresh", func(c *fiber.Ctx) error {
		res := service.AcquireFromDevice(c.UserContext(), identity(c))
		return c.JSON(deviceView{
			State:        newStateView(res.State),
			Device:       res.Device,
			BatteryLevel: res.BatteryLevel,
		})
	})
}

func deviceError(err error) error {
	msg := err.Error()
	switch airquality.KindOf(err) {
	case airquality.KindNotPaired:
		return fiber.NewError(fiber.StatusBadRequest, msg)
	case airquality.KindConnectionFailed:
		return fiber.NewError(fiber.StatusServiceUnavailable, msg)
	}
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}

// stateView is a FetchState plus the category of its data, if any.
type stateView struct {
	airquality.FetchState
	Category *airquality.Category `json:"category,omitempty"`
}

func newStateView(st airquality.FetchState) stateView {
	v := stateView{FetchState: st}
	if st.Data != nil {
		cat := airquality.Categorize(st.Data.Index)
		v.Category = &cat
	}
	return v
}

type readingView struct {
	airquality.Reading
	Category airquality.Category `json:"category"`
}

func newReadingView(r airquality.Reading) readingView {
	return readingView{Reading: r, Category: airquality.Categorize(r.Index)}
}

type deviceView struct {
	State        stateView             `json:"state"`
	Device       *airquality.DeviceRef `json:"device,omitempty"`
	BatteryLevel *int                  `json:"batteryLevel,omitempty"`
}

func historyCSV(readings []airquality.Reading) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"captured_at", "aqi", "category", "location", "latitude", "longitude", "source"})
	for _, r := range readings {
		var lat, lon string
		if r.Coordinates != nil {
			lat = strconv.FormatFloat(r.Coordinates.Latitude, 'f', -1, 64)
			lon = strconv.FormatFloat(r.Coordinates.Longitude, 'f', -1, 64)
		}
		_ = w.Write([]string{
			r.CapturedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			strconv.Itoa(r.Index),
			airquality.Categorize(r.Index).Label,
			r.LocationLabel,
			lat,
			lon,
			string(r.Source),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// refreshQuery holds the positioning inputs of a geo refresh. At most one
// resolver is picked: coordinates, then a reported failure, then a place
// name, then the caller's IP.
type refreshQuery struct {
	Lat      *float64 `validate:"omitempty,gte=-90,lte=90"`
	Lon      *float64 `validate:"omitempty,gte=-180,lte=180"`
	GeoError string   `validate:"omitempty,oneof=denied unsupported unavailable"`
	City     string   `validate:"omitempty,max=100"`
	Country  string   `validate:"omitempty,max=100"`
}

func (q *refreshQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.Lat, err = optionalFloat(c, "lat"); err != nil {
		return err
	}
	if q.Lon, err = optionalFloat(c, "lon"); err != nil {
		return err
	}
	if (q.Lat == nil) != (q.Lon == nil) {
		return errors.New("lat and lon must be given together")
	}
	q.GeoError = strings.ToLower(strings.TrimSpace(c.Query("geo_error")))
	q.City = strings.TrimSpace(c.Query("city"))
	q.Country = strings.TrimSpace(c.Query("country"))

	return validate.Struct(q)
}

func (q *refreshQuery) resolver(c *fiber.Ctx, deps Deps) (airquality.Resolver, error) {
	switch {
	case q.Lat != nil:
		return location.Fixed(airquality.Coordinates{Latitude: *q.Lat, Longitude: *q.Lon}), nil
	case q.GeoError != "":
		return location.Reported(q.GeoError)
	case q.City != "":
		if deps.Geocoder == nil {
			return location.Unsupported("place lookup is not available"), nil
		}
		return deps.Geocoder.ForPlace(q.City, q.Country), nil
	case deps.GeoIP != nil:
		return deps.GeoIP.ForIP(c.IP()), nil
	}
	return location.Unsupported("no positioning capability"), nil
}

func optionalFloat(c *fiber.Ctx, key string) (*float64, error) {
	s := strings.TrimSpace(c.Query(key))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("invalid " + key + ": must be a number")
	}
	return &v, nil
}

type categorizeQuery struct {
	AQI int `validate:"gte=0"`
}

func (q *categorizeQuery) bind(c *fiber.Ctx) error {
	s := strings.TrimSpace(c.Query("aqi"))
	if s == "" {
		return errors.New("aqi query parameter is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.New("invalid aqi: must be an integer")
	}
	q.AQI = n
	return validate.Struct(q)
}

type historyQuery struct {
	Format string `validate:"oneof=json csv"`
}

type pairRequest struct {
	ID   string `json:"id" validate:"required,max=128"`
	Name string `json:"name" validate:"max=64"`
}
