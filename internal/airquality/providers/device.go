package providers

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

// Simulated sensor ranges, inclusive.
const (
	SimIndexMin   = 10
	SimIndexMax   = 70
	SimBatteryMin = 70
	SimBatteryMax = 100
)

// SimulatedDevice stands in for a paired sensor until a radio transport that
// reads the sensor's characteristics replaces it.
type SimulatedDevice struct {
	latency time.Duration
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedDevice returns a simulator that waits latency before answering.
// A nil rng uses a randomly seeded source.
func NewSimulatedDevice(latency time.Duration, rng *rand.Rand) *SimulatedDevice {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SimulatedDevice{
		latency: latency,
		now:     time.Now,
		rng:     rng,
	}
}

func (d *SimulatedDevice) FetchFromDevice(ctx context.Context, ref airquality.DeviceRef) (airquality.DeviceReading, error) {
	if ref.IsZero() {
		return airquality.DeviceReading{}, airquality.Ef(airquality.KindNotPaired, "device", "no device reference")
	}

	if d.latency > 0 {
		timer := time.NewTimer(d.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return airquality.DeviceReading{}, airquality.E(airquality.KindConnectionFailed, "device", ctx.Err())
		case <-timer.C:
		}
	}

	d.mu.Lock()
	index := SimIndexMin + d.rng.IntN(SimIndexMax-SimIndexMin+1)
	battery := SimBatteryMin + d.rng.IntN(SimBatteryMax-SimBatteryMin+1)
	d.mu.Unlock()

	label := ref.Name
	if label == "" {
		label = airquality.DefaultDeviceLabel
	}

	reading, err := airquality.NewReading(index, label, nil, d.now(), airquality.SourceDevice)
	if err != nil {
		return airquality.DeviceReading{}, airquality.E(airquality.KindConnectionFailed, "device", err)
	}
	return airquality.DeviceReading{Reading: reading, BatteryLevel: battery}, nil
}
