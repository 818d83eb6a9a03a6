//go:build linux

package device

import (
	"context"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

// BLEPairer scans for the first advertising AirVita sensor through BlueZ.
type BLEPairer struct {
	opts   Options
	logger *slog.Logger

	// one scan at a time per adapter
	mu sync.Mutex
}

func NewBLEPairer(opts Options, logger *slog.Logger) *BLEPairer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BLEPairer{opts: opts.withDefaults(), logger: logger}
}

func (p *BLEPairer) Pair(ctx context.Context) (airquality.DeviceRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	adapter := bluetooth.NewAdapter(p.opts.Adapter)
	if err := adapter.Enable(); err != nil {
		return airquality.DeviceRef{}, airquality.Ef(airquality.KindConnectionFailed, "ble",
			"bluetooth is not supported on adapter %s: %v", p.opts.Adapter, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.ScanTimeout)
	defer cancel()

	found := make(chan airquality.DeviceRef, 1)
	go func() {
		<-ctx.Done()
		_ = adapter.StopScan()
	}()

	p.logger.Info("ble: scanning started", "adapter", p.opts.Adapter, "name_prefix", p.opts.NamePrefix)

	service := bluetooth.New16BitUUID(EnvironmentalSensingUUID)
	// adapter.Scan blocks until StopScan() or error.
	err := adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		ref, ok := match(advertisement{
			Address:      r.Address.String(),
			LocalName:    r.LocalName(),
			HasESService: r.HasServiceUUID(service),
		}, p.opts.NamePrefix)
		if !ok {
			return
		}
		select {
		case found <- ref:
			_ = a.StopScan()
		default:
		}
	})

	select {
	case ref := <-found:
		p.logger.Info("ble: device found", "device_id", ref.ID, "device_name", ref.Name)
		return ref, nil
	default:
	}

	if err != nil && ctx.Err() == nil {
		return airquality.DeviceRef{}, airquality.E(airquality.KindConnectionFailed, "ble", err)
	}
	return airquality.DeviceRef{}, airquality.Ef(airquality.KindConnectionFailed, "ble",
		"no device found within %s", p.opts.ScanTimeout)
}
