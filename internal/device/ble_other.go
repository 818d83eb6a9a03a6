//go:build !linux

package device

import (
	"context"
	"log/slog"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

// BLEPairer reports Bluetooth as unavailable outside Linux.
type BLEPairer struct {
	opts Options
}

func NewBLEPairer(opts Options, _ *slog.Logger) *BLEPairer {
	return &BLEPairer{opts: opts.withDefaults()}
}

func (p *BLEPairer) Pair(context.Context) (airquality.DeviceRef, error) {
	return airquality.DeviceRef{}, airquality.Ef(airquality.KindConnectionFailed, "ble",
		"bluetooth is not supported on this platform")
}
