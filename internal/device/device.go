// Package device discovers AirVita sensors over Bluetooth LE.
package device

import (
	"time"

	"github.com/madankumar045/airvitaweb/internal/airquality"
	"github.com/madankumar045/airvitaweb/internal/common"
)

// EnvironmentalSensingUUID is the 16-bit GATT service the sensors advertise.
const EnvironmentalSensingUUID uint16 = 0x181A

const defaultDeviceName = "AirVita Sensor"

// Options configures a scan.
type Options struct {
	Adapter     string // "hci0" by default
	NamePrefix  string // "AirVita" by default
	ScanTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Adapter == "" {
		o.Adapter = "hci0"
	}
	if o.NamePrefix == "" {
		o.NamePrefix = "AirVita"
	}
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = 15 * time.Second
	}
	return o
}

// advertisement is what a scan callback sees of one peripheral.
type advertisement struct {
	Address      string
	LocalName    string
	HasESService bool
}

// match reports whether adv is an AirVita sensor and, if so, its reference.
func match(adv advertisement, namePrefix string) (airquality.DeviceRef, bool) {
	if adv.Address == "" {
		return airquality.DeviceRef{}, false
	}
	if !adv.HasESService && !common.HasAnyPrefix(adv.LocalName, namePrefix) {
		return airquality.DeviceRef{}, false
	}
	name := adv.LocalName
	if name == "" {
		name = defaultDeviceName
	}
	return airquality.DeviceRef{ID: adv.Address, Name: name}, true
}
