package task

import (
	"log/slog"

	"github.com/angas/glowbridge/purifier"
)

// NewPurifierTask steps the simulated purifier data source. State publishing
// happens through the device's own change callback.
func NewPurifierTask(logger *slog.Logger, device *purifier.Device) func() {
	return func() {
		logger.Debug("refreshing purifier readings...")
		device.Refresh()
	}
}
