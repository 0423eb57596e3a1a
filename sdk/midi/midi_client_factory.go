package midi

import (
	"errors"
	"fmt"
	"runtime"

	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/leandrodaf/midiport/internal/midi/gomididrv"
	"github.com/leandrodaf/midiport/internal/midi/mididarwin"
	"github.com/leandrodaf/midiport/internal/midi/midiwindows"
	"github.com/leandrodaf/midiport/sdk/contracts"
)

// ErrUnsupportedOS is returned when no backend serves the operating system.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// platformInitializers maps OS names to their native backends.
var platformInitializers = map[string]func(*contracts.ClientOptions) (contracts.Platform, error){
	"darwin":  mididarwin.NewPlatform,  // CoreMIDI.
	"windows": midiwindows.NewPlatform, // WinMM.
}

// NewPlatform selects the backend for the current operating system. Other
// systems fall back to the first registered gomidi driver; import one such as
// gitlab.com/gomidi/midi/v2/drivers/rtmididrv to make it available.
func NewPlatform(opts *contracts.ClientOptions) (contracts.Platform, error) {
	if initializer, exists := platformInitializers[runtime.GOOS]; exists {
		return initializer(opts)
	}
	if drv := drivers.Get(); drv != nil {
		opts.Logger.Debug("Using gomidi driver", opts.Logger.Field().String("driver", drv.String()))
		return gomididrv.New(drv, opts.Logger), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}
