//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// NewPlatform reports that CoreMIDI is not available on this system.
func NewPlatform(options *contracts.ClientOptions) (contracts.Platform, error) {
	options.Logger.Debug("CoreMIDI requested on a non-macOS system")
	return nil, fmt.Errorf("coremidi: %w", contracts.ErrUnsupported)
}
