//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// NewPlatform reports that WinMM is not available on this system.
func NewPlatform(options *contracts.ClientOptions) (contracts.Platform, error) {
	options.Logger.Debug("WinMM requested on a non-Windows system")
	return nil, fmt.Errorf("winmm: %w", contracts.ErrUnsupported)
}
