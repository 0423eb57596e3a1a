package midi

import (
	"fmt"

	"github.com/leandrodaf/midiport/internal/logger"
	"github.com/leandrodaf/midiport/sdk/contracts"
)

// applyDefaultOptions sets default values for ClientOptions if not explicitly
// provided and selects a platform when none was injected.
func applyDefaultOptions(opts ...contracts.Option) (*contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}

	if options.ClientName == "" {
		options.ClientName = contracts.DefaultClientName
	}
	if options.IgnoreFlags == nil {
		options.IgnoreFlags = &contracts.IgnoreFlags{Sysex: true, Timing: true, ActiveSensing: true}
	}

	if options.SysexBufferCount < 0 || options.SysexBufferSize < 0 {
		return nil, fmt.Errorf("%w: sysex buffers %d x %d", contracts.ErrInvalidParameter,
			options.SysexBufferCount, options.SysexBufferSize)
	}
	if options.SysexBufferCount == 0 {
		options.SysexBufferCount = contracts.DefaultSysexBufferCount
	}
	if options.SysexBufferSize == 0 {
		options.SysexBufferSize = contracts.DefaultSysexBufferSize
	}

	if options.EventListCapacity < 0 {
		return nil, fmt.Errorf("%w: event list capacity %d", contracts.ErrInvalidParameter, options.EventListCapacity)
	}
	if options.EventListCapacity == 0 {
		options.EventListCapacity = contracts.DefaultEventListCapacity
	}

	if !options.Observer.TrackHardware && !options.Observer.TrackVirtual {
		options.Observer.TrackHardware = true
	}

	if options.Platform == nil {
		p, err := NewPlatform(options)
		if err != nil {
			return nil, err
		}
		options.Platform = p
	}
	return options, nil
}
