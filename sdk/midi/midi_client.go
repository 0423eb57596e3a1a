// Package midi is the entry point of the SDK: it builds input and output
// connections and port observers on the platform chosen for the current OS
// or injected with contracts.WithPlatform.
package midi

import (
	"github.com/leandrodaf/midiport/internal/port"
	"github.com/leandrodaf/midiport/sdk/contracts"
)

// NewInput creates an input connection in the Uninitialized state.
func NewInput(opts ...contracts.Option) (contracts.InputPort, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return port.NewInput(options), nil
}

// NewOutput creates an output connection in the Uninitialized state.
func NewOutput(opts ...contracts.Option) (contracts.OutputPort, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return port.NewOutput(options), nil
}

// NewObserver creates a port observer. Ports visible at construction are
// not reported as added.
func NewObserver(opts ...contracts.Option) (contracts.Observer, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	obs, err := port.NewObserver(options)
	if err != nil {
		return nil, err
	}
	return obs, nil
}
