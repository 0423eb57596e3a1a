// Package port implements the port connection state machines and the port
// observer on top of a contracts.Platform.
package port

import (
	"fmt"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// reporter routes fatal errors and warnings to the configured callbacks,
// falling back to the logger when none is installed.
type reporter struct {
	logger    contracts.Logger
	onError   contracts.ErrorCallback
	onWarning contracts.ErrorCallback
}

func newReporter(opts *contracts.ClientOptions) reporter {
	return reporter{logger: opts.Logger, onError: opts.OnError, onWarning: opts.OnWarning}
}

// fail builds a fatal MIDIError and reports it.
func (r reporter) fail(kind contracts.ErrorKind, op string, err error) error {
	return r.raise(contracts.NewError(kind, op, err))
}

// warn builds an advisory MIDIError and reports it.
func (r reporter) warn(op string, err error) error {
	return r.raise(contracts.NewError(contracts.KindWarning, op, err))
}

func (r reporter) warnf(op, format string, args ...interface{}) error {
	return r.warn(op, fmt.Errorf(format, args...))
}

// raise reports e on the channel matching its kind and returns it.
// Callers must not hold a connection lock: callbacks may re-enter the connection.
func (r reporter) raise(e *contracts.MIDIError) error {
	if e == nil {
		return nil
	}
	if e.Kind == contracts.KindWarning {
		if r.onWarning != nil {
			r.onWarning(e)
		} else {
			r.logger.Warn(e.Error())
		}
		return e
	}
	if r.onError != nil {
		r.onError(e)
	} else {
		r.logger.Error(e.Error(), r.logger.Field().String("kind", e.Kind.String()))
	}
	return e
}
