package gomididrv

import (
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/multierr"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

type input struct {
	in      drivers.In
	sink    contracts.RawSink
	logger  contracts.Logger
	release func()

	mu     sync.Mutex
	stop   func()
	closed bool
}

// Start listens with every filter off; ignore flags are applied downstream.
func (i *input) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stop != nil {
		return nil
	}
	stop, err := i.in.Listen(func(msg []byte, milliseconds int32) {
		tick := uint64(0)
		if milliseconds > 0 {
			tick = uint64(milliseconds)
		}
		i.sink(contracts.RawEvent{Kind: contracts.RawStream, Data: msg, Tick: tick})
	}, drivers.ListenConfig{
		SysEx:       true,
		TimeCode:    true,
		ActiveSense: true,
		OnErr: func(err error) {
			i.logger.Warn("gomidi listener error", i.logger.Field().Error("error", err))
		},
	})
	if err != nil {
		return err
	}
	i.stop = stop
	return nil
}

func (i *input) Stop() error {
	i.mu.Lock()
	stop := i.stop
	i.stop = nil
	i.mu.Unlock()
	if stop != nil {
		stop()
	}
	return nil
}

func (i *input) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()

	err := multierr.Append(i.Stop(), i.in.Close())
	if i.release != nil {
		i.release()
	}
	return err
}

type output struct {
	out     drivers.Out
	release func()
	once    sync.Once
}

func (o *output) SendBytes(data []byte) error {
	return o.out.Send(data)
}

func (o *output) Close() error {
	var err error
	o.once.Do(func() {
		err = o.out.Close()
		if o.release != nil {
			o.release()
		}
	})
	return err
}
