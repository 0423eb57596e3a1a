package port

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// DefaultPollInterval is used by Run when no interval is given.
const DefaultPollInterval = time.Second

type portSet map[contracts.PortIdentity]struct{}

type notification struct {
	cb contracts.PortCallback
	id contracts.PortIdentity
}

// Observer diffs successive port enumerations and reports additions and removals.
type Observer struct {
	platform contracts.Platform
	cfg      contracts.ObserverConfig
	report   reporter
	logger   contracts.Logger

	refreshMu sync.Mutex // serializes diffs so callbacks arrive in tick order

	mu         sync.Mutex
	known      [2]portSet
	stopNotify func()
}

// NewObserver snapshots the current ports and, when the platform pushes
// hot-plug notifications, subscribes to them. Ports present at construction
// are not reported as added.
func NewObserver(opts *contracts.ClientOptions) (*Observer, error) {
	o := &Observer{
		platform: opts.Platform,
		cfg:      opts.Observer,
		report:   newReporter(opts),
		logger:   opts.Logger,
		known:    [2]portSet{{}, {}},
	}
	if !o.cfg.HasCallbacks() {
		return o, nil
	}

	for _, dir := range []contracts.Direction{contracts.Input, contracts.Output} {
		ports, err := o.enumerate(dir)
		if err != nil {
			return nil, o.report.fail(contracts.KindDriverError, "Observer", err)
		}
		for _, p := range ports {
			o.known[dir][p] = struct{}{}
		}
	}

	if n, ok := o.platform.(contracts.PortNotifier); ok {
		stop, err := n.WatchPorts(func() { _ = o.Refresh() })
		if err != nil {
			o.report.warn("Observer.WatchPorts", err)
		} else {
			o.stopNotify = stop
		}
	}
	return o, nil
}

func (o *Observer) enumerate(dir contracts.Direction) ([]contracts.PortIdentity, error) {
	return o.platform.Ports(dir, contracts.PortFilter{
		Hardware: o.cfg.TrackHardware,
		Virtual:  o.cfg.TrackVirtual,
	})
}

// Refresh runs one discovery tick: removed ports are reported first, then
// added ones, each group in identity order.
func (o *Observer) Refresh() error {
	if !o.cfg.HasCallbacks() {
		return nil
	}

	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	var fresh [2][]contracts.PortIdentity
	for _, dir := range []contracts.Direction{contracts.Input, contracts.Output} {
		ports, err := o.enumerate(dir)
		if err != nil {
			return o.report.fail(contracts.KindDriverError, "Observer.Refresh", err)
		}
		fresh[dir] = ports
	}

	o.mu.Lock()
	var removed, added []notification
	for _, dir := range []contracts.Direction{contracts.Input, contracts.Output} {
		addCb, removeCb := o.cfg.InputAdded, o.cfg.InputRemoved
		if dir == contracts.Output {
			addCb, removeCb = o.cfg.OutputAdded, o.cfg.OutputRemoved
		}

		current := make(portSet, len(fresh[dir]))
		for _, p := range fresh[dir] {
			current[p] = struct{}{}
			if _, ok := o.known[dir][p]; !ok {
				added = append(added, notification{addCb, p})
			}
		}
		for p := range o.known[dir] {
			if _, ok := current[p]; !ok {
				removed = append(removed, notification{removeCb, p})
			}
		}
		o.known[dir] = current
	}
	o.mu.Unlock()

	byIdentity := func(a, b notification) int { return a.id.Compare(b.id) }
	slices.SortStableFunc(removed, byIdentity)
	slices.SortStableFunc(added, byIdentity)

	for _, n := range removed {
		o.logger.Debug("MIDI port removed", o.logger.Field().String("port", n.id.String()))
		if n.cb != nil {
			n.cb(n.id)
		}
	}
	for _, n := range added {
		o.logger.Debug("MIDI port added", o.logger.Field().String("port", n.id.String()))
		if n.cb != nil {
			n.cb(n.id)
		}
	}
	return nil
}

// Run polls Refresh every interval until ctx is done. Without callbacks it
// returns immediately.
func (o *Observer) Run(ctx context.Context, interval time.Duration) error {
	if !o.cfg.HasCallbacks() {
		return nil
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = o.Refresh()
		}
	}
}

// Ports returns the last known ports of one direction in identity order.
func (o *Observer) Ports(dir contracts.Direction) []contracts.PortIdentity {
	if dir != contracts.Input && dir != contracts.Output {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	ports := make([]contracts.PortIdentity, 0, len(o.known[dir]))
	for p := range o.known[dir] {
		ports = append(ports, p)
	}
	slices.SortFunc(ports, contracts.PortIdentity.Compare)
	return ports
}

// Close stops platform notifications.
func (o *Observer) Close() error {
	o.mu.Lock()
	stop := o.stopNotify
	o.stopNotify = nil
	o.mu.Unlock()
	if stop != nil {
		stop()
	}
	return nil
}
