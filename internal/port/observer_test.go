package port

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midiport/internal/midi/loopback"
	"github.com/leandrodaf/midiport/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type portEvents struct {
	mu     sync.Mutex
	events []string
	live   map[string]bool
	dups   int
}

func (p *portEvents) config(hardware, virtual bool) contracts.ObserverConfig {
	p.live = map[string]bool{}
	record := func(kind string, added bool) contracts.PortCallback {
		return func(id contracts.PortIdentity) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.events = append(p.events, kind+" "+id.PortName)
			key := kind[:len(kind)-1] + " " + id.String()
			if added && p.live[key] {
				p.dups++
			}
			p.live[key] = added
		}
	}
	return contracts.ObserverConfig{
		InputAdded:    record("in+", true),
		InputRemoved:  record("in-", false),
		OutputAdded:   record("out+", true),
		OutputRemoved: record("out-", false),
		TrackHardware: hardware,
		TrackVirtual:  virtual,
	}
}

func (p *portEvents) take() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.events
	p.events = nil
	return e
}

func observerOptions(bus *loopback.Bus, cfg contracts.ObserverConfig) *contracts.ClientOptions {
	opts := testOptions(bus, &reports{})
	opts.Observer = cfg
	return opts
}

func TestObserverReportsHotPlug(t *testing.T) {
	bus := loopback.New()
	existing := bus.AddDevice("Existing")
	events := &portEvents{}

	obs, err := NewObserver(observerOptions(bus, events.config(true, false)))
	require.NoError(t, err)
	defer obs.Close()

	assert.Empty(t, events.take(), "ports present at construction are not reported")
	assert.Equal(t, []contracts.PortIdentity{existing.Source}, obs.Ports(contracts.Input))

	dev := bus.AddDevice("Pad")
	assert.Equal(t, []string{"in+ Pad Out", "out+ Pad In"}, events.take())

	dev.Remove()
	assert.Equal(t, []string{"in- Pad Out", "out- Pad In"}, events.take())
	assert.Zero(t, events.dups)
}

func TestObserverHonorsTrackingFlags(t *testing.T) {
	bus := loopback.New()
	events := &portEvents{}
	obs, err := NewObserver(observerOptions(bus, events.config(false, true)))
	require.NoError(t, err)
	defer obs.Close()

	bus.AddDevice("Hardware")
	assert.Empty(t, events.take())

	out, err := bus.OpenVirtualOutput("Virtual")
	require.NoError(t, err)
	assert.Equal(t, []string{"in+ Virtual"}, events.take())

	require.NoError(t, out.Close())
	assert.Equal(t, []string{"in- Virtual"}, events.take())
}

func TestObserverNeverDuplicatesAdds(t *testing.T) {
	bus := loopback.New()
	events := &portEvents{}
	obs, err := NewObserver(observerOptions(bus, events.config(true, true)))
	require.NoError(t, err)
	defer obs.Close()

	var devices []*loopback.Device
	for i := 0; i < 10; i++ {
		devices = append(devices, bus.AddDevice("Dev"))
		require.NoError(t, obs.Refresh())
		require.NoError(t, obs.Refresh())
		if i%3 == 0 {
			devices[0].Remove()
			devices = devices[1:]
			require.NoError(t, obs.Refresh())
		}
	}
	assert.Zero(t, events.dups)
}

func TestObserverWithoutCallbacksIsNoop(t *testing.T) {
	bus := loopback.New()
	bus.AddDevice("Dev")
	obs, err := NewObserver(observerOptions(bus, contracts.ObserverConfig{TrackHardware: true}))
	require.NoError(t, err)

	require.NoError(t, obs.Refresh())
	assert.Empty(t, obs.Ports(contracts.Input))
	assert.NoError(t, obs.Run(context.Background(), time.Millisecond))
	assert.NoError(t, obs.Close())
}

func TestObserverRunPolls(t *testing.T) {
	fake := newFakePlatform()
	var mu sync.Mutex
	var added []contracts.PortIdentity
	opts := testOptions(fake, &reports{})
	opts.Observer = contracts.ObserverConfig{
		TrackHardware: true,
		InputAdded: func(id contracts.PortIdentity) {
			mu.Lock()
			defer mu.Unlock()
			added = append(added, id)
		},
	}
	obs, err := NewObserver(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- obs.Run(ctx, 5*time.Millisecond) }()

	fake.mu.Lock()
	fake.ports = append(fake.ports, contracts.PortIdentity{Port: 7, PortName: "Late"})
	fake.mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(added) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
