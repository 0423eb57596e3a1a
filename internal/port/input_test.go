package port

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/leandrodaf/midiport/internal/midi/loopback"
	"github.com/leandrodaf/midiport/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	msgs []contracts.Message
}

func (c *collector) add(m contracts.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collector) all() []contracts.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]contracts.Message(nil), c.msgs...)
}

func TestInputOpenWithNoDevices(t *testing.T) {
	r := &reports{}
	in := NewInput(testOptions(loopback.New(), r))

	err := in.OpenPort(0, "x")

	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrNoDevicesFound)
	assert.False(t, in.IsPortOpen())
	errs, _ := r.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], contracts.ErrNoDevicesFound)
}

func TestInputOpenWithInvalidIndex(t *testing.T) {
	bus := loopback.New()
	bus.AddDevice("Only")
	r := &reports{}
	in := NewInput(testOptions(bus, r))

	err := in.OpenPort(5, "x")

	assert.ErrorIs(t, err, contracts.ErrInvalidParameter)
	assert.False(t, in.IsPortOpen())
	errs, _ := r.snapshot()
	assert.Len(t, errs, 1)
}

func TestInputOpenByIdentity(t *testing.T) {
	bus := loopback.New()
	bus.AddDevice("A")
	dev := bus.AddDevice("B")
	in := NewInput(testOptions(bus, &reports{}))

	require.NoError(t, in.OpenPortByIdentity(dev.Source, "x"))
	assert.Equal(t, contracts.Open, in.State())

	require.NoError(t, in.ClosePort())
	gone := dev.Source
	gone.PortName = "renamed"
	assert.ErrorIs(t, in.OpenPortByIdentity(gone, "x"), contracts.ErrInvalidParameter)
}

func TestInputDeliversFirstMessageWithZeroTimestamp(t *testing.T) {
	var tick uint64 = 1000
	bus := loopback.New(loopback.WithClock(func() uint64 { return tick }, 0.001))
	dev := bus.AddDevice("Keys")
	in := NewInput(testOptions(bus, &reports{}))
	got := &collector{}
	in.OnMessage(got.add)

	require.NoError(t, in.OpenPort(0, "x"))
	require.NoError(t, dev.SendAt(5000, []byte{0x90, 0x40, 0x7F}))
	require.NoError(t, dev.SendAt(5250, []byte{0x80, 0x40, 0x00}))

	msgs := got.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte{0x90, 0x40, 0x7F}, msgs[0].Bytes)
	assert.Equal(t, 0.0, msgs[0].Timestamp)
	assert.InDelta(t, 0.25, msgs[1].Timestamp, 1e-9)

	// Reopening restarts the delta chain.
	require.NoError(t, in.ClosePort())
	require.NoError(t, in.OpenPort(0, "x"))
	require.NoError(t, dev.SendAt(9000, []byte{0x90, 0x41, 0x7F}))
	msgs = got.all()
	require.Len(t, msgs, 3)
	assert.Equal(t, 0.0, msgs[2].Timestamp)
}

func TestInputIgnoreFlags(t *testing.T) {
	bus := loopback.New()
	dev := bus.AddDevice("Clock")
	opts := testOptions(bus, &reports{})
	opts.IgnoreFlags = &contracts.IgnoreFlags{Timing: true, ActiveSensing: true}
	in := NewInput(opts)
	got := &collector{}
	in.OnMessage(got.add)
	require.NoError(t, in.OpenPort(0, "x"))

	require.NoError(t, dev.Send([]byte{0xF8}))
	require.NoError(t, dev.Send([]byte{0xFE}))
	assert.Empty(t, got.all())

	in.SetIgnoreFlags(contracts.IgnoreNone)
	require.NoError(t, dev.Send([]byte{0xF8}))
	assert.Len(t, got.all(), 1)
}

func TestInputChunkedSysexEndToEnd(t *testing.T) {
	bus := loopback.New(loopback.WithChunkedSysex())
	dev := bus.AddDevice("Sampler")
	opts := testOptions(bus, &reports{})
	opts.SysexBufferCount = 2
	opts.SysexBufferSize = 16
	in := NewInput(opts)
	got := &collector{}
	in.OnMessage(got.add)
	require.NoError(t, in.OpenPort(0, "x"))

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i % 0x70)
	}
	payload[0], payload[len(payload)-1] = 0xF0, 0xF7
	require.NoError(t, dev.Send(append([]byte{0x90, 0x3C, 0x40}, payload...)))

	msgs := got.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte{0x90, 0x3C, 0x40}, msgs[0].Bytes)
	assert.True(t, bytes.Equal(payload, msgs[1].Bytes))

	assert.NoError(t, in.ClosePort())
}

func TestInputArmsBuffersOnOpenAndNeverRearmsEmptyOnClose(t *testing.T) {
	fake := newFakePlatform("WinMM In")
	in := NewInput(testOptions(fake, &reports{}))
	got := &collector{}
	in.OnMessage(got.add)

	require.NoError(t, in.OpenPort(0, "x"))
	ep := fake.input
	assert.Equal(t, 4, ep.totalArms())

	ep.complete([]byte{0xF0, 0x01, 0x02}, 10)
	ep.complete([]byte{0x03, 0xF7}, 11)
	assert.Equal(t, 6, ep.totalArms())
	require.Len(t, got.all(), 1)
	assert.Equal(t, []byte{0xF0, 0x01, 0x02, 0x03, 0xF7}, got.all()[0].Bytes)

	require.NoError(t, in.ClosePort())
	assert.Equal(t, 6, ep.totalArms(), "buffers handed back empty during close must not be re-armed")
	assert.Equal(t, 1, ep.stops)
	assert.Equal(t, 4, ep.disarms)
	assert.Equal(t, 1, ep.closes)
}

func TestInputCloseIsIdempotent(t *testing.T) {
	fake := newFakePlatform("In")
	r := &reports{}
	in := NewInput(testOptions(fake, r))

	require.NoError(t, in.ClosePort())
	assert.Equal(t, contracts.Closed, in.State())

	require.NoError(t, in.OpenPort(0, "x"))
	require.NoError(t, in.ClosePort())
	require.NoError(t, in.ClosePort())

	assert.Equal(t, 1, fake.input.closes)
	assert.Equal(t, 4, fake.input.disarms)
	errs, warnings := r.snapshot()
	assert.Empty(t, errs)
	assert.Empty(t, warnings)
}

func TestInputStaleBufferAfterCloseIsIgnored(t *testing.T) {
	fake := newFakePlatform("In")
	in := NewInput(testOptions(fake, &reports{}))
	got := &collector{}
	in.OnMessage(got.add)
	require.NoError(t, in.OpenPort(0, "x"))
	ep := fake.input

	ep.mu.Lock()
	stale := ep.queue[0]
	ep.mu.Unlock()
	require.NoError(t, in.ClosePort())

	stale.SetRecorded(copy(stale.Data(), []byte{0xF0, 0x7F, 0xF7}))
	ep.sink(contracts.RawEvent{Kind: contracts.RawLong, Buffer: stale})
	ep.sink(contracts.RawEvent{Kind: contracts.RawShort, Data: []byte{0x90, 0x40, 0x40}})

	assert.Empty(t, got.all())
	assert.Equal(t, 4, ep.totalArms())
}

func TestInputDriverErrorOnOpen(t *testing.T) {
	fake := newFakePlatform("In")
	fake.openErr = errors.New("midiInOpen failed")
	r := &reports{}
	in := NewInput(testOptions(fake, r))

	err := in.OpenPort(0, "x")
	assert.ErrorIs(t, err, contracts.ErrDriverError)
	assert.Equal(t, contracts.Closed, in.State())
	errs, _ := r.snapshot()
	assert.Len(t, errs, 1)
}

func TestInputArmFailureRollsBack(t *testing.T) {
	fake := newFakePlatform("In")
	fake.armErrAt = 3
	in := NewInput(testOptions(fake, &reports{}))

	err := in.OpenPort(0, "x")

	assert.ErrorIs(t, err, contracts.ErrDriverError)
	assert.Equal(t, contracts.Closed, in.State())
	assert.Equal(t, 2, fake.input.disarms)
	assert.Equal(t, 1, fake.input.closes)

	// A later open starts from scratch.
	fake.armErrAt = 0
	require.NoError(t, in.OpenPort(0, "x"))
	assert.Equal(t, 4, fake.input.totalArms())
}

func TestInputStartFailureReleasesEverything(t *testing.T) {
	fake := newFakePlatform("In")
	fake.startErr = errors.New("midiInStart failed")
	in := NewInput(testOptions(fake, &reports{}))

	assert.ErrorIs(t, in.OpenPort(0, "x"), contracts.ErrDriverError)
	assert.Equal(t, contracts.Closed, in.State())
	assert.Equal(t, 4, fake.input.disarms)
	assert.Equal(t, 1, fake.input.closes)
}

func TestInputOpenTwice(t *testing.T) {
	bus := loopback.New()
	bus.AddDevice("Keys")
	r := &reports{}
	in := NewInput(testOptions(bus, r))

	require.NoError(t, in.OpenPort(0, "x"))
	err := in.OpenPort(0, "x")
	assert.True(t, contracts.IsWarning(err))
	assert.True(t, in.IsPortOpen())

	_, warnings := r.snapshot()
	assert.Len(t, warnings, 1)
}

func TestInputVirtualPortTwice(t *testing.T) {
	bus := loopback.New()
	r := &reports{}
	in := NewInput(testOptions(bus, r))

	require.NoError(t, in.OpenVirtualPort("Virtual In"))
	assert.ErrorIs(t, in.OpenVirtualPort("Virtual In"), contracts.ErrDriverError)

	dests, err := bus.Ports(contracts.Output, contracts.PortFilter{Virtual: true})
	require.NoError(t, err)
	assert.Len(t, dests, 1)

	require.NoError(t, in.ClosePort())
	dests, err = bus.Ports(contracts.Output, contracts.PortFilter{Virtual: true})
	require.NoError(t, err)
	assert.Empty(t, dests)
}

func TestInputCallbackMayClosePort(t *testing.T) {
	bus := loopback.New()
	dev := bus.AddDevice("Keys")
	in := NewInput(testOptions(bus, &reports{}))
	var calls int32
	in.OnMessage(func(contracts.Message) {
		atomic.AddInt32(&calls, 1)
		_ = in.ClosePort()
	})
	require.NoError(t, in.OpenPort(0, "x"))

	require.NoError(t, dev.Send([]byte{0x90, 0x40, 0x7F, 0x80, 0x40, 0x00}))
	assert.Equal(t, contracts.Closed, in.State())
	// Both messages came from one raw event, so both are delivered.
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	require.NoError(t, dev.Send([]byte{0x90, 0x40, 0x7F}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInputCloseRacesWithDelivery(t *testing.T) {
	bus := loopback.New(loopback.WithChunkedSysex())
	dev := bus.AddDevice("Busy")
	opts := testOptions(bus, &reports{})
	opts.SysexBufferSize = 8

	for round := 0; round < 20; round++ {
		in := NewInput(opts)
		in.OnMessage(func(contracts.Message) {})
		require.NoError(t, in.OpenPort(0, "x"))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = dev.Send([]byte{0x90, 0x40, 0x7F, 0xF0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0xF7})
			}
		}()
		require.NoError(t, in.ClosePort())
		wg.Wait()
		assert.Equal(t, contracts.Closed, in.State())
	}
}

func TestInputPortNamesAreUnique(t *testing.T) {
	fake := newFakePlatform("Synth", "Drums", "Synth", "Synth")
	in := NewInput(testOptions(fake, &reports{}))

	assert.Equal(t, 4, in.PortCount())
	var names []string
	for i := 0; i < in.PortCount(); i++ {
		name, err := in.PortName(i)
		require.NoError(t, err)
		names = append(names, name)
	}
	assert.Equal(t, []string{"Synth", "Drums", "Synth 2", "Synth 3"}, names)

	_, err := in.PortName(9)
	assert.ErrorIs(t, err, contracts.ErrInvalidParameter)
}

func TestInputNamingWarnsWhenUnsupported(t *testing.T) {
	r := &reports{}
	in := NewInput(testOptions(newFakePlatform("In"), r))

	in.SetClientName("client")
	in.SetPortName("port")

	errs, warnings := r.snapshot()
	assert.Empty(t, errs)
	require.Len(t, warnings, 2)
	assert.ErrorIs(t, warnings[0], contracts.ErrUnsupported)

	r2 := &reports{}
	bus := loopback.New()
	NewInput(testOptions(bus, r2)).SetClientName("renamed")
	_, warnings = r2.snapshot()
	assert.Empty(t, warnings)
}
