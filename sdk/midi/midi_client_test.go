package midi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leandrodaf/midiport/internal/logger"
	"github.com/leandrodaf/midiport/internal/midi/loopback"
	"github.com/leandrodaf/midiport/sdk/contracts"
)

func TestApplyDefaultOptions(t *testing.T) {
	bus := loopback.New()
	opts, err := applyDefaultOptions(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithPlatform(bus),
	)
	require.NoError(t, err)

	assert.Equal(t, contracts.InfoLevel, opts.LogLevel)
	assert.Equal(t, contracts.DefaultClientName, opts.ClientName)
	assert.Equal(t, &contracts.IgnoreFlags{Sysex: true, Timing: true, ActiveSensing: true}, opts.IgnoreFlags)
	assert.Equal(t, contracts.DefaultSysexBufferCount, opts.SysexBufferCount)
	assert.Equal(t, contracts.DefaultSysexBufferSize, opts.SysexBufferSize)
	assert.Equal(t, contracts.DefaultEventListCapacity, opts.EventListCapacity)
	assert.True(t, opts.Observer.TrackHardware)
	assert.False(t, opts.Observer.TrackVirtual)
	assert.Same(t, bus, opts.Platform)
}

func TestApplyDefaultOptionsKeepsExplicitValues(t *testing.T) {
	opts, err := applyDefaultOptions(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithPlatform(loopback.New()),
		contracts.WithClientName("studio"),
		contracts.WithIgnoreFlags(contracts.IgnoreNone),
		contracts.WithSysexBuffers(8, 4096),
		contracts.WithEventListCapacity(1024),
		contracts.WithObserverConfig(contracts.ObserverConfig{TrackVirtual: true}),
	)
	require.NoError(t, err)

	assert.Equal(t, "studio", opts.ClientName)
	assert.Equal(t, contracts.IgnoreNone, *opts.IgnoreFlags)
	assert.Equal(t, 8, opts.SysexBufferCount)
	assert.Equal(t, 4096, opts.SysexBufferSize)
	assert.Equal(t, 1024, opts.EventListCapacity)
	assert.False(t, opts.Observer.TrackHardware)
	assert.True(t, opts.Observer.TrackVirtual)
}

func TestApplyDefaultOptionsRejectsNegativeSizes(t *testing.T) {
	_, err := applyDefaultOptions(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithPlatform(loopback.New()),
		contracts.WithSysexBuffers(-1, 0),
	)
	assert.ErrorIs(t, err, contracts.ErrInvalidParameter)

	_, err = applyDefaultOptions(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithPlatform(loopback.New()),
		contracts.WithEventListCapacity(-16),
	)
	assert.ErrorIs(t, err, contracts.ErrInvalidParameter)
}

func TestInputAndOutputOverLoopback(t *testing.T) {
	bus := loopback.New()
	common := []contracts.Option{
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithPlatform(bus),
	}

	in, err := NewInput(common...)
	require.NoError(t, err)
	ch := make(chan contracts.Message, 4)
	in.OnMessage(ChannelSink(ch, logger.NewNopLogger()))
	require.NoError(t, in.OpenVirtualPort("sdk in"))
	defer in.ClosePort()

	out, err := NewOutput(common...)
	require.NoError(t, err)
	require.Equal(t, 1, out.PortCount())
	require.NoError(t, out.OpenPort(0, "sdk out"))
	defer out.ClosePort()

	require.NoError(t, out.SendMessage([]byte{0xF8}))
	require.NoError(t, out.SendMessage([]byte{0xC0, 0x05}))

	select {
	case msg := <-ch:
		assert.Equal(t, []byte{0xC0, 0x05}, msg.Bytes, "timing clock is ignored by default")
		assert.Zero(t, msg.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestObserverOverLoopback(t *testing.T) {
	bus := loopback.New()
	added := make(chan contracts.PortIdentity, 4)
	obs, err := NewObserver(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithPlatform(bus),
		contracts.WithObserverConfig(contracts.ObserverConfig{
			InputAdded: func(id contracts.PortIdentity) { added <- id },
		}),
	)
	require.NoError(t, err)
	defer obs.Close()

	dev := bus.AddDevice("Keys")
	select {
	case id := <-added:
		assert.Equal(t, dev.Source, id)
	case <-time.After(time.Second):
		t.Fatal("device not reported")
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewZapLoggerFrom(zap.New(core))
	ch := make(chan contracts.Message, 1)
	sink := ChannelSink(ch, log)

	sink(contracts.Message{Bytes: []byte{0x90, 0x3C, 0x7F}})
	sink(contracts.Message{Bytes: []byte{0x80, 0x3C, 0x00}})

	require.Len(t, ch, 1)
	assert.Equal(t, []byte{0x90, 0x3C, 0x7F}, (<-ch).Bytes)
	assert.Equal(t, 1, logs.FilterMessageSnippet("channel is full").Len())
}
