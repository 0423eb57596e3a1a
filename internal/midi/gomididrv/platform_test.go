package gomididrv_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/drivers/testdrv"

	"github.com/leandrodaf/midiport/internal/logger"
	"github.com/leandrodaf/midiport/internal/midi/gomididrv"
	"github.com/leandrodaf/midiport/internal/port"
	"github.com/leandrodaf/midiport/sdk/contracts"
)

func options(p contracts.Platform) *contracts.ClientOptions {
	return &contracts.ClientOptions{
		Logger:            logger.NewNopLogger(),
		Platform:          p,
		IgnoreFlags:       &contracts.IgnoreFlags{},
		SysexBufferCount:  contracts.DefaultSysexBufferCount,
		SysexBufferSize:   contracts.DefaultSysexBufferSize,
		EventListCapacity: contracts.DefaultEventListCapacity,
	}
}

func TestPortsFollowTheDriver(t *testing.T) {
	p := gomididrv.New(testdrv.New("cable"), logger.NewNopLogger())

	ins, err := p.Ports(contracts.Input, contracts.AllPorts)
	require.NoError(t, err)
	require.Len(t, ins, 1)
	outs, err := p.Ports(contracts.Output, contracts.AllPorts)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	virtualOnly, err := p.Ports(contracts.Input, contracts.PortFilter{Virtual: true})
	require.NoError(t, err)
	assert.Empty(t, virtualOnly)

	assert.Equal(t, 0.001, p.TickScale())
}

func TestRoundTripThroughDriver(t *testing.T) {
	p := gomididrv.New(testdrv.New("cable"), logger.NewNopLogger())

	var (
		mu  sync.Mutex
		got []contracts.Message
	)
	in := port.NewInput(options(p))
	in.OnMessage(func(m contracts.Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m)
	})
	require.NoError(t, in.OpenPort(0, "in"))
	defer in.ClosePort()

	out := port.NewOutput(options(p))
	require.NoError(t, out.OpenPort(0, "out"))
	defer out.ClosePort()

	require.NoError(t, out.SendMessage([]byte{0x90, 0x3C, 0x64}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte{0x90, 0x3C, 0x64}, got[0].Bytes)
	assert.Zero(t, got[0].Timestamp)
}

func TestVirtualPortsNeedDriverSupport(t *testing.T) {
	p := gomididrv.New(testdrv.New("cable"), logger.NewNopLogger())

	_, err := p.OpenVirtualInput("v", func(contracts.RawEvent) {})
	assert.ErrorIs(t, err, contracts.ErrUnsupported)
	_, err = p.OpenVirtualOutput("v")
	assert.ErrorIs(t, err, contracts.ErrUnsupported)
}

func TestSendUMPIsUnsupported(t *testing.T) {
	p := gomididrv.New(testdrv.New("cable"), logger.NewNopLogger())
	out := port.NewOutput(options(p))
	require.NoError(t, out.OpenPort(0, "out"))
	defer out.ClosePort()

	assert.ErrorIs(t, out.SendUMP([]uint32{0x20903C64}), contracts.ErrUnsupported)
}
