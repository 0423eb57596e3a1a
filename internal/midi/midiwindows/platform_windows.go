//go:build windows
// +build windows

package midiwindows

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// Platform binds WinMM. Input ticks are the milliseconds WinMM reports since
// midiInStart. WinMM has no virtual ports.
type Platform struct {
	logger contracts.Logger
	start  time.Time
}

// NewPlatform creates the WinMM backend.
func NewPlatform(options *contracts.ClientOptions) (contracts.Platform, error) {
	options.Logger.Info("MIDI client created for Windows")
	return &Platform{logger: options.Logger, start: time.Now()}, nil
}

func (p *Platform) Name() string       { return "winmm" }
func (p *Platform) HostTime() uint64   { return uint64(time.Since(p.start).Milliseconds()) }
func (p *Platform) TickScale() float64 { return 0.001 }

// Ports lists WinMM devices. They are all hardware.
func (p *Platform) Ports(dir contracts.Direction, filter contracts.PortFilter) ([]contracts.PortIdentity, error) {
	if !filter.Hardware {
		return nil, nil
	}
	switch dir {
	case contracts.Input:
		r0, _, _ := procMidiInGetNumDevs.Call()
		ids := make([]contracts.PortIdentity, 0, int(r0))
		for i := uintptr(0); i < r0; i++ {
			var caps midiInCaps
			if err := call(procMidiInGetDevCaps, i, uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps)); err != nil {
				p.logger.Warn(fmt.Sprintf("Failed to get information for MIDI input %d", i), p.logger.Field().Error("error", err))
				continue
			}
			ids = append(ids, identity(i, caps.wMid, caps.wPid, caps.szPname[:]))
		}
		return ids, nil
	case contracts.Output:
		r0, _, _ := procMidiOutGetNumDevs.Call()
		ids := make([]contracts.PortIdentity, 0, int(r0))
		for i := uintptr(0); i < r0; i++ {
			var caps midiOutCaps
			if err := call(procMidiOutGetDevCaps, i, uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps)); err != nil {
				p.logger.Warn(fmt.Sprintf("Failed to get information for MIDI output %d", i), p.logger.Field().Error("error", err))
				continue
			}
			ids = append(ids, identity(i, caps.wMid, caps.wPid, caps.szPname[:]))
		}
		return ids, nil
	}
	return nil, fmt.Errorf("%w: direction %d", contracts.ErrInvalidParameter, dir)
}

func identity(device uintptr, mid, pid uint16, pname []uint16) contracts.PortIdentity {
	name := windows.UTF16ToString(pname)
	return contracts.PortIdentity{
		Port:         contracts.PortHandle(device),
		Manufacturer: fmt.Sprintf("MID: %d PID: %d", mid, pid),
		DeviceName:   name,
		PortName:     name,
	}
}

// OpenInput opens WinMM input device id.Port with the shared callback.
func (p *Platform) OpenInput(id contracts.PortIdentity, _ string, sink contracts.RawSink) (contracts.InputEndpoint, error) {
	in := &input{logger: p.logger, sink: sink, headers: make(map[int]*header)}
	instance := register(in)

	err := call(procMidiInOpen,
		uintptr(unsafe.Pointer(&in.handle)),
		uintptr(id.Port),
		midiInCallbackPtr,
		instance,
		CALLBACK_FUNCTION|MIDI_IO_STATUS,
	)
	if err != nil {
		unregister(instance)
		return nil, fmt.Errorf("failed to open MIDI input %s: %w", id, err)
	}
	in.instance = instance
	p.logger.Info("MIDI input opened", p.logger.Field().String("port", id.String()))
	return in, nil
}

func (p *Platform) OpenVirtualInput(string, contracts.RawSink) (contracts.InputEndpoint, error) {
	return nil, fmt.Errorf("winmm: virtual input: %w", contracts.ErrUnsupported)
}

// OpenOutput opens WinMM output device id.Port.
func (p *Platform) OpenOutput(id contracts.PortIdentity, _ string) (contracts.OutputEndpoint, error) {
	out := &output{}
	if err := call(procMidiOutOpen, uintptr(unsafe.Pointer(&out.handle)), uintptr(id.Port), 0, 0, 0); err != nil {
		return nil, fmt.Errorf("failed to open MIDI output %s: %w", id, err)
	}
	p.logger.Info("MIDI output opened", p.logger.Field().String("port", id.String()))
	return out, nil
}

func (p *Platform) OpenVirtualOutput(string) (contracts.OutputEndpoint, error) {
	return nil, fmt.Errorf("winmm: virtual output: %w", contracts.ErrUnsupported)
}

// windows.NewCallback slots are never freed, so every input shares one
// callback and finds its endpoint through dwInstance.
var (
	registryMu        sync.Mutex
	registry          = make(map[uintptr]*input)
	nextInstance      uintptr
	midiInCallbackPtr = windows.NewCallback(midiInCallback)
)

func register(in *input) uintptr {
	registryMu.Lock()
	defer registryMu.Unlock()
	nextInstance++
	registry[nextInstance] = in
	return nextInstance
}

func unregister(instance uintptr) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, instance)
}

func lookup(instance uintptr) *input {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[instance]
}

// midiInCallback processes incoming MIDI messages
func midiInCallback(hMidiIn, wMsg, dwInstance, dwParam1, dwParam2 uintptr) uintptr {
	in := lookup(dwInstance)
	if in == nil {
		return 0
	}

	switch wMsg {
	case MIM_DATA, MIM_MOREDATA:
		packed := uint32(dwParam1)
		data := []byte{byte(packed), byte(packed >> 8), byte(packed >> 16)}
		in.sink(contracts.RawEvent{Kind: contracts.RawShort, Data: data, Tick: uint64(dwParam2)})
	case MIM_LONGDATA, MIM_LONGERROR:
		in.complete((*midiHdr)(unsafe.Pointer(dwParam1)), wMsg == MIM_LONGERROR, uint64(dwParam2))
	case MIM_ERROR:
		in.logger.Warn(fmt.Sprintf("MIDI error: invalid message 0x%X", dwParam1))
	case MIM_OPEN, MIM_CLOSE:
	default:
		in.logger.Debug(fmt.Sprintf("Unknown MIDI message: 0x%X", wMsg))
	}
	return 0
}

// header is the WinMM view of one sysex buffer. It stays pinned while prepared.
type header struct {
	hdr    midiHdr
	buf    *contracts.SysexBuffer
	pinner runtime.Pinner
}

// input is a WinMM input handle capturing sysex in armed buffers.
type input struct {
	logger   contracts.Logger
	sink     contracts.RawSink
	handle   HMIDIIN
	instance uintptr

	mu      sync.Mutex
	headers map[int]*header
	closed  bool
}

func (i *input) Start() error {
	return call(procMidiInStart, uintptr(i.handle))
}

// Stop resets the device; WinMM completes every queued buffer with zero bytes.
func (i *input) Stop() error {
	if err := call(procMidiInStop, uintptr(i.handle)); err != nil {
		return err
	}
	return call(procMidiInReset, uintptr(i.handle))
}

func (i *input) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()

	err := call(procMidiInClose, uintptr(i.handle))
	unregister(i.instance)
	return err
}

// ArmBuffer prepares buf on first use and queues it for sysex capture.
func (i *input) ArmBuffer(buf *contracts.SysexBuffer) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return contracts.ErrNotOpen
	}

	h, ok := i.headers[buf.Index()]
	if !ok {
		h = &header{buf: buf}
		data := buf.Data()
		h.pinner.Pin(&data[0])
		h.pinner.Pin(h)
		h.hdr.lpData = uintptr(unsafe.Pointer(&data[0]))
		h.hdr.dwBufferLength = uint32(len(data))
		h.hdr.dwUser = uintptr(buf.Index())
		if err := call(procMidiInPrepareHeader, uintptr(i.handle), uintptr(unsafe.Pointer(&h.hdr)), hdrSize()); err != nil {
			h.pinner.Unpin()
			return err
		}
		i.headers[buf.Index()] = h
	}
	h.hdr.dwBytesRecorded = 0
	h.hdr.dwFlags &^= MHDR_DONE
	return call(procMidiInAddBuffer, uintptr(i.handle), uintptr(unsafe.Pointer(&h.hdr)), hdrSize())
}

// DisarmBuffer unprepares buf. The device must have been reset first.
func (i *input) DisarmBuffer(buf *contracts.SysexBuffer) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	h, ok := i.headers[buf.Index()]
	if !ok {
		return nil
	}
	delete(i.headers, buf.Index())
	err := call(procMidiInUnprepareHeader, uintptr(i.handle), uintptr(unsafe.Pointer(&h.hdr)), hdrSize())
	h.pinner.Unpin()
	return err
}

func (i *input) complete(hdr *midiHdr, failed bool, tick uint64) {
	i.mu.Lock()
	h, ok := i.headers[int(hdr.dwUser)]
	i.mu.Unlock()
	if !ok {
		return
	}

	h.buf.SetRecorded(int(hdr.dwBytesRecorded))
	kind := contracts.RawLong
	if failed {
		kind = contracts.RawLongError
	}
	i.sink(contracts.RawEvent{Kind: kind, Buffer: h.buf, Tick: tick})
}

// output is a WinMM output handle.
type output struct {
	handle HMIDIOUT
	mu     sync.Mutex
	closed bool
}

// SendBytes uses midiOutShortMsg for channel and system common messages and
// midiOutLongMsg for everything longer.
func (o *output) SendBytes(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return contracts.ErrNotOpen
	}
	if len(data) <= 3 && data[0] != 0xF0 {
		var packed uint32
		for n, b := range data {
			packed |= uint32(b) << (8 * n)
		}
		return call(procMidiOutShortMsg, uintptr(o.handle), uintptr(packed))
	}
	return o.sendLong(data)
}

func (o *output) sendLong(data []byte) error {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	buf := append([]byte(nil), data...)
	hdr := &midiHdr{
		lpData:         uintptr(unsafe.Pointer(&buf[0])),
		dwBufferLength: uint32(len(buf)),
	}
	pinner.Pin(&buf[0])
	pinner.Pin(hdr)

	h := uintptr(unsafe.Pointer(hdr))
	if err := call(procMidiOutPrepareHeader, uintptr(o.handle), h, hdrSize()); err != nil {
		return err
	}
	sendErr := call(procMidiOutLongMsg, uintptr(o.handle), h, hdrSize())
	for {
		r1, _, _ := procMidiOutUnprepareHeader.Call(uintptr(o.handle), h, hdrSize())
		if r1 != MIDIERR_STILLPLAYING {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return sendErr
}

func (o *output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	_ = call(procMidiOutReset, uintptr(o.handle))
	return call(procMidiOutClose, uintptr(o.handle))
}
