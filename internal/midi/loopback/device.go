package loopback

import (
	"slices"
	"sync"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// Device simulates a hardware MIDI interface with one source and one destination.
type Device struct {
	bus    *Bus
	Source contracts.PortIdentity // What inputs connect to.
	Dest   contracts.PortIdentity // What outputs connect to.

	mu       sync.Mutex
	received [][]byte
	lists    []contracts.EventList
}

// AddDevice plugs a simulated hardware device into the bus.
func (b *Bus) AddDevice(name string) *Device {
	b.mu.Lock()
	d := &Device{bus: b}
	d.Source = b.identity(hardwareClient, name, name+" Out")
	d.Dest = b.identity(hardwareClient, name, name+" In")
	b.sources[d.Source.Port] = &source{id: d.Source}
	b.dests[d.Dest.Port] = &dest{id: d.Dest, device: d}
	b.mu.Unlock()

	b.changed()
	return d
}

// Remove unplugs the device. Open connections stop receiving.
func (d *Device) Remove() {
	d.bus.mu.Lock()
	delete(d.bus.sources, d.Source.Port)
	delete(d.bus.dests, d.Dest.Port)
	d.bus.mu.Unlock()
	d.bus.changed()
}

// Send emits data from the device at the current bus time.
func (d *Device) Send(data []byte) error {
	return d.SendAt(d.bus.HostTime(), data)
}

// SendAt emits data from the device stamped with tick.
func (d *Device) SendAt(tick uint64, data []byte) error {
	return d.bus.publish(d.Source.Port, data, tick)
}

// Received returns copies of the byte messages sent to the device.
func (d *Device) Received() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.received))
	for i, m := range d.received {
		out[i] = slices.Clone(m)
	}
	return out
}

// EventLists returns copies of the UMP event lists sent to the device.
func (d *Device) EventLists() []contracts.EventList {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]contracts.EventList, len(d.lists))
	for i, l := range d.lists {
		out[i] = contracts.EventList{Timestamp: l.Timestamp, Words: slices.Clone(l.Words)}
	}
	return out
}

func (d *Device) accept(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, slices.Clone(data))
}

func (d *Device) acceptList(list *contracts.EventList) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lists = append(d.lists, contracts.EventList{Timestamp: list.Timestamp, Words: slices.Clone(list.Words)})
}
