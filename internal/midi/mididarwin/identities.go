package mididarwin

import "github.com/leandrodaf/midiport/sdk/contracts"

// endpointNames are the strings CoreMIDI reports for one source or destination.
type endpointNames struct {
	name         string
	entity       string
	manufacturer string
}

// identities builds stable identities for an endpoint listing. CoreMIDI
// reorders and shifts indices when a device goes away, so Port is the
// ordinal among endpoints with identical names instead of the position in
// the listing. Unplugging one endpoint leaves every other identity intact.
func identities(endpoints []endpointNames) []contracts.PortIdentity {
	seen := make(map[endpointNames]int, len(endpoints))
	ids := make([]contracts.PortIdentity, len(endpoints))
	for i, ep := range endpoints {
		display := ep.name
		if ep.entity != "" && ep.entity != ep.name {
			display = ep.entity + ": " + ep.name
		}
		ids[i] = contracts.PortIdentity{
			Port:         contracts.PortHandle(seen[ep]),
			Manufacturer: ep.manufacturer,
			DeviceName:   ep.entity,
			PortName:     ep.name,
			DisplayName:  display,
		}
		seen[ep]++
	}
	return ids
}

// indexOf returns the listing position of id, or -1.
func indexOf(ids []contracts.PortIdentity, id contracts.PortIdentity) int {
	for i := range ids {
		if ids[i] == id {
			return i
		}
	}
	return -1
}
