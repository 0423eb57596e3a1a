package port

import (
	"fmt"

	"github.com/leandrodaf/midiport/sdk/contracts"
)

// uniqueNames returns display names for ports, numbering repeated names
// ("Synth", "Synth 2", ...) in enumeration order.
func uniqueNames(ports []contracts.PortIdentity) []string {
	seen := make(map[string]int, len(ports))
	names := make([]string, len(ports))
	for i, p := range ports {
		name := p.Name()
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s %d", name, n)
		}
		names[i] = name
	}
	return names
}

// resolve finds the port to open in ports, by index when id is nil.
func resolve(ports []contracts.PortIdentity, index int, id *contracts.PortIdentity) (contracts.PortIdentity, contracts.ErrorKind, error) {
	if len(ports) == 0 {
		return contracts.PortIdentity{}, contracts.KindNoDevicesFound, contracts.ErrNoDevicesFound
	}
	if id == nil {
		if index < 0 || index >= len(ports) {
			return contracts.PortIdentity{}, contracts.KindInvalidParameter,
				fmt.Errorf("%w: port index %d out of range [0, %d)", contracts.ErrInvalidParameter, index, len(ports))
		}
		return ports[index], 0, nil
	}
	for _, p := range ports {
		if p == *id {
			return p, 0, nil
		}
	}
	return contracts.PortIdentity{}, contracts.KindInvalidParameter,
		fmt.Errorf("%w: port %s is not visible", contracts.ErrInvalidParameter, id)
}

// lister is the enumeration half shared by inputs and outputs.
type lister struct {
	platform contracts.Platform
	dir      contracts.Direction
	report   reporter
}

func (l lister) Ports() ([]contracts.PortIdentity, error) {
	ports, err := l.platform.Ports(l.dir, contracts.AllPorts)
	if err != nil {
		return nil, l.report.fail(contracts.KindDriverError, l.dir.String()+" ports", err)
	}
	return ports, nil
}

func (l lister) PortCount() int {
	ports, err := l.Ports()
	if err != nil {
		return 0
	}
	return len(ports)
}

func (l lister) PortName(index int) (string, error) {
	ports, err := l.Ports()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(ports) {
		return "", l.report.fail(contracts.KindInvalidParameter, l.dir.String()+" port name",
			fmt.Errorf("%w: port index %d out of range [0, %d)", contracts.ErrInvalidParameter, index, len(ports)))
	}
	return uniqueNames(ports)[index], nil
}

func (l lister) SetClientName(name string) {
	r, ok := l.platform.(contracts.Renamer)
	if !ok {
		l.report.warnf("SetClientName", "%s: %w", l.platform.Name(), contracts.ErrUnsupported)
		return
	}
	if err := r.SetClientName(name); err != nil {
		l.report.warn("SetClientName", err)
	}
}

func (l lister) SetPortName(name string) {
	r, ok := l.platform.(contracts.Renamer)
	if !ok {
		l.report.warnf("SetPortName", "%s: %w", l.platform.Name(), contracts.ErrUnsupported)
		return
	}
	if err := r.SetPortName(name); err != nil {
		l.report.warn("SetPortName", err)
	}
}
