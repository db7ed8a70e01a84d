package device

import (
	"strings"

	"go.bug.st/serial/enumerator"
)

// Enumerator lists the serial ports known to the OS with USB details.
type Enumerator func() ([]*enumerator.PortDetails, error)

// SystemEnumerator queries the OS port list.
func SystemEnumerator() Enumerator {
	return enumerator.GetDetailedPortsList
}

// Describe decorates candidates with USB identity from the enumerator.
// Enumeration is best effort: on error, or for ports the OS does not
// report, candidates are returned as they were.
func Describe(candidates []Candidate, enum Enumerator) []Candidate {
	if enum == nil || len(candidates) == 0 {
		return candidates
	}
	ports, err := enum()
	if err != nil {
		return candidates
	}

	byName := make(map[string]*enumerator.PortDetails, len(ports))
	for _, p := range ports {
		if p != nil && p.IsUSB {
			byName[p.Name] = p
		}
	}

	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		if p, ok := byName[c.Path]; ok {
			c.VID = strings.ToLower(p.VID)
			c.PID = strings.ToLower(p.PID)
			c.Serial = p.SerialNumber
			c.Product = p.Product
		}
		out[i] = c
	}
	return out
}
