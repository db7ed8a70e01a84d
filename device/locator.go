// Package device finds the serial endpoint of the USB adapter wired to the
// target chip.
//
// Detection is a pure filesystem query: pattern classes are globbed in
// order and the lexicographically first match of the first non-empty class
// wins. Nothing is cached, so callers may re-scan as often as they like to
// observe adapters being plugged in.
package device

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// PatternClass is an ordered adapter family. All patterns of a class are
// treated as one pool of candidates.
type PatternClass struct {
	// Name labels the class in listings ("A", "B").
	Name string `yaml:"name" json:"name"`
	// Patterns are filepath.Glob patterns.
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// Candidate is a device path found by a scan.
type Candidate struct {
	// Path is the device node.
	Path string `json:"path" yaml:"path"`
	// Class is the name of the pattern class that matched.
	Class string `json:"class" yaml:"class"`
	// Preferred marks the candidate Locate would return.
	Preferred bool `json:"preferred" yaml:"preferred"`
	// VID is the USB vendor ID, when enumeration could resolve it.
	VID string `json:"vid,omitempty" yaml:"vid,omitempty"`
	// PID is the USB product ID, when enumeration could resolve it.
	PID string `json:"pid,omitempty" yaml:"pid,omitempty"`
	// Serial is the USB serial number, when reported.
	Serial string `json:"serial,omitempty" yaml:"serial,omitempty"`
	// Product is the USB product string, when reported.
	Product string `json:"product,omitempty" yaml:"product,omitempty"`
}

// DefaultClasses returns the adapter classes for the running OS.
// Class A holds the USB-UART bridges (CH340, PL2303, FTDI) that STC boards
// ship with; class B holds CDC-ACM devices.
func DefaultClasses() []PatternClass {
	return defaultClassesFor(runtime.GOOS)
}

func defaultClassesFor(goos string) []PatternClass {
	switch goos {
	case "darwin":
		return []PatternClass{
			{Name: "A", Patterns: []string{"/dev/cu.wchusbserial*", "/dev/cu.usbserial*"}},
			{Name: "B", Patterns: []string{"/dev/cu.usbmodem*"}},
		}
	default:
		return []PatternClass{
			{Name: "A", Patterns: []string{"/dev/ttyUSB*"}},
			{Name: "B", Patterns: []string{"/dev/ttyACM*"}},
		}
	}
}

// Locator scans pattern classes for device nodes.
type Locator struct {
	classes []PatternClass
}

// NewLocator creates a locator over the given classes, in preference order.
// With no classes, DefaultClasses is used.
func NewLocator(classes ...PatternClass) *Locator {
	if len(classes) == 0 {
		classes = DefaultClasses()
	}
	return &Locator{classes: classes}
}

// Classes returns the configured pattern classes.
func (l *Locator) Classes() []PatternClass {
	return l.classes
}

// Locate returns the preferred device path, or false when nothing matches.
// It never blocks and never fails: unreadable directories and malformed
// patterns count as no match.
func (l *Locator) Locate() (string, bool) {
	for _, class := range l.classes {
		if matches := l.scan(class); len(matches) > 0 {
			return matches[0], true
		}
	}
	return "", false
}

// Exists reports whether an explicit device path is present. Directories
// never count as devices.
func (l *Locator) Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Candidates lists every match in class order, then name order.
// The first entry is the one Locate returns.
func (l *Locator) Candidates() []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	for _, class := range l.classes {
		for _, path := range l.scan(class) {
			if seen[path] {
				continue
			}
			seen[path] = true
			out = append(out, Candidate{Path: path, Class: class.Name})
		}
	}
	if len(out) > 0 {
		out[0].Preferred = true
	}
	return out
}

// scan returns the sorted, de-duplicated matches of one class.
func (l *Locator) scan(class PatternClass) []string {
	seen := make(map[string]bool)
	var matches []string
	for _, pattern := range class.Patterns {
		found, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range found {
			if !seen[m] {
				seen[m] = true
				matches = append(matches, m)
			}
		}
	}
	sort.Strings(matches)
	return matches
}
