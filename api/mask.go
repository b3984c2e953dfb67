// File: api/mask.go
// Package api defines the shared contracts of the fhem-modules I/O core.
// License: Apache-2.0

package api

// Mask is a set of readiness classes. The same type describes both the
// interest registered with a Multiplexer and the ready set it reports.
type Mask uint8

const (
	// MaskRead marks interest in (or readiness of) inbound data.
	MaskRead Mask = 1 << iota
	// MaskWrite marks interest in (or readiness of) outbound capacity.
	MaskWrite
	// MaskExcept marks interest in (or readiness of) exceptional conditions,
	// such as urgent out-of-band data on a secondary descriptor.
	MaskExcept
)

// Has reports whether every bit of b is set in m.
func (m Mask) Has(b Mask) bool { return m&b == b }

// String renders the mask as "rwe" flags for logging.
func (m Mask) String() string {
	if m == 0 {
		return "-"
	}
	buf := make([]byte, 0, 3)
	if m&MaskRead != 0 {
		buf = append(buf, 'r')
	}
	if m&MaskWrite != 0 {
		buf = append(buf, 'w')
	}
	if m&MaskExcept != 0 {
		buf = append(buf, 'e')
	}
	return string(buf)
}
