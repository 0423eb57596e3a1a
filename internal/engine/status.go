package engine

// Status bytes the pipeline treats specially.
const (
	statusSysexStart   = 0xF0
	statusMTCQuarter   = 0xF1
	statusSongPosition = 0xF2
	statusSongSelect   = 0xF3
	statusSysexEnd     = 0xF7
	statusTimingClock  = 0xF8
	statusActiveSense  = 0xFE
)

// IsStatus reports whether b has the status bit set.
func IsStatus(b byte) bool { return b&0x80 != 0 }

// IsRealtime reports whether b is a single-byte system real-time status.
func IsRealtime(b byte) bool { return b >= statusTimingClock }

// MessageLength returns the length of the message introduced by status.
// Sysex start returns 0: its length is only known once 0xF7 arrives.
func MessageLength(status byte) int {
	switch {
	case status < 0x80:
		return 0
	case status < 0xC0:
		return 3
	case status < 0xE0:
		return 2
	case status < 0xF0:
		return 3
	}
	switch status {
	case statusSysexStart:
		return 0
	case statusMTCQuarter, statusSongSelect:
		return 2
	case statusSongPosition:
		return 3
	default:
		return 1
	}
}
