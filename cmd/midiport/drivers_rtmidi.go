//go:build cgo && !nortmidi

package main

// Registers rtmidi as the gomidi driver used by --backend gomidi and by the
// auto backend on systems without a native binding.
import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
