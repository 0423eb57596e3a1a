// Command midiport lists, monitors, drives and watches MIDI ports.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
