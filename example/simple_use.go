package main

import (
	"fmt"

	"github.com/leandrodaf/midiport/internal/logger"
	"github.com/leandrodaf/midiport/sdk/contracts"
	"github.com/leandrodaf/midiport/sdk/midi"
)

func main() {
	log := logger.NewZapLogger()

	in, err := midi.NewInput(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithIgnoreFlags(contracts.IgnoreFlags{Timing: true, ActiveSensing: true}),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI input", log.Field().Error("error", err))
		return
	}

	count := in.PortCount()
	if count == 0 {
		log.Error("No MIDI input ports found")
		return
	}
	for i := 0; i < count; i++ {
		name, _ := in.PortName(i)
		fmt.Printf("%d: %s\n", i, name)
	}

	events := make(chan contracts.Message, 100)
	in.OnMessage(midi.ChannelSink(events, log))

	if err := in.OpenPort(0, "simple_use"); err != nil {
		log.Error("Failed to open MIDI input", log.Field().Error("error", err))
		return
	}
	defer in.ClosePort()

	fmt.Println("Capturing MIDI messages... Press Ctrl+C to exit.")
	for msg := range events {
		log.Info("MIDI message",
			log.Field().Float64("delta", msg.Timestamp),
			log.Field().String("bytes", fmt.Sprintf("% X", msg.Bytes)),
		)
	}
}
