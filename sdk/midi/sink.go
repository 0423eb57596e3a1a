package midi

import "github.com/leandrodaf/midiport/sdk/contracts"

// ChannelSink adapts ch to a message callback. It never blocks the delivery
// goroutine: when ch is full the message is dropped with a warning.
func ChannelSink(ch chan<- contracts.Message, logger contracts.Logger) contracts.MessageCallback {
	return func(msg contracts.Message) {
		select {
		case ch <- msg:
		default:
			logger.Warn("MIDI message channel is full; message discarded",
				logger.Field().Int("size", len(msg.Bytes)))
		}
	}
}
