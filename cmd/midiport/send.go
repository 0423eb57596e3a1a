package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leandrodaf/midiport/sdk/contracts"
	"github.com/leandrodaf/midiport/sdk/midi"
)

var (
	sendPort    int
	sendVirtual string
	sendUMP     bool
)

var sendCmd = &cobra.Command{
	Use:   "send HEX...",
	Short: "Send raw MIDI bytes or UMP words to an output port",
	Long: `send writes one message to an output port. Bytes are hexadecimal and may
be split across arguments:

  midiport send 90 3C 7F
  midiport send F07E7F0601F7

With --ump every argument is one 32-bit UMP word:

  midiport send --ump 20903C7F`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data  []byte
			words []uint32
			err   error
		)
		if sendUMP {
			words, err = parseWords(args)
		} else {
			data, err = parseBytes(args)
		}
		if err != nil {
			return err
		}

		opts, _, err := clientOptions()
		if err != nil {
			return err
		}
		out, err := midi.NewOutput(opts...)
		if err != nil {
			return err
		}
		if sendVirtual != "" {
			err = out.OpenVirtualPort(sendVirtual)
		} else {
			err = out.OpenPort(sendPort, "midiport send")
		}
		if err != nil {
			return err
		}
		defer out.ClosePort()

		if sendUMP {
			return out.SendUMP(words)
		}
		return out.SendMessage(data)
	},
}

// parseBytes decodes hexadecimal arguments into one byte slice.
func parseBytes(args []string) ([]byte, error) {
	data, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrInvalidParameter, err)
	}
	return data, nil
}

// parseWords decodes one 32-bit hexadecimal word per argument.
func parseWords(args []string) ([]uint32, error) {
	words := make([]uint32, 0, len(args))
	for _, a := range args {
		w, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(a), "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: UMP word %q: %v", contracts.ErrInvalidParameter, a, err)
		}
		words = append(words, uint32(w))
	}
	return words, nil
}

func init() {
	sendCmd.Flags().IntVarP(&sendPort, "port", "p", 0, "Output port index (see `midiport list`)")
	sendCmd.Flags().StringVar(&sendVirtual, "virtual", "", "Create a virtual output with this name instead")
	sendCmd.Flags().BoolVar(&sendUMP, "ump", false, "Arguments are 32-bit UMP words")
	rootCmd.AddCommand(sendCmd)
}
