package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/leandrodaf/midiport/sdk/contracts"
	"github.com/leandrodaf/midiport/sdk/midi"
)

var (
	monitorPort     int
	monitorVirtual  string
	monitorSysex    bool
	monitorTiming   bool
	monitorSensing  bool
	monitorDuration time.Duration
	monitorBuffer   int
)

var (
	timeFmt  = color.New(color.Faint).SprintFunc()
	bytesFmt = color.New(color.FgCyan).SprintFunc()
	warnFmt  = color.New(color.FgYellow).SprintFunc()
	errFmt   = color.New(color.FgRed, color.Bold).SprintFunc()
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print incoming messages with their timestamps",
	Long: `monitor opens an input port (or creates a virtual one with --virtual) and
prints every message it receives until interrupted. Timestamps are seconds
since the first message. Sysex, timing and active sensing are dropped unless
the matching flag is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		errOut := cmd.ErrOrStderr()
		opts, log, err := clientOptions(
			contracts.WithIgnoreFlags(contracts.IgnoreFlags{
				Sysex:         !monitorSysex,
				Timing:        !monitorTiming,
				ActiveSensing: !monitorSensing,
			}),
			contracts.WithWarningCallback(func(err error) {
				fmt.Fprintln(errOut, warnFmt("warning:"), err)
			}),
			contracts.WithErrorCallback(func(err error) {
				fmt.Fprintln(errOut, errFmt("error:"), err)
			}),
		)
		if err != nil {
			return err
		}

		in, err := midi.NewInput(opts...)
		if err != nil {
			return err
		}
		ch := make(chan contracts.Message, monitorBuffer)
		in.OnMessage(midi.ChannelSink(ch, log))

		if monitorVirtual != "" {
			err = in.OpenVirtualPort(monitorVirtual)
		} else {
			err = in.OpenPort(monitorPort, "midiport monitor")
		}
		if err != nil {
			return err
		}
		defer in.ClosePort()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if monitorDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, monitorDuration)
			defer cancel()
		}
		return printMessages(ctx, w, ch)
	},
}

// printMessages writes messages from ch until ctx is done.
func printMessages(ctx context.Context, w io.Writer, ch <-chan contracts.Message) error {
	var elapsed float64
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			elapsed += msg.Timestamp
			fmt.Fprintln(w, formatMessage(elapsed, msg))
		}
	}
}

// formatMessage renders one message as "elapsed  bytes  description".
func formatMessage(elapsed float64, msg contracts.Message) string {
	return fmt.Sprintf("%s  %s  %s",
		timeFmt(fmt.Sprintf("%12.6f", elapsed)),
		bytesFmt(fmt.Sprintf("% X", msg.Bytes)),
		gomidi.Message(msg.Bytes).String())
}

func init() {
	monitorCmd.Flags().IntVarP(&monitorPort, "port", "p", 0, "Input port index (see `midiport list`)")
	monitorCmd.Flags().StringVar(&monitorVirtual, "virtual", "", "Create a virtual input with this name instead")
	monitorCmd.Flags().BoolVar(&monitorSysex, "sysex", false, "Show system exclusive messages")
	monitorCmd.Flags().BoolVar(&monitorTiming, "timing", false, "Show timing clock and MTC quarter frames")
	monitorCmd.Flags().BoolVar(&monitorSensing, "active-sensing", false, "Show active sensing")
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	monitorCmd.Flags().IntVar(&monitorBuffer, "buffer", 256, "Messages queued before new ones are dropped")
	rootCmd.AddCommand(monitorCmd)
}
