package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/leandrodaf/midiport/internal/port"
	"github.com/leandrodaf/midiport/sdk/contracts"
	"github.com/leandrodaf/midiport/sdk/midi"
)

var (
	watchHardware bool
	watchVirtual  bool
	watchInterval time.Duration
	watchDuration time.Duration
)

var (
	addedFmt   = color.New(color.FgGreen).SprintFunc()
	removedFmt = color.New(color.FgRed).SprintFunc()
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report ports as they appear and disappear",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		report := func(sign, dir string) contracts.PortCallback {
			format := addedFmt
			if sign == "-" {
				format = removedFmt
			}
			return func(id contracts.PortIdentity) {
				fmt.Fprintf(w, "%s %-6s %s\n", format(sign), dir, id)
			}
		}

		opts, _, err := clientOptions(contracts.WithObserverConfig(contracts.ObserverConfig{
			InputAdded:    report("+", "input"),
			InputRemoved:  report("-", "input"),
			OutputAdded:   report("+", "output"),
			OutputRemoved: report("-", "output"),
			TrackHardware: watchHardware,
			TrackVirtual:  watchVirtual,
		}))
		if err != nil {
			return err
		}
		obs, err := midi.NewObserver(opts...)
		if err != nil {
			return err
		}
		defer obs.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if watchDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchDuration)
			defer cancel()
		}

		if err := obs.Run(ctx, watchInterval); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchHardware, "hardware", true, "Track hardware ports")
	watchCmd.Flags().BoolVar(&watchVirtual, "virtual", false, "Track virtual ports")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", port.DefaultPollInterval, "Polling interval")
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	rootCmd.AddCommand(watchCmd)
}
