package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/leandrodaf/midiport/sdk/contracts"
	"github.com/leandrodaf/midiport/sdk/midi"
)

// portRow is one line of `midiport list`.
type portRow struct {
	Direction    string `json:"direction" yaml:"direction"`
	Index        int    `json:"index" yaml:"index"`
	Name         string `json:"name" yaml:"name"`
	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Device       string `json:"device,omitempty" yaml:"device,omitempty"`
	Client       uint64 `json:"client" yaml:"client"`
	Port         uint64 `json:"port" yaml:"port"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List input and output ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, _, err := clientOptions()
		if err != nil {
			return err
		}
		in, err := midi.NewInput(opts...)
		if err != nil {
			return err
		}
		out, err := midi.NewOutput(opts...)
		if err != nil {
			return err
		}

		var rows []portRow
		for _, side := range []struct {
			dir  string
			port contracts.Port
		}{{"input", in}, {"output", out}} {
			p, dir := side.port, side.dir
			ids, err := p.Ports()
			if err != nil {
				return err
			}
			for i, id := range ids {
				name, err := p.PortName(i)
				if err != nil {
					name = id.Name()
				}
				rows = append(rows, portRow{
					Direction:    dir,
					Index:        i,
					Name:         name,
					Manufacturer: id.Manufacturer,
					Device:       id.DeviceName,
					Client:       uint64(id.Client),
					Port:         uint64(id.Port),
				})
			}
		}

		w := cmd.OutOrStdout()
		if handled, err := formatOutput(w, rows); handled {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(w, "No MIDI ports found.")
			return nil
		}

		bold := color.New(color.Bold).SprintFunc()
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, bold("DIR")+"\t"+bold("#")+"\t"+bold("NAME")+"\t"+bold("MANUFACTURER"))
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Direction, r.Index, r.Name, r.Manufacturer)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
