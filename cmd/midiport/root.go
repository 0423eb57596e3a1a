package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gopkg.in/yaml.v3"

	"github.com/leandrodaf/midiport/internal/logger"
	"github.com/leandrodaf/midiport/internal/midi/gomididrv"
	"github.com/leandrodaf/midiport/internal/midi/loopback"
	"github.com/leandrodaf/midiport/internal/midi/mididarwin"
	"github.com/leandrodaf/midiport/internal/midi/midiwindows"
	"github.com/leandrodaf/midiport/sdk/contracts"
	"github.com/leandrodaf/midiport/sdk/midi"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	// Global flags
	outputFormat string
	backendName  string
	clientName   string
	logLevel     string

	// loopbackBus backs --backend loopback for the lifetime of the process.
	loopbackBus *loopback.Bus
)

var rootCmd = &cobra.Command{
	Use:   "midiport",
	Short: "Inspect and drive MIDI ports",
	Long: `midiport lists MIDI ports, prints incoming messages, sends raw bytes or
UMP words, and watches ports being plugged and unplugged.

Backends: auto (CoreMIDI on macOS, WinMM on Windows, gomidi elsewhere),
coremidi, winmm, gomidi, loopback.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "auto", "MIDI backend: auto, coremidi, winmm, gomidi, loopback")
	rootCmd.PersistentFlags().StringVar(&clientName, "client-name", contracts.DefaultClientName, "Native client name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func parseLogLevel(s string) (contracts.LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return contracts.DebugLevel, nil
	case "info":
		return contracts.InfoLevel, nil
	case "warn", "warning":
		return contracts.WarnLevel, nil
	case "error":
		return contracts.ErrorLevel, nil
	}
	return 0, fmt.Errorf("unknown log level: %s", s)
}

// openPlatform builds the backend named by --backend.
func openPlatform(log contracts.Logger) (contracts.Platform, error) {
	base := &contracts.ClientOptions{Logger: log, ClientName: clientName}
	switch backendName {
	case "auto":
		return midi.NewPlatform(base)
	case "coremidi":
		return mididarwin.NewPlatform(base)
	case "winmm":
		return midiwindows.NewPlatform(base)
	case "gomidi":
		drv := drivers.Get()
		if drv == nil {
			return nil, fmt.Errorf("no gomidi driver registered: %w", contracts.ErrUnsupported)
		}
		return gomididrv.New(drv, log), nil
	case "loopback":
		if loopbackBus == nil {
			loopbackBus = loopback.New(loopback.WithClientName(clientName))
		}
		return loopbackBus, nil
	}
	return nil, fmt.Errorf("unknown backend: %s", backendName)
}

// clientOptions returns the options shared by every command, extra last,
// and the logger they carry.
func clientOptions(extra ...contracts.Option) ([]contracts.Option, contracts.Logger, error) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewZapLogger()
	log.SetLevel(level)

	platform, err := openPlatform(log)
	if err != nil {
		return nil, nil, err
	}
	opts := []contracts.Option{
		contracts.WithLogger(log),
		contracts.WithLogLevel(level),
		contracts.WithClientName(clientName),
		contracts.WithPlatform(platform),
	}
	return append(opts, extra...), log, nil
}

// formatOutput writes data as JSON or YAML. It reports false for table
// output, which each command renders itself.
func formatOutput(w io.Writer, data interface{}) (bool, error) {
	switch outputFormat {
	case "json":
		return true, outputJSON(w, data)
	case "yaml":
		return true, outputYAML(w, data)
	case "table", "":
		return false, nil
	}
	return true, fmt.Errorf("unknown output format: %s", outputFormat)
}

func outputJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func outputYAML(w io.Writer, data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
