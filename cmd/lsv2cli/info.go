package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edgeo-scada/lsv2"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:     "info",
	Aliases: []string{"probe", "version"},
	Short:   "Show controller information",
	Long: `Connect to a controller and show what the connection setup found:
  - Control type and version strings
  - Negotiated telegram buffer size
  - Secure file send support
  - Granted logins and setup latency`,
	Example: `  lsv2cli info -H 192.168.56.101
  lsv2cli info -H 10.0.0.50 -o json`,
	RunE: runInfo,
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Show the controller system parameters",
	Long:  `Read the system parameter record (R_PR): PLC memory layout, block length and scope capabilities.`,
	RunE:  runParams,
}

// ControllerInfo is the result of the info command.
type ControllerInfo struct {
	Address        string            `json:"address" yaml:"address"`
	Versions       *lsv2.VersionInfo `json:"versions" yaml:"versions"`
	BufferSize     int               `json:"buffer_size" yaml:"buffer_size"`
	SecureFileSend bool              `json:"secure_file_send" yaml:"secure_file_send"`
	SafeMode       bool              `json:"safe_mode" yaml:"safe_mode"`
	Logins         []lsv2.Login      `json:"logins" yaml:"logins"`
	SetupTimeMs    int64             `json:"setup_time_ms" yaml:"setup_time_ms"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	start := time.Now()
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		setup := time.Since(start)

		versions, err := client.Versions(ctx, false)
		if err != nil {
			return fmt.Errorf("read versions failed: %w", err)
		}

		info := ControllerInfo{
			Address:        client.Address(),
			Versions:       versions,
			BufferSize:     client.BufferSize(),
			SecureFileSend: client.SecureFileSend(),
			SafeMode:       client.SafeMode(),
			Logins:         client.ActiveLogins(),
			SetupTimeMs:    setup.Milliseconds(),
		}

		logins := make([]string, len(info.Logins))
		for i, l := range info.Logins {
			logins[i] = string(l)
		}
		secure := color(colorYellow, "no")
		if info.SecureFileSend {
			secure = color(colorGreen, "yes")
		}

		t := keyValues("Controller Information",
			"Address", info.Address,
			"Control", versions.Control,
			"Type", versions.Type.String(),
			"NC version", versions.NC,
			"PLC version", versions.PLC,
			"Options", versions.Options,
			"ID", versions.ID,
			"Release", versions.Release,
			"Safety PLC", versions.SafetyPLC,
			"Buffer size", fmt.Sprintf("%d", info.BufferSize),
			"Secure send", secure,
			"Safe mode", fmt.Sprintf("%t", info.SafeMode),
			"Logins", strings.Join(logins, ", "),
			"Setup time", fmt.Sprintf("%dms", setup.Milliseconds()),
		)
		return outputResult(info, t)
	})
}

func runParams(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		p, err := client.SystemParameters(ctx, false)
		if err != nil {
			return fmt.Errorf("read system parameters failed: %w", err)
		}

		area := func(start, count uint32) string {
			return fmt.Sprintf("0x%08X x %d", start, count)
		}
		t := keyValues("System Parameters",
			"Markers", area(p.MarkersStart, p.MarkersCount),
			"Inputs", area(p.InputsStart, p.InputsCount),
			"Outputs", area(p.OutputsStart, p.OutputsCount),
			"Counters", area(p.CountersStart, p.CountersCount),
			"Timers", area(p.TimersStart, p.TimersCount),
			"Words", area(p.WordsStart, p.WordsCount),
			"Strings", area(p.StringsStart, p.StringsCount),
			"Max string length", fmt.Sprintf("%d", p.MaxStringLength),
			"Input words", area(p.InputWordsStart, p.InputWordsCount),
			"Output words", area(p.OutputWordsStart, p.OutputWordsCount),
			"LSV2 version", fmt.Sprintf("%d (flags 0x%02X, ext 0x%08X)", p.LSV2Version, p.LSV2VersionFlags, p.LSV2VersionFlagsEx),
			"Max block length", fmt.Sprintf("%d", p.MaxBlockLength),
			"Binary version", fmt.Sprintf("%d.%d", p.BinaryVersion, p.BinaryRevision),
			"ISO version", fmt.Sprintf("%d.%d", p.ISOVersion, p.ISORevision),
			"Hardware version", fmt.Sprintf("%d", p.HardwareVersion),
			"Max trace lines", fmt.Sprintf("%d", p.MaxTraceLines),
			"Scope channels", fmt.Sprintf("%d", p.ScopeChannels),
		)
		return outputResult(p, t)
	})
}
