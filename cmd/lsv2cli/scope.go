package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edgeo-scada/lsv2"
	"github.com/spf13/cobra"
)

var (
	scopeSignalSpecs []string
	scopeInterval    uint32
	scopeSamples     int
	scopeDuration    time.Duration
	scopeOut         string
)

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Oscilloscope signal recording",
}

var scopeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "signals"},
	Short:   "List the available scope signals",
	RunE:    runScopeList,
}

var scopeRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record scope signals to CSV",
	Long: `Select signals, start a recording and write every sample in physical
units. Recording stops after --samples samples, after --duration, or on
Ctrl+C.`,
	Example: `  lsv2cli scope record -s 0:0 -s 2:1 --interval 3000 --samples 10000 --out trace.csv`,
	RunE:    runScopeRecord,
}

func init() {
	scopeCmd.AddCommand(scopeListCmd)
	scopeCmd.AddCommand(scopeRecordCmd)

	scopeRecordCmd.Flags().StringArrayVarP(&scopeSignalSpecs, "signal", "s", nil, "Signal to record as channel:signal (repeatable)")
	scopeRecordCmd.Flags().Uint32Var(&scopeInterval, "interval", 3000, "Sampling interval in microseconds")
	scopeRecordCmd.Flags().IntVar(&scopeSamples, "samples", 0, "Stop after this many samples per signal (0 = unlimited)")
	scopeRecordCmd.Flags().DurationVar(&scopeDuration, "duration", 0, "Stop after this duration (0 = unlimited)")
	scopeRecordCmd.Flags().StringVar(&scopeOut, "out", "", "Output file (default: stdout)")
	scopeRecordCmd.MarkFlagRequired("signal")
}

func runScopeList(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		signals, err := client.ScopeSignals(ctx)
		if err != nil {
			return fmt.Errorf("read scope signals failed: %w", err)
		}
		t := &table{title: "Scope Signals", header: []string{"ID", "CHANNEL", "TYPE", "SIGNAL", "MIN INTERVAL"}}
		for _, s := range signals {
			t.add(fmt.Sprintf("%d:%d", s.Channel, s.Signal), s.ChannelName, s.ChannelType.String(),
				s.SignalName, fmt.Sprintf("%dus", s.MinInterval))
		}
		return outputResult(signals, t)
	})
}

func parseSignalSpec(spec string) (channel, signal uint16, err error) {
	ch, sig, ok := strings.Cut(spec, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid signal %q, want channel:signal", spec)
	}
	c, err := strconv.ParseUint(ch, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid channel in %q: %w", spec, err)
	}
	s, err := strconv.ParseUint(sig, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid signal in %q: %w", spec, err)
	}
	return uint16(c), uint16(s), nil
}

func selectSignals(all []*lsv2.ScopeSignal) ([]*lsv2.ScopeSignal, error) {
	selected := make([]*lsv2.ScopeSignal, 0, len(scopeSignalSpecs))
	for _, spec := range scopeSignalSpecs {
		ch, sig, err := parseSignalSpec(spec)
		if err != nil {
			return nil, err
		}
		var found *lsv2.ScopeSignal
		for _, s := range all {
			if s.Channel == ch && s.Signal == sig {
				found = s
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("signal %s not available", spec)
		}
		selected = append(selected, found)
	}
	return selected, nil
}

func runScopeRecord(cmd *cobra.Command, args []string) error {
	out := os.Stdout
	if scopeOut != "" {
		f, err := os.Create(scopeOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		all, err := client.ScopeSignals(ctx)
		if err != nil {
			return fmt.Errorf("read scope signals failed: %w", err)
		}
		signals, err := selectSignals(all)
		if err != nil {
			return err
		}
		if err := client.SelectScopeSignals(ctx, signals, scopeInterval); err != nil {
			return fmt.Errorf("select signals failed: %w", err)
		}
		if err := client.ScopeSignalDetails(ctx, signals); err != nil {
			return fmt.Errorf("read signal details failed: %w", err)
		}

		if scopeDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, scopeDuration)
			defer cancel()
		}

		w := csv.NewWriter(out)
		defer w.Flush()

		header := []string{"time_us"}
		for _, s := range signals {
			name := s.SignalName
			if s.Unit != "" {
				name += " [" + s.Unit + "]"
			}
			header = append(header, name)
		}
		if err := w.Write(header); err != nil {
			return err
		}

		written := 0
		var writeErr error
		err = client.StreamScope(ctx, signals, func(r *lsv2.ScopeReading) bool {
			for i := range r.Samples[0] {
				row := make([]string, 0, len(signals)+1)
				ts := uint64(r.Timestamp) + uint64(i)*uint64(scopeInterval)
				row = append(row, strconv.FormatUint(ts, 10))
				for j, s := range signals {
					row = append(row, strconv.FormatFloat(s.Apply(r.Samples[j][i]), 'g', -1, 64))
				}
				if writeErr = w.Write(row); writeErr != nil {
					return false
				}
				written++
				if scopeSamples > 0 && written >= scopeSamples {
					return false
				}
			}
			return true
		})
		w.Flush()

		if writeErr != nil {
			return writeErr
		}
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("recording failed: %w", err)
		}
		logger.Info("recording finished", "samples", written)
		return w.Error()
	})
}
