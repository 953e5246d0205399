// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/edgeo-scada/lsv2"
	"github.com/spf13/cobra"
)

var (
	watchInterval  time.Duration
	watchCount     int
	watchShowDiff  bool
	watchClearTerm bool
	watchTimestamp bool
	watchLogFile   string
)

var watchCmd = &cobra.Command{
	Use:   "watch <address...>",
	Short: "Continuously monitor PLC operands",
	Long: `Poll PLC operands at a fixed interval and show their values.

Features:
  - Change detection and highlighting
  - Logging to file (CSV format)
  - Timestamp display

Addresses use the same forms as "plc read". Reading PLC memory needs
safe mode disabled.`,
	Example: `  # Watch three markers every second
  lsv2cli watch M0 M1 M2 --safe-mode=false

  # Watch words and log the values
  lsv2cli watch W0 W2 -i 2s --log data.csv --safe-mode=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 1*time.Second, "Poll interval")
	watchCmd.Flags().IntVarP(&watchCount, "iterations", "n", 0, "Number of iterations (0 = infinite)")
	watchCmd.Flags().BoolVar(&watchShowDiff, "diff", false, "Highlight changed values")
	watchCmd.Flags().BoolVar(&watchClearTerm, "clear", true, "Clear terminal between updates")
	watchCmd.Flags().BoolVar(&watchTimestamp, "timestamp", true, "Show timestamps")
	watchCmd.Flags().StringVar(&watchLogFile, "log", "", "Log values to file (CSV format)")
}

type WatchState struct {
	client       *lsv2.Client
	ctx          context.Context
	cancel       context.CancelFunc
	addresses    []string
	prev         []any
	iteration    int
	logFile      *os.File
	logWriter    *csv.Writer
	startTime    time.Time
	errorCount   int
	successCount int
}

func runWatch(cmd *cobra.Command, args []string) error {
	for _, addr := range args {
		if kind, _ := lsv2.ResolveAddress(addr); kind == lsv2.MemoryNone {
			return fmt.Errorf("invalid address %q", addr)
		}
	}

	state, err := initWatchState(args)
	if err != nil {
		return err
	}
	defer state.cleanup()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	if err := state.readAndDisplay(); err != nil {
		outputWarning("Initial read failed: %v", err)
	}

	for {
		select {
		case <-sigCh:
			fmt.Println("\n\nStopping watch...")
			state.printSummary()
			return nil
		case <-ticker.C:
			if err := state.readAndDisplay(); err != nil {
				state.errorCount++
				if verbose {
					outputWarning("Read failed: %v", err)
				}
				if !state.client.IsConnected() {
					state.printSummary()
					return err
				}
			}
			if watchCount > 0 && state.iteration >= watchCount {
				state.printSummary()
				return nil
			}
		case <-state.ctx.Done():
			return state.ctx.Err()
		}
	}
}

func initWatchState(addresses []string) (*WatchState, error) {
	ctx, cancel := context.WithCancel(context.Background())

	client, err := connectClient(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	state := &WatchState{
		client:    client,
		ctx:       ctx,
		cancel:    cancel,
		addresses: addresses,
		startTime: time.Now(),
	}

	if watchLogFile != "" {
		f, err := os.Create(watchLogFile)
		if err != nil {
			state.cleanup()
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		state.logFile = f
		state.logWriter = csv.NewWriter(f)
	}

	return state, nil
}

func (s *WatchState) cleanup() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.client != nil {
		s.client.Close()
	}
	if s.logWriter != nil {
		s.logWriter.Flush()
	}
	if s.logFile != nil {
		s.logFile.Close()
	}
}

func (s *WatchState) read() ([]any, error) {
	values := make([]any, len(s.addresses))
	for i, addr := range s.addresses {
		v, err := s.client.ReadData(s.ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", addr, err)
		}
		values[i] = v
	}
	return values, nil
}

func (s *WatchState) readAndDisplay() error {
	values, err := s.read()
	if err != nil {
		return err
	}

	s.iteration++
	s.successCount++

	now := time.Now()

	if s.logWriter != nil {
		s.logToFile(now, values)
	}

	if outputFmt == "json" {
		s.prev = values
		return s.outputWatchJSON(values, now)
	}

	if watchClearTerm && s.iteration > 1 {
		fmt.Print("\033[H\033[2J")
	}

	fmt.Printf("%s - Watching %d operands\n", color(colorBold, "LSV2 WATCH"), len(s.addresses))
	fmt.Printf("Host: %s | Interval: %s\n", getAddress(), watchInterval)
	if watchTimestamp {
		fmt.Printf("Time: %s | Iteration: %d", now.Format("15:04:05.000"), s.iteration)
		if watchCount > 0 {
			fmt.Printf("/%d", watchCount)
		}
		fmt.Println()
	}
	fmt.Println(strings.Repeat("-", 60))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDR\tVALUE\tCHANGE")
	fmt.Fprintln(w, "----\t-----\t------")

	for i, v := range values {
		change := ""
		if watchShowDiff && s.prev != nil {
			change = describeChange(s.prev[i], v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.addresses[i], formatValue(v), change)
	}
	w.Flush()

	s.prev = values
	return nil
}

// describeChange renders the difference between two reads of one operand.
func describeChange(prev, cur any) string {
	switch c := cur.(type) {
	case bool:
		if p, ok := prev.(bool); ok && p != c {
			if c {
				return color(colorGreen, "->ON")
			}
			return color(colorRed, "->OFF")
		}
		return ""
	case uint8:
		return numericChange(int64(prev.(uint8)), int64(c))
	case uint16:
		return numericChange(int64(prev.(uint16)), int64(c))
	case uint32:
		return numericChange(int64(prev.(uint32)), int64(c))
	default:
		if fmt.Sprint(prev) != fmt.Sprint(cur) {
			return color(colorYellow, "changed")
		}
		return ""
	}
}

func numericChange(prev, cur int64) string {
	diff := cur - prev
	if diff > 0 {
		return color(colorGreen, fmt.Sprintf("+%d", diff))
	} else if diff < 0 {
		return color(colorRed, fmt.Sprintf("%d", diff))
	}
	return ""
}

func (s *WatchState) outputWatchJSON(values []any, ts time.Time) error {
	data := struct {
		Timestamp string         `json:"timestamp"`
		Iteration int            `json:"iteration"`
		Values    map[string]any `json:"values"`
	}{
		Timestamp: ts.Format(time.RFC3339Nano),
		Iteration: s.iteration,
		Values:    make(map[string]any, len(values)),
	}
	for i, v := range values {
		data.Values[s.addresses[i]] = v
	}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(data)
}

func (s *WatchState) logToFile(ts time.Time, values []any) {
	if s.iteration == 1 {
		s.logWriter.Write(append([]string{"timestamp"}, s.addresses...))
	}

	record := []string{ts.Format(time.RFC3339)}
	for _, v := range values {
		record = append(record, fmt.Sprint(v))
	}
	s.logWriter.Write(record)
	s.logWriter.Flush()
}

func (s *WatchState) printSummary() {
	duration := time.Since(s.startTime)
	fmt.Println()
	fmt.Println(color(colorBold, "Watch Summary"))
	fmt.Println(strings.Repeat("-", 30))
	fmt.Printf("Duration:    %s\n", duration.Round(time.Millisecond))
	fmt.Printf("Iterations:  %d\n", s.iteration)
	fmt.Printf("Success:     %d\n", s.successCount)
	fmt.Printf("Errors:      %d\n", s.errorCount)
	if s.iteration > 0 {
		fmt.Printf("Avg Rate:    %.2f reads/sec\n", float64(s.iteration)/duration.Seconds())
	}
}
