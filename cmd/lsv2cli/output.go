package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func color(c, s string) string {
	if noColor {
		return s
	}
	return c + s + colorReset
}

func outputSuccess(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(color(colorGreen, "OK") + " " + msg)
}

func outputError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, color(colorRed, "ERROR")+" "+msg)
}

func outputWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, color(colorYellow, "WARN")+" "+msg)
}

// table is the tabular rendering of a result for the table and csv formats.
type table struct {
	title  string
	header []string
	rows   [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

// outputResult prints v as json or yaml, or t for the tabular formats.
func outputResult(v interface{}, t *table) error {
	switch outputFmt {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "csv":
		return outputCSV(t)
	default:
		return outputTable(t)
	}
}

func outputTable(t *table) error {
	if t.title != "" {
		fmt.Printf("\n%s\n", color(colorBold, t.title))
		fmt.Println(strings.Repeat("-", 60))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if len(t.header) > 0 {
		fmt.Fprintln(w, strings.Join(t.header, "\t"))
		dashes := make([]string, len(t.header))
		for i, h := range t.header {
			dashes[i] = strings.Repeat("-", len(h))
		}
		fmt.Fprintln(w, strings.Join(dashes, "\t"))
	}
	for _, row := range t.rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	return nil
}

func outputCSV(t *table) error {
	w := csv.NewWriter(os.Stdout)
	if len(t.header) > 0 {
		w.Write(t.header)
	}
	for _, row := range t.rows {
		w.Write(row)
	}
	w.Flush()
	return w.Error()
}

// keyValues builds a two column table.
func keyValues(title string, pairs ...string) *table {
	t := &table{title: title, header: []string{"FIELD", "VALUE"}}
	for i := 0; i+1 < len(pairs); i += 2 {
		t.add(pairs[i], pairs[i+1])
	}
	return t
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case bool:
		if val {
			return color(colorGreen, "ON")
		}
		return color(colorRed, "OFF")
	case uint16:
		return fmt.Sprintf("%d (0x%04X)", val, val)
	case uint32:
		return fmt.Sprintf("%d (0x%08X)", val, val)
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprint(val)
	}
}
