package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/edgeo-scada/lsv2"
	"github.com/spf13/cobra"
)

var (
	plcCount     int
	paramPersist bool
)

var plcCmd = &cobra.Command{
	Use:   "plc",
	Short: "Read PLC memory",
}

var plcReadCmd = &cobra.Command{
	Use:     "read <address...>",
	Aliases: []string{"r"},
	Short:   "Read PLC operands",
	Long: `Read PLC operands by address. Supported address forms:
  M<n>   marker          I<n>   input          O<n>   output
  B<n>   byte            W<n>   word           D<n>   double word
  S<n>   string          IW<n>  input word     OW<n>  output word
  ID<n>  input dword     OD<n>  output dword

Word and double word addresses are byte offsets. With --count the
following operands of the same space are read in one request.

Reading PLC memory needs the PLCDEBUG login, which safe mode blocks.`,
	Example: `  lsv2cli plc read M100 W20 --safe-mode=false
  lsv2cli plc read M0 -c 16 --safe-mode=false -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPLCRead,
}

var paramCmd = &cobra.Command{
	Use:   "param",
	Short: "Read or change machine parameters",
}

var paramGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Read a machine parameter",
	Args:  cobra.ExactArgs(1),
	RunE:  runParamGet,
}

var paramSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Change a machine parameter",
	Long: `Change a machine parameter. Without --persist the change is lost on
the next controller restart. Needs safe mode disabled.`,
	Args: cobra.ExactArgs(2),
	RunE: runParamSet,
}

func init() {
	plcCmd.AddCommand(plcReadCmd)
	plcReadCmd.Flags().IntVarP(&plcCount, "count", "c", 1, "Number of consecutive operands per address")

	paramCmd.AddCommand(paramGetCmd)
	paramCmd.AddCommand(paramSetCmd)
	paramSetCmd.Flags().BoolVar(&paramPersist, "persist", false, "Keep the value across restarts")
}

// PLCValue is one operand read by the plc command.
type PLCValue struct {
	Address string `json:"address" yaml:"address"`
	Kind    string `json:"kind" yaml:"kind"`
	Value   any    `json:"value" yaml:"value"`
}

func runPLCRead(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		var values []PLCValue
		for _, addr := range args {
			kind, index := lsv2.ResolveAddress(addr)
			if kind == lsv2.MemoryNone {
				return fmt.Errorf("invalid address %q", addr)
			}
			read, err := client.ReadPLCMemory(ctx, kind, index, plcCount)
			if err != nil {
				return fmt.Errorf("read %s failed: %w", addr, err)
			}
			for i, v := range read {
				values = append(values, PLCValue{
					Address: operandName(addr, kind, index+i),
					Kind:    kind.String(),
					Value:   v,
				})
			}
		}

		t := &table{title: "PLC Memory", header: []string{"ADDRESS", "KIND", "VALUE"}}
		for _, v := range values {
			t.add(v.Address, v.Kind, formatValue(v.Value))
		}
		return outputResult(values, t)
	})
}

// operandName rebuilds the address of element index of kind.
func operandName(addr string, kind lsv2.MemoryKind, index int) string {
	prefix := strings.TrimRight(addr, "0123456789")
	switch kind {
	case lsv2.MemoryWord, lsv2.MemoryInputWord, lsv2.MemoryOutputWord:
		index *= 2
	case lsv2.MemoryDWord, lsv2.MemoryInputDWord, lsv2.MemoryOutputDWord:
		index *= 4
	}
	return prefix + strconv.Itoa(index)
}

func runParamGet(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		value, err := client.MachineParameter(ctx, args[0])
		if err != nil {
			return fmt.Errorf("read parameter failed: %w", err)
		}
		result := map[string]string{"name": args[0], "value": value}
		return outputResult(result, keyValues("", "Name", args[0], "Value", value))
	})
}

func runParamSet(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		if err := client.SetMachineParameter(ctx, args[0], args[1], paramPersist); err != nil {
			return fmt.Errorf("write parameter failed: %w", err)
		}
		outputSuccess("%s = %s", args[0], args[1])
		return nil
	})
}
