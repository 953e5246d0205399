package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgeo-scada/lsv2"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the machine runtime state",
	Long: `Show execution mode, program state, selected program, overrides,
current tool, axis positions, program stack and pending NC errors.

Items the controller does not support are reported as warnings.`,
	RunE: runStatus,
}

// MachineStatus is the result of the status command.
type MachineStatus struct {
	Execution string              `json:"execution,omitempty" yaml:"execution,omitempty"`
	Program   string              `json:"program_state,omitempty" yaml:"program_state,omitempty"`
	Selected  string              `json:"selected_program,omitempty" yaml:"selected_program,omitempty"`
	Overrides *lsv2.OverrideState `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Tool      *lsv2.ToolInfo      `json:"tool,omitempty" yaml:"tool,omitempty"`
	Axes      []lsv2.AxisPosition `json:"axes,omitempty" yaml:"axes,omitempty"`
	Stack     *lsv2.StackState    `json:"stack,omitempty" yaml:"stack,omitempty"`
	Errors    []*lsv2.NCError     `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// maxNCErrors bounds the error list walk.
const maxNCErrors = 64

func runStatus(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		var st MachineStatus
		warn := func(item string, err error) {
			outputWarning("%s: %v", item, err)
		}

		if v, err := client.ExecutionState(ctx); err != nil {
			warn("execution state", err)
		} else {
			st.Execution = v.String()
		}
		if v, err := client.ProgramState(ctx); err != nil {
			warn("program state", err)
		} else {
			st.Program = v.String()
		}
		if v, err := client.SelectedProgram(ctx); err != nil {
			warn("selected program", err)
		} else {
			st.Selected = v
		}
		if v, err := client.Overrides(ctx); err != nil {
			warn("overrides", err)
		} else {
			st.Overrides = v
		}
		if v, err := client.CurrentTool(ctx); err != nil {
			warn("tool", err)
		} else {
			st.Tool = v
		}
		if v, err := client.AxisLocation(ctx); err != nil {
			warn("axes", err)
		} else {
			st.Axes = v
		}
		if v, err := client.ProgramStack(ctx); err != nil {
			warn("program stack", err)
		} else {
			st.Stack = v
		}

		e, err := client.FirstError(ctx)
		for err == nil && e != nil && len(st.Errors) < maxNCErrors {
			st.Errors = append(st.Errors, e)
			e, err = client.NextError(ctx)
		}
		if err != nil {
			warn("nc errors", err)
		}

		if !client.IsConnected() {
			return fmt.Errorf("connection lost")
		}
		return outputResult(st, statusTable(&st))
	})
}

func statusTable(st *MachineStatus) *table {
	t := keyValues("Machine Status",
		"Execution", st.Execution,
		"Program", st.Program,
		"Selected", st.Selected,
	)
	if st.Overrides != nil {
		t.add("Overrides", fmt.Sprintf("feed %.0f%% spindle %.0f%% rapid %.0f%%",
			st.Overrides.Feed, st.Overrides.Spindle, st.Overrides.Rapid))
	}
	if st.Tool != nil {
		tool := fmt.Sprintf("T%d.%d axis %s", st.Tool.Number, st.Tool.Index, st.Tool.Axis)
		if st.Tool.Length != nil && st.Tool.Radius != nil {
			tool += fmt.Sprintf(" L=%.3f R=%.3f", *st.Tool.Length, *st.Tool.Radius)
		}
		t.add("Tool", tool)
	}
	if len(st.Axes) > 0 {
		axes := make([]string, len(st.Axes))
		for i, a := range st.Axes {
			axes[i] = fmt.Sprintf("%s=%.3f", a.Name, a.Value)
		}
		t.add("Axes", strings.Join(axes, " "))
	}
	if st.Stack != nil {
		t.add("Line", fmt.Sprintf("%d", st.Stack.Line))
		t.add("Main program", st.Stack.Main)
		t.add("Current program", st.Stack.Current)
	}
	for _, e := range st.Errors {
		t.add(color(colorRed, "Error"), fmt.Sprintf("%d/%d %d: %s", e.Class, e.Group, e.Number, e.Text))
	}
	return t
}
