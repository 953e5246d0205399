package main

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/edgeo-scada/lsv2"
	"github.com/spf13/cobra"
)

var (
	fileText      bool
	fileForce     bool
	rmDirectories bool
)

var lsCmd = &cobra.Command{
	Use:     "ls [dir]",
	Aliases: []string{"dir", "list"},
	Short:   "List a directory on the controller",
	Example: `  lsv2cli ls TNC:/nc_prog
  lsv2cli ls -o csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var drivesCmd = &cobra.Command{
	Use:   "drives",
	Short: "List the controller drives",
	RunE:  runDrives,
}

var getCmd = &cobra.Command{
	Use:   "get <remote> [local]",
	Short: "Download a file from the controller",
	Example: `  lsv2cli get TNC:/nc_prog/part.h
  lsv2cli get TNC:/nc_prog/part.h ./backup/part.h --text --force`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

var putCmd = &cobra.Command{
	Use:   "put <local> <remote>",
	Short: "Upload a file to the controller",
	Long: `Upload a local file. Missing remote directories are created. An
existing remote file is only replaced with --force.`,
	Example: `  lsv2cli put part.h TNC:/nc_prog/part.h --force`,
	Args:    cobra.ExactArgs(2),
	RunE:    runPut,
}

var rmCmd = &cobra.Command{
	Use:   "rm <path...>",
	Short: "Delete files or directories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <dir...>",
	Short: "Create directories, including missing parents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMkdir,
}

func init() {
	for _, cmd := range []*cobra.Command{getCmd, putCmd} {
		cmd.Flags().BoolVar(&fileText, "text", false, "Transfer in text mode")
	}
	getCmd.Flags().BoolVarP(&fileForce, "force", "f", false, "Replace an existing local file")
	putCmd.Flags().BoolVarP(&fileForce, "force", "f", false, "Replace an existing remote file")
	rmCmd.Flags().BoolVarP(&rmDirectories, "dir", "d", false, "Delete directories instead of files")
}

func transferOptions() lsv2.TransferOptions {
	opts := lsv2.TransferOptions{Mode: lsv2.ModeBinary, Override: fileForce}
	if fileText {
		opts.Mode = lsv2.ModeText
	}
	return opts
}

func runLs(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		entries, err := client.DirectoryContent(ctx, dir)
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}

		t := &table{title: dir, header: []string{"NAME", "SIZE", "MODIFIED", "FLAGS"}}
		for _, e := range entries {
			name := e.Name
			if e.IsDirectory {
				name = color(colorCyan, name+"/")
			}
			t.add(name, fmt.Sprintf("%d", e.Size), e.Modified.Format("2006-01-02 15:04:05"), fileFlags(e))
		}
		return outputResult(entries, t)
	})
}

func fileFlags(e *lsv2.FileEntry) string {
	var b strings.Builder
	for _, f := range []struct {
		set bool
		c   byte
	}{
		{e.IsDirectory, 'd'},
		{e.IsDrive, 'v'},
		{e.Protected, 'p'},
		{e.Hidden, 'h'},
		{e.Selected, 's'},
	} {
		if f.set {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func runDrives(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		drives, err := client.Drives(ctx)
		if err != nil {
			return fmt.Errorf("list drives failed: %w", err)
		}
		t := &table{title: "Drives", header: []string{"NAME", "UNIT", "TYPE"}}
		for _, d := range drives {
			t.add(d.Name, fmt.Sprintf("%d", d.Unit), d.Type)
		}
		return outputResult(drives, t)
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	remote := args[0]
	local := path.Base(strings.ReplaceAll(remote, `\`, "/"))
	if len(args) > 1 {
		local = args[1]
	}

	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		if err := client.DownloadFile(ctx, remote, local, transferOptions()); err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		outputSuccess("%s -> %s", remote, local)
		return nil
	})
}

func runPut(cmd *cobra.Command, args []string) error {
	local, remote := args[0], args[1]
	if strings.HasSuffix(remote, "/") {
		remote += filepath.Base(local)
	}

	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		if err := client.UploadFile(ctx, local, remote, transferOptions()); err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		outputSuccess("%s -> %s", local, remote)
		return nil
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		for _, p := range args {
			var err error
			if rmDirectories {
				err = client.DeleteDirectory(ctx, p)
			} else {
				err = client.DeleteFile(ctx, p)
			}
			if err != nil {
				return fmt.Errorf("delete %s failed: %w", p, err)
			}
			outputSuccess("deleted %s", p)
		}
		return nil
	})
}

func runMkdir(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *lsv2.Client) error {
		for _, dir := range args {
			if err := client.MakeDirectory(ctx, dir); err != nil {
				return fmt.Errorf("mkdir %s failed: %w", dir, err)
			}
			outputSuccess("created %s", dir)
		}
		return nil
	})
}
