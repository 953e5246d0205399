package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/edgeo-scada/lsv2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// Global flags
	host      string
	port      int
	timeout   time.Duration
	outputFmt string
	verbose   bool
	noColor   bool
	safeMode  bool
	compat    bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lsv2cli",
	Short: "A command-line client for LSV2 CNC controllers",
	Long: `lsv2cli talks to CNC controllers over the LSV2 protocol.

Features:
  - Controller identification and system parameters
  - File transfer and remote file management
  - PLC memory and machine parameter access
  - Runtime status and continuous monitoring (watch mode)
  - Oscilloscope signal recording
  - Multiple output formats (table, json, yaml, csv)
  - Configuration file support

Examples:
  # Show controller versions and negotiated settings
  lsv2cli info -H 192.168.56.101

  # List the program directory
  lsv2cli ls TNC:/nc_prog -H 192.168.56.101

  # Upload a program
  lsv2cli put part.h TNC:/nc_prog/part.h

  # Read PLC words
  lsv2cli plc read W0 W2 W4 --safe-mode=false

  # Watch markers every 500ms
  lsv2cli watch M0 M1 M2 -i 500ms --safe-mode=false`,
	Version:       version,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		outputFmt = viper.GetString("output")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.lsv2cli.yaml)")

	// Connection flags
	rootCmd.PersistentFlags().StringVarP(&host, "host", "H", "localhost", "Controller host")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", lsv2.DefaultPort, "Controller port")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", lsv2.DefaultTimeout, "Operation timeout")
	rootCmd.PersistentFlags().BoolVar(&safeMode, "safe-mode", true, "Restrict logins and system commands to the read-only set")
	rootCmd.PersistentFlags().BoolVar(&compat, "compat", false, "Skip buffer size negotiation")

	// Output flags
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml, csv")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")

	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("safe-mode", rootCmd.PersistentFlags().Lookup("safe-mode"))

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(drivesCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(plcCmd)
	rootCmd.AddCommand(paramCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scopeCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".lsv2cli")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LSV2")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func getAddress() string {
	return net.JoinHostPort(viper.GetString("host"), strconv.Itoa(viper.GetInt("port")))
}

func createClient() (*lsv2.Client, error) {
	client, err := lsv2.NewClient(
		getAddress(),
		lsv2.WithTimeout(viper.GetDuration("timeout")),
		lsv2.WithSafeMode(viper.GetBool("safe-mode")),
		lsv2.WithCompatibilityMode(compat),
		lsv2.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// connectClient creates a client and runs the connection setup.
func connectClient(ctx context.Context) (*lsv2.Client, error) {
	client, err := createClient()
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return client, nil
}

// withClient connects, runs fn and closes the session again. Every read is
// bounded by the timeout flag; an interrupt cancels fn.
func withClient(fn func(ctx context.Context, client *lsv2.Client) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(ctx, client)
}
