// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cosnicolaou/director/director"
	"github.com/cosnicolaou/director/directortelnet"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	hostFlag   string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "directord.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to a .env file (ignored if missing)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "amplifier host, overrides the configuration file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadDotEnv(envFile)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(sourceCmd)

	validateCmd.Flags().Bool("probe", false, "also connect to the amplifier and fetch its status")
}

// loadDotEnv loads environment variables from path. Missing files are
// ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := director.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if hostFlag != "" {
			cfg.Host = hostFlag
		}
		topics := director.NewTopics(cfg.MQTT.TopicPrefix, cfg.UniqueID)
		pub, err := director.ConnectMQTT(cfg.MQTT, topics.BridgeAvailability(), logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		coord := director.NewCoordinator(cfg.DialFunc(logger), cfg.Poll, logger)
		bridge := director.NewBridge(cfg, coord, pub, logger)
		logger.Info("starting bridge", "host", cfg.Host, "broker", cfg.MQTT.Broker)
		return bridge.Run(cmd.Context())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := director.LoadConfig(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("%v: ok\n", configPath)
		if probe, _ := cmd.Flags().GetBool("probe"); !probe {
			return nil
		}
		status, err := director.Probe(cmd.Context(), cfg.Host, cfg.ClientOptions()...)
		if err != nil {
			return err
		}
		fmt.Printf("%v: %v, %v outputs\n", cfg.Host, status.Name, len(status.Outputs))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the amplifier status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := oneShotClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		status, err := client.GetSystemStatus(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%v (%v)\n", status.Name, status.Model)
		for _, id := range status.OutputIDs() {
			fmt.Printf("  %v\n", status.Outputs[id])
		}
		return nil
	},
}

var powerCmd = &cobra.Command{
	Use:   "power <output> on|off",
	Short: "Turn an output on or off",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := parseOutput(args[0])
		if err != nil {
			return err
		}
		var on bool
		switch args[1] {
		case "on":
			on = true
		case "off":
		default:
			return fmt.Errorf("power state must be on or off, got %q", args[1])
		}
		client, err := oneShotClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		return client.SetOutputPower(cmd.Context(), out, on)
	},
}

var volumeCmd = &cobra.Command{
	Use:   "volume <output> <level>",
	Short: "Set an output's volume (0-100)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := parseOutput(args[0])
		if err != nil {
			return err
		}
		volume, err := strconv.Atoi(args[1])
		if err != nil || volume < 0 || volume > directortelnet.MaxVolume {
			return fmt.Errorf("volume must be 0..%v, got %q", directortelnet.MaxVolume, args[1])
		}
		client, err := oneShotClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		return client.SetOutputVolume(cmd.Context(), out, volume)
	},
}

var sourceCmd = &cobra.Command{
	Use:   "source <output> <input>",
	Short: "Route an input to an output",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := parseOutput(args[0])
		if err != nil {
			return err
		}
		in, err := parseInput(args[1])
		if err != nil {
			return err
		}
		client, err := oneShotClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		return client.MapInputToOutput(cmd.Context(), in, out)
	},
}

func parseOutput(s string) (directortelnet.OutputID, error) {
	n, err := strconv.Atoi(s)
	if err != nil || !directortelnet.OutputID(n).Valid() {
		return 0, fmt.Errorf("output must be 1..%v, got %q", directortelnet.NumOutputs, s)
	}
	return directortelnet.OutputID(n), nil
}

func parseInput(s string) (directortelnet.InputID, error) {
	if in, ok := directortelnet.InputByName(s); ok {
		return in, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !directortelnet.InputID(n).Valid() {
		return 0, fmt.Errorf("input must be 1..%v or an input name, got %q", directortelnet.NumInputs, s)
	}
	return directortelnet.InputID(n), nil
}

// oneShotClient connects for a single command, preferring --host over the
// configured host. The configuration file is optional when --host is
// given.
func oneShotClient(ctx context.Context) (*directortelnet.Client, error) {
	host := hostFlag
	var opts []directortelnet.ClientOption
	if cfg, err := director.LoadConfig(configPath); err == nil {
		if host == "" {
			host = cfg.Host
		}
		opts = cfg.ClientOptions()
	} else if host == "" {
		return nil, err
	}
	client, err := directortelnet.NewClient(host, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
