// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/cosnicolaou/director/director"
	"github.com/cosnicolaou/director/directortelnet"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively create a configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if force, _ := cmd.Flags().GetBool("force"); !force {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%v already exists, use --force to overwrite", configPath)
			}
		}
		cfg, err := runSetupWizard(cmd.Context())
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(setupConfig(cfg))
		if err != nil {
			return err
		}
		if err := os.WriteFile(configPath, data, 0o600); err != nil {
			return err
		}
		fmt.Printf("Wrote %v\n", configPath)
		return nil
	},
}

func init() {
	setupCmd.Flags().Bool("force", false, "overwrite an existing configuration file")
	rootCmd.AddCommand(setupCmd)
}

// runSetupWizard walks through host, identity and broker settings. The
// host must answer a status probe before the wizard moves on.
func runSetupWizard(ctx context.Context) (*director.Config, error) {
	var cfg director.Config
	status, err := wizardHost(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	if err := wizardIdentity(&cfg, status); err != nil {
		return nil, err
	}
	if err := wizardBroker(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func wizardHost(ctx context.Context, cfg *director.Config) (*directortelnet.SystemStatus, error) {
	for {
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Amplifier hostname or IP").
				Value(&cfg.Host).
				Validate(func(s string) error {
					if !director.ValidHostname(s) {
						return fmt.Errorf("not a valid hostname")
					}
					return nil
				}),
		)).Run(); err != nil {
			return nil, err
		}

		var status *directortelnet.SystemStatus
		var probeErr error
		if err := spinner.New().
			Title(fmt.Sprintf("Probing %v...", cfg.Host)).
			Action(func() {
				status, probeErr = director.Probe(ctx, cfg.Host)
			}).
			Run(); err != nil {
			return nil, err
		}
		if probeErr == nil {
			name := status.Name
			if name == "" {
				name = "amplifier"
			}
			fmt.Printf("Found %v, %v outputs\n", name, len(status.Outputs))
			return status, nil
		}

		fmt.Printf("Could not reach %v: %v\n", cfg.Host, probeErr)
		retry := true
		if err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title("Try a different host?").Value(&retry),
		)).Run(); err != nil {
			return nil, err
		}
		if !retry {
			return nil, probeErr
		}
	}
}

func wizardIdentity(cfg *director.Config, status *directortelnet.SystemStatus) error {
	cfg.UniqueID = "director"
	cfg.Name = status.Name
	if cfg.Name == "" {
		cfg.Name = "Director"
	}
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Unique ID").
			Description("Identifies this amplifier to the host and in topic names.").
			Value(&cfg.UniqueID).
			Validate(func(s string) error {
				if !director.ValidUniqueID(s) {
					return fmt.Errorf("letters, digits, - and _ only")
				}
				return nil
			}),
		huh.NewInput().Title("Name").Value(&cfg.Name),
	)).Run()
}

func wizardBroker(cfg *director.Config) error {
	cfg.MQTT.Broker = "tcp://localhost:1883"
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("MQTT broker URL").Value(&cfg.MQTT.Broker),
		huh.NewInput().Title("MQTT username (optional)").Value(&cfg.MQTT.Username),
		huh.NewInput().
			Title("MQTT password (optional)").
			Description("May be left empty and supplied via DIRECTORD_MQTT_PASSWORD.").
			EchoMode(huh.EchoModePassword).
			Value(&cfg.MQTT.Password),
	)).Run()
}

// YAML output types, so the generated file carries only what the wizard
// collected and picks up defaults for the rest at load time.

type setupConfigYAML struct {
	Host     string        `yaml:"host"`
	UniqueID string        `yaml:"unique_id"`
	Name     string        `yaml:"name,omitempty"`
	MQTT     setupMQTTYAML `yaml:"mqtt"`
}

type setupMQTTYAML struct {
	Broker   string `yaml:"broker"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

func setupConfig(cfg *director.Config) setupConfigYAML {
	return setupConfigYAML{
		Host:     cfg.Host,
		UniqueID: cfg.UniqueID,
		Name:     cfg.Name,
		MQTT: setupMQTTYAML{
			Broker:   cfg.MQTT.Broker,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		},
	}
}
