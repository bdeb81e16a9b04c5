package main

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfg "github.com/maastricht-university/speaker-stitch/config"
	"github.com/maastricht-university/speaker-stitch/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type commandContext struct {
	configFlag *string

	once   sync.Once
	config *cfg.Root
	log    *logrus.Logger
	err    error
}

func (c *commandContext) ensureConfig() (*cfg.Root, error) {
	c.once.Do(func() {
		conf, err := cfg.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		log, err := logging.New(logging.Config{
			Level:  conf.Pipeline.LogLvl,
			Format: conf.Pipeline.LogFormat,
			File:   conf.Pipeline.LogFile,
		})
		if err != nil {
			c.err = err
			return
		}
		c.config, c.log = conf, log
	})
	return c.config, c.err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "speaker-stitch",
		Short:         "Stitch speaker identities across overlapping diarized chunks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newPlanCommand(ctx))
	rootCmd.AddCommand(newStitchCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}
