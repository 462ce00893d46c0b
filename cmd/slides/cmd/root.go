// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/oneconcern/slides/pkg/config"
	"github.com/oneconcern/slides/pkg/core"
	"github.com/oneconcern/slides/pkg/dlogger"
	"github.com/opentracing/opentracing-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app carries the state shared by all commands of one invocation
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	rootCmd := &cobra.Command{
		Use:   "slides",
		Short: "slides manages the manifest of a slide deck kept in a git repository",
		Long: `slides manages the manifest of a slide deck kept in a git repository.

The manifest is a JSON list of slides committed to a repository through the GitHub contents API.
"slides serve" exposes it over HTTP to browser clients; the other commands read or replace it from the command line.

Settings are read from flags, environment variables and an optional slides.yaml config file.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rootCmd.SetOut(out)

	if err := config.Bind(a.v, rootCmd.PersistentFlags()); err != nil {
		wrapFatalln("binding configuration", err)
	}

	rootCmd.AddCommand(
		newServeCmd(a),
		newManifestCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

// init reads the config file and builds the configuration and logger
func (a *app) init() error {
	if err := readConfigFile(a.v); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	logger, err := dlogger.GetLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// readConfigFile loads SLIDES_CONFIG, or slides.yaml found in the usual places
func readConfigFile(v *viper.Viper) error {
	if file := os.Getenv("SLIDES_CONFIG"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.slides")
		v.AddConfigPath("/etc/slides")
		v.SetConfigName("slides")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// manifestService wires the configured store into a manifest service
func (a *app) manifestService() (*core.ManifestService, error) {
	store, err := a.cfg.NewStore(a.logger, opentracing.GlobalTracer())
	if err != nil {
		return nil, err
	}
	return core.NewManifestService(store,
		core.ManifestPath(a.cfg.ManifestPath),
		core.Branch(a.cfg.Branch),
		core.DeleteConcurrency(a.cfg.DeleteConcurrency),
		core.Logger(a.logger),
	), nil
}
