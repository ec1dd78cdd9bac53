// Package cli wires the command line to the window and the headless commands.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SiirRandall/proton-patch-helper/internal/app"
	"github.com/SiirRandall/proton-patch-helper/internal/config"
	"github.com/SiirRandall/proton-patch-helper/internal/logging"
	"github.com/SiirRandall/proton-patch-helper/internal/runner"
	"github.com/SiirRandall/proton-patch-helper/internal/steam"
)

var version = "dev"

type globalFlags struct {
	configFile    string
	steamRoot     string
	versionPolicy string
	debug         bool
}

// env is what every command needs once flags and config are resolved.
type env struct {
	cfg    *config.Config
	log    *logrus.Logger
	layout steam.Layout
	runner *runner.Runner
}

func (g *globalFlags) resolve() (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configFile != "" {
		cfg, err = config.LoadFile(g.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if g.steamRoot != "" {
		cfg.SteamRoot = g.steamRoot
	}
	if g.versionPolicy != "" {
		cfg.VersionPolicy = g.versionPolicy
	}
	cfg.Debug = cfg.Debug || g.debug
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logging.New(cfg.Debug)
	layout, err := steam.LayoutFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve steam layout: %w", err)
	}
	grace, _ := cfg.Grace()
	r, err := runner.New(runner.Options{Encoding: cfg.OutputEncoding, Grace: grace, Log: log})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, layout: layout, runner: r}, nil
}

// NewRootCmd builds the command tree. gui is called to open the window.
func NewRootCmd(gui func(app.Options)) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "proton-patch-helper [installer.exe]",
		Short: "Run a Windows translation patch through Steam's Proton",
		Long: `Proton Patch Helper finds a Proton build under your Steam installation
and runs a Windows installer (typically a game translation patch) with it,
showing the installer's output as it runs.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.resolve()
			if err != nil {
				return err
			}
			opts := app.Options{Layout: e.layout, Runner: e.runner, Log: e.log}
			if len(args) == 1 {
				p, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				opts.Preselect = p
			}
			gui(opts)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/proton-patch-helper/config.yaml)")
	root.PersistentFlags().StringVar(&g.steamRoot, "steam-root", "", "Steam directory to use instead of probing the usual locations")
	root.PersistentFlags().StringVar(&g.versionPolicy, "version-policy", "", "which Proton folder to use: first or newest")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "verbose diagnostics on stderr")

	root.AddCommand(newDetectCmd(g))
	root.AddCommand(newRunCmd(g))
	return root
}
