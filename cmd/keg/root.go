package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/usedatabrew/keg/internal/formula"
	"github.com/usedatabrew/keg/internal/install"
	"github.com/usedatabrew/keg/internal/platform"
	"github.com/usedatabrew/keg/internal/service"
	"github.com/usedatabrew/keg/internal/settings"
	"github.com/usedatabrew/keg/internal/transaction"
	"github.com/usedatabrew/keg/internal/ui"
)

// Exit codes.
const (
	exitError        = 1
	exitNotSupported = 2
	exitIntegrity    = 3
	exitLocked       = 4
)

// app is the state shared by every command, filled in before a command runs.
type app struct {
	configPath string
	debug      bool

	settings *settings.Settings
	logger   *slog.Logger
	out      *ui.Printer
}

// NewRootCmd builds the keg command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "keg",
		Short: "Install prebuilt release binaries from formula descriptors",
		Long: `keg installs prebuilt binaries described by Homebrew-style formulas.

A formula lists one checksummed tar.gz artifact per platform, plus fallbacks
for platforms that can run another platform's binary. keg picks the artifact
for this machine, verifies it and installs its binaries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/keg/config.toml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newInstallCmd(a),
		newUninstallCmd(a),
		newInfoCmd(a),
		newAuditCmd(a),
		newGenerateCmd(a),
		newPublishCmd(a),
		newListCmd(a),
		newHistoryCmd(a),
		newOutdatedCmd(a),
		newShellenvCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	s, err := settings.LoadFrom(a.configPath)
	if err != nil {
		return err
	}
	if a.debug {
		s.Debug = true
	}
	a.settings = s

	level := slog.LevelInfo
	if s.Debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	a.out = ui.New(cmd.OutOrStdout())

	a.logger.Debug("command started", "command", cmd.Name(), "config", s.Source)
	return nil
}

// loader returns a formula loader. Lua formulas see the host platform, or
// the platform named by override.
func (a *app) loader(override string) (*formula.Loader, platform.Detector, error) {
	if override == "" {
		detector := platform.NewDetector()
		return formula.NewLoader(formula.NewParser(detector)), detector, nil
	}
	info, err := platform.Parse(override)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid platform %q: %w", override, err)
	}
	detector := platform.Static{Info: info}
	return formula.NewLoader(formula.NewParser(detector)), detector, nil
}

func (a *app) tapSource() service.TapSource {
	return service.TapSource{Dir: a.settings.TapDir}
}

func debugEnabled() bool {
	v, _ := strconv.ParseBool(os.Getenv("KEG_DEBUG"))
	return v
}

// describeError names the failure kind for errors users act on differently.
func describeError(err error, verbose bool) string {
	var (
		notSupported *formula.NotSupportedError
		integrity    *install.IntegrityError
		parseErr     *formula.ParseError
	)
	switch {
	case errors.As(err, &notSupported):
		return "NotSupportedError: " + err.Error()
	case errors.As(err, &integrity):
		return "IntegrityError: " + err.Error()
	case errors.As(err, &parseErr):
		return formula.FormatError(parseErr, verbose)
	}
	return err.Error()
}

func exitCode(err error) int {
	var (
		notSupported *formula.NotSupportedError
		integrity    *install.IntegrityError
	)
	switch {
	case errors.As(err, &notSupported):
		return exitNotSupported
	case errors.As(err, &integrity):
		return exitIntegrity
	case errors.Is(err, transaction.ErrLockExists):
		return exitLocked
	}
	return exitError
}

func reportError(w io.Writer, err error, verbose bool) {
	ui.New(w).Error("%s", describeError(err, verbose))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// no settings needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "keg %s\n", Version)
		},
	}
}
