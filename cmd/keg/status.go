package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usedatabrew/keg/internal/drift"
	"github.com/usedatabrew/keg/internal/service"
	"github.com/usedatabrew/keg/internal/shell"
)

func newOutdatedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "outdated",
		Short: "Compare installed formulas with the tap and the bin directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, _, err := a.loader("")
			if err != nil {
				return err
			}
			svc := service.NewStatusService(a.settings.StateDir, a.settings.TapDir, loader, a.logger)
			results, err := svc.Execute(cmd.Context())
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No formulas installed.")
				return nil
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), drift.FormatDriftReport(results))
			return err
		},
	}
}

func newShellenvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shellenv [bash|zsh|fish]",
		Short: "Print shell code that puts the bin directory on PATH",
		Example: `  eval "$(keg shellenv)"
  keg shellenv fish | source`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sh shell.ShellType
			if len(args) == 1 {
				sh = shell.ParseShell(args[0])
				if !sh.IsValid() {
					return &shell.UnsupportedShellError{Shell: args[0]}
				}
			} else {
				detected := shell.DetectShell(cmd.Context())
				a.logger.Debug("shell detected", "shell", detected.Shell, "method", detected.Method)
				sh = detected.Shell
				if !sh.IsValid() {
					return fmt.Errorf("could not detect your shell; pass one of bash, zsh or fish")
				}
			}

			snippet, err := shell.PathSnippet(sh, a.settings.BinDir)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), snippet)
			return err
		},
	}
}
