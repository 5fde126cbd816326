package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usedatabrew/keg/internal/service"
	"github.com/usedatabrew/keg/internal/tap"
)

func newListCmd(a *app) *cobra.Command {
	var installed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List formulas in the tap, or installed formulas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if installed {
				return a.listInstalled()
			}

			t, err := tap.Open(cmd.Context(), a.settings.TapDir)
			if errors.Is(err, tap.ErrNotATap) {
				fmt.Fprintln(cmd.OutOrStdout(), "No tap found at "+a.settings.TapDir+".")
				fmt.Fprintln(cmd.OutOrStdout(), "Publish a formula to create it: keg publish <formula-file>")
				return nil
			}
			if err != nil {
				return err
			}
			names, err := t.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&installed, "installed", false, "list installed formulas instead")
	return cmd
}

func (a *app) listInstalled() error {
	svc := service.NewUninstallService(a.settings.StateDir)
	receipts, err := svc.Installed()
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		a.out.Detail("No formulas installed.")
	}
	for _, r := range receipts {
		line := fmt.Sprintf("%-20s %-10s %s", r.Formula, r.FormulaVersion, r.Platform)
		if r.Selected != "" && r.Selected != r.Platform {
			line += " (via " + r.Selected + ")"
		}
		a.out.Detail("%s", line)
	}

	incomplete, err := svc.Incomplete()
	if err != nil {
		return err
	}
	for _, txn := range incomplete {
		a.out.Warn("%s %s: install %s at %s: %s", txn.Formula, txn.FormulaVersion, txn.State,
			txn.UpdatedAt.Format("2006-01-02 15:04:05"), txn.LastError)
	}
	return nil
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <formula>",
		Short: "Show the published releases of a tap formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tap.Open(cmd.Context(), a.settings.TapDir)
			if err != nil {
				return err
			}
			commits, err := t.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, c := range commits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", short(c.Hash), c.When.Format("2006-01-02"), c.Message)
			}
			return nil
		},
	}
}
