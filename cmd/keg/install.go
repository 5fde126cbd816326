package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/usedatabrew/keg/internal/install"
	"github.com/usedatabrew/keg/internal/service"
	"github.com/usedatabrew/keg/internal/transaction"
)

func newInstallCmd(a *app) *cobra.Command {
	var (
		platformFlag string
		binDir       string
	)

	cmd := &cobra.Command{
		Use:   "install <formula>",
		Short: "Install a formula's binaries for this platform",
		Long: `Install downloads the artifact of <formula> for this platform, verifies its
SHA-256 (and OpenPGP signature when a keyring is configured) and places its
binaries in the bin directory.

<formula> is a .lua or .yaml formula file, or the name of a formula in the tap.`,
		Example: `  keg install blink
  keg install ./Formula/blink.lua
  keg install blink --platform darwin/arm64 --bin-dir /opt/blink/bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings
			if binDir == "" {
				binDir = s.BinDir
			}

			loader, detector, err := a.loader(platformFlag)
			if err != nil {
				return err
			}

			installer := install.New(install.Options{
				CacheDir:  s.CacheDir,
				Keyring:   s.Keyring,
				Timeout:   s.Download.Timeout,
				Retries:   s.Download.Retries,
				UserAgent: s.Download.UserAgent,
				Logger:    a.logger,
			})
			svc := service.NewInstallService(installer, a.tapSource(), loader, detector, transaction.RealClock{}, s.StateDir, a.logger)

			result, err := svc.Execute(cmd.Context(), service.InstallRequest{
				Formula:  args[0],
				Platform: platformFlag,
				BinDir:   binDir,
			})
			if err != nil {
				return err
			}

			res := result.Resolution
			a.out.Header("Installed %s", res)
			for _, f := range result.Install.Files {
				a.out.Detail("%s", f)
			}
			verified := result.Install.Verified.String()
			if result.Install.Cached {
				verified += ", cached"
			}
			a.out.Success("%s %s (%s)", result.Release.Name, result.Release.Version, verified)
			if len(result.Install.Replaced) > 0 {
				a.out.Detail("replaced: %s", strings.Join(result.Install.Replaced, ", "))
			}
			a.out.Caveat(res.Artifact.Caveat)
			return nil
		},
	}

	cmd.Flags().StringVar(&platformFlag, "platform", "", "install for os/arch instead of this machine")
	cmd.Flags().StringVar(&binDir, "bin-dir", "", "directory to install binaries into (default from config)")
	return cmd
}

func newUninstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <formula>",
		Short: "Remove the binaries of an installed formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := service.NewUninstallService(a.settings.StateDir)
			receipt, err := svc.Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, f := range receipt.Files {
				a.out.Detail("%s", f)
			}
			a.out.Success("uninstalled %s %s", receipt.Formula, receipt.FormulaVersion)
			return nil
		},
	}
}
