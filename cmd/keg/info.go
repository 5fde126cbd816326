package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/usedatabrew/keg/internal/formula"
	"github.com/usedatabrew/keg/internal/service"
)

func newInfoCmd(a *app) *cobra.Command {
	var platformFlag string

	cmd := &cobra.Command{
		Use:   "info <formula>",
		Short: "Show a formula and the artifact this platform would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loader, detector, err := a.loader(platformFlag)
			if err != nil {
				return err
			}

			release, err := service.LoadFormula(ctx, args[0], a.tapSource(), loader)
			if err != nil {
				return err
			}

			a.out.Header("%s: %s", release.Name, release.Version)
			if release.Description != "" {
				a.out.Field("desc", release.Description)
			}
			if release.Homepage != "" {
				a.out.Field("homepage", release.Homepage)
			}

			keys := make([]string, 0, len(release.Platforms))
			for _, k := range release.Keys() {
				keys = append(keys, k.String())
			}
			a.out.Field("platforms", strings.Join(keys, ", "))
			for _, k := range release.FallbackKeys() {
				a.out.Field("fallback", fmt.Sprintf("%s -> %s", k, release.Fallbacks[k].Use))
			}

			info, err := detector.Detect(ctx)
			if err != nil {
				return fmt.Errorf("detect platform: %w", err)
			}
			res, err := formula.ResolveKey(release, formula.KeyFor(info))
			var notSupported *formula.NotSupportedError
			if errors.As(err, &notSupported) {
				a.out.Warn("%s", err)
				return nil
			}
			if err != nil {
				return err
			}

			a.out.Header("Artifact for %s", res.Requested)
			a.out.Field("url", res.Artifact.URL)
			a.out.Field("sha256", res.Artifact.SHA256)
			a.out.Field("installs", strings.Join(res.Artifact.Binaries(), ", "))
			a.out.Caveat(res.Artifact.Caveat)
			return nil
		},
	}

	cmd.Flags().StringVar(&platformFlag, "platform", "", "resolve for os/arch instead of this machine")
	return cmd
}

func newAuditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <formula>...",
		Short: "Check formulas against the publishing conventions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, _, err := a.loader("")
			if err != nil {
				return err
			}

			failed := 0
			for _, ref := range args {
				release, err := service.LoadFormula(cmd.Context(), ref, a.tapSource(), loader)
				if err != nil {
					a.out.Error("%s: %s", ref, describeError(err, a.settings.Debug))
					failed++
					continue
				}

				findings := formula.Audit(release)
				if len(findings) == 0 {
					a.out.Success("%s", release.ID())
					continue
				}
				a.out.Header("%s", release.ID())
				for _, f := range findings {
					a.out.Detail("%s", f)
				}
				if formula.HasErrors(findings) {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d formula(s) failed audit", failed, len(args))
			}
			return nil
		},
	}
}
