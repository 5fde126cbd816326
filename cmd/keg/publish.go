package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/usedatabrew/keg/internal/formula"
	"github.com/usedatabrew/keg/internal/service"
	"github.com/usedatabrew/keg/internal/tap"
)

// releaseFlags describe a release built from a checksums file.
type releaseFlags struct {
	checksums string
	meta      formula.Meta
}

func (f *releaseFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.checksums, "checksums", "", "GoReleaser checksums file listing the release tarballs")
	flags.StringVar(&f.meta.Name, "name", "", "formula name")
	flags.StringVar(&f.meta.Version, "version", "", "release version (a leading v is dropped)")
	flags.StringVar(&f.meta.Description, "desc", "", "one-line description")
	flags.StringVar(&f.meta.Homepage, "homepage", "", "project homepage")
	flags.StringVar(&f.meta.Repo, "repo", "", "GitHub owner/repo hosting the release")
	flags.StringVar(&f.meta.URLTemplate, "url-template", "", "artifact URL template with {repo}, {version} and {file}")
	flags.StringSliceVar(&f.meta.Binaries, "binary", nil, "archive member to install (repeatable, default: name)")
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		rf     releaseFlags
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a formula from a release checksums file",
		Example: `  keg generate --checksums dist/checksums.txt --name blink --version v1.14.0 \
    --repo usedatabrew/blink --homepage https://github.com/usedatabrew/blink`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rf.checksums == "" {
				return fmt.Errorf("--checksums is required")
			}
			release, err := formula.FromChecksumsFile(rf.meta, rf.checksums)
			if err != nil {
				return err
			}
			for _, f := range formula.Audit(release) {
				a.logger.Warn("audit", "finding", f.String())
			}

			var data []byte
			switch format {
			case "lua":
				code, err := formula.NewGenerator().Generate(release)
				if err != nil {
					return err
				}
				data = []byte(code)
			case "yaml":
				if data, err = formula.EncodeYAML(release); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (want lua or yaml)", format)
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("write formula: %w", err)
			}
			a.out.Success("wrote %s", output)
			return nil
		},
	}

	rf.register(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", "lua", "output format: lua or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	var (
		rf     releaseFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "publish [formula-file]",
		Short: "Commit a release formula to the tap",
		Long: `Publish adds a release to the tap as Formula/<name>.lua and commits it.

The release comes from a formula file, or from a checksums file plus release
metadata. A published version is never rewritten: publishing the same or an
older version of a formula fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.PublishRequest{
				ChecksumsPath: rf.checksums,
				Meta:          rf.meta,
				DryRun:        dryRun,
			}
			if len(args) == 1 {
				req.FormulaPath = args[0]
			}

			loader, _, err := a.loader("")
			if err != nil {
				return err
			}
			svc := service.NewPublishService(a.settings.TapDir, tap.DetectUser(), loader)

			result, err := svc.Execute(cmd.Context(), req)
			if result != nil {
				for _, f := range result.Findings {
					if f.Severity == formula.SeverityWarning {
						a.out.Warn("%s", f)
					}
				}
			}
			if err != nil {
				return err
			}

			if dryRun {
				_, err := fmt.Fprint(cmd.OutOrStdout(), result.Code)
				return err
			}
			a.out.Success("published %s to %s", result.Release.ID(), a.settings.TapDir)
			a.out.Detail("%s %s", short(result.CommitHash), tap.CommitMessage(result.Release))
			return nil
		},
	}

	rf.register(cmd.Flags())
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the formula instead of committing it")
	return cmd
}

func short(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
