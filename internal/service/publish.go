package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/usedatabrew/keg/internal/formula"
	"github.com/usedatabrew/keg/internal/tap"
)

// ErrAuditFailed is returned when a release has audit errors.
var ErrAuditFailed = errors.New("formula audit failed")

// PublishService builds a release and commits it to a tap.
type PublishService struct {
	tapDir string
	user   tap.User
	loader *formula.Loader
}

// NewPublishService creates a publish service for the tap at tapDir.
// The tap is created on first publish.
func NewPublishService(tapDir string, user tap.User, loader *formula.Loader) *PublishService {
	return &PublishService{tapDir: tapDir, user: user, loader: loader}
}

// PublishRequest names where the release comes from: a formula file, or a
// goreleaser-style checksums file plus metadata.
type PublishRequest struct {
	FormulaPath   string
	ChecksumsPath string
	Meta          formula.Meta
	// DryRun builds and audits the release without touching the tap.
	DryRun bool
}

// PublishResult contains the results of the publish operation.
type PublishResult struct {
	Release    *formula.Release
	Findings   []formula.Finding
	Code       string
	CommitHash string
}

// Build loads or generates the release of req and audits it.
func (s *PublishService) Build(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	var (
		release *formula.Release
		err     error
	)
	switch {
	case req.FormulaPath != "" && req.ChecksumsPath != "":
		return nil, fmt.Errorf("formula file and checksums file are mutually exclusive")
	case req.FormulaPath != "":
		release, err = LoadFormula(ctx, req.FormulaPath, nil, s.loader)
	case req.ChecksumsPath != "":
		release, err = formula.FromChecksumsFile(req.Meta, req.ChecksumsPath)
	default:
		return nil, fmt.Errorf("a formula file or a checksums file is required")
	}
	if err != nil {
		return nil, err
	}

	result := &PublishResult{Release: release, Findings: formula.Audit(release)}
	if formula.HasErrors(result.Findings) {
		return result, fmt.Errorf("%s: %w:\n%s", release.ID(), ErrAuditFailed, formatFindings(result.Findings))
	}

	result.Code, err = formula.NewGenerator().Generate(release)
	if err != nil {
		return result, err
	}
	return result, nil
}

// Execute builds the release and, unless req.DryRun is set, commits it to
// the tap. Publishing the same or an older version fails with
// tap.ErrVersionExists.
func (s *PublishService) Execute(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	result, err := s.Build(ctx, req)
	if err != nil || req.DryRun {
		return result, err
	}

	t, err := tap.Init(ctx, s.tapDir, s.user)
	if err != nil {
		return result, err
	}
	result.CommitHash, err = t.Publish(ctx, result.Release, s.loader)
	if err != nil {
		return result, err
	}
	return result, nil
}

func formatFindings(findings []formula.Finding) string {
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, "  "+f.String())
	}
	return strings.Join(lines, "\n")
}
