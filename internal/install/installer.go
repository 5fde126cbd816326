package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/usedatabrew/keg/internal/formula"
)

const stagePrefix = ".keg-stage-"

// Installer orchestrates download, verification and installation of artifacts
type Installer struct {
	downloader *Downloader
	verifier   *Verifier
	extractor  *Extractor
	logger     *slog.Logger
	observer   Observer
}

// New creates an installer.
func New(opts Options) *Installer {
	d := NewDownloader(opts.CacheDir)
	if opts.HTTPClient != nil {
		d.client = opts.HTTPClient
	} else if opts.Timeout > 0 {
		d.client = newHTTPClient(opts.Timeout)
	}
	if opts.Retries > 0 {
		d.retries = opts.Retries
	}
	if opts.UserAgent != "" {
		d.userAgent = opts.UserAgent
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Installer{
		downloader: d,
		verifier:   NewVerifier(opts.Keyring),
		extractor:  NewExtractor(),
		logger:     logger,
		observer:   opts.Observer,
	}
}

// WithObserver returns a copy of the installer that reports transitions to o.
// The downloader and verifier are shared.
func (i *Installer) WithObserver(o Observer) *Installer {
	c := *i
	c.observer = o
	return &c
}

// run tracks the state of a single install.
type run struct {
	inst  *Installer
	state State
}

func (r *run) advance(to State, err error) {
	t := Transition{From: r.state, To: to, Err: err}
	r.state = to
	r.inst.logger.Debug("install state", "from", t.From, "to", t.To)
	if r.inst.observer != nil {
		r.inst.observer(t)
	}
}

func (r *run) fail(err error) error {
	r.advance(StateFailed, err)
	return err
}

// Install downloads artifact, verifies it and installs its binaries into
// binDir. Either every install target is placed, or binDir is left as it
// was. Failures are *IntegrityError or *IOError.
func (i *Installer) Install(ctx context.Context, artifact formula.Artifact, binDir string) (*Result, error) {
	start := time.Now()
	r := &run{inst: i, state: StatePending}
	if i.observer != nil {
		i.observer(Transition{To: StatePending})
	}

	if len(artifact.Install) == 0 {
		return nil, r.fail(&IOError{Stage: StageExtract, Err: fmt.Errorf("artifact has no install steps")})
	}

	// Download
	archive := i.downloader.CachePath(artifact.SHA256, artifact.Filename())
	cached, err := i.downloader.Fetch(ctx, artifact.URL, archive)
	if err != nil {
		return nil, r.fail(&IOError{Stage: StageDownload, Path: artifact.URL, Err: err})
	}
	i.logger.Debug("artifact fetched", "url", artifact.URL, "path", archive, "cached", cached)
	r.advance(StateDownloaded, nil)

	// Verify
	method, err := i.verify(ctx, artifact, archive)
	if err != nil {
		var integrity *IntegrityError
		if errors.As(err, &integrity) {
			// never keep a tarball that failed verification
			if rmErr := os.Remove(archive); rmErr != nil && !os.IsNotExist(rmErr) {
				i.logger.Warn("remove rejected artifact", "path", archive, "error", rmErr)
			}
		}
		return nil, r.fail(err)
	}
	r.advance(StateVerified, nil)

	// Stage
	stageDir, createdBin, err := makeStageDir(binDir)
	if err != nil {
		return nil, r.fail(&IOError{Stage: StageExtract, Path: binDir, Err: err})
	}
	committed := false
	defer func() {
		os.RemoveAll(stageDir)
		if createdBin && !committed {
			// only succeeds while binDir is still empty
			os.Remove(binDir)
		}
	}()

	if err := i.extractor.ExtractMembers(archive, filepath.Join(stageDir, "new"), artifact.Install); err != nil {
		return nil, r.fail(&IOError{Stage: StageExtract, Path: archive, Err: err})
	}

	// Commit
	targets := artifact.Binaries()
	replaced, err := commit(stageDir, binDir, targets)
	if err != nil {
		return nil, r.fail(&IOError{Stage: StageCommit, Path: binDir, Err: err})
	}
	committed = true
	r.advance(StateInstalled, nil)

	files := make([]string, 0, len(targets))
	for _, t := range targets {
		files = append(files, filepath.Join(binDir, t))
	}

	return &Result{
		Files:    files,
		Archive:  archive,
		Cached:   cached,
		Verified: method,
		Replaced: replaced,
		Duration: time.Since(start),
	}, nil
}

func (i *Installer) verify(ctx context.Context, artifact formula.Artifact, archive string) (VerificationMethod, error) {
	if err := i.verifier.VerifySHA256(archive, artifact.URL, artifact.SHA256); err != nil {
		return 0, err
	}

	if artifact.SignatureURL == "" {
		return VerificationSHA256, nil
	}
	if !i.verifier.CanVerifySignatures() {
		i.logger.Warn("signature not checked: no keyring configured", "url", artifact.SignatureURL)
		return VerificationSHA256, nil
	}

	sigPath := archive + ".sig"
	if err := i.downloader.DownloadToFile(ctx, artifact.SignatureURL, sigPath); err != nil {
		return 0, &IOError{Stage: StageDownload, Path: artifact.SignatureURL, Err: err}
	}
	defer os.Remove(sigPath)

	if err := i.verifier.VerifySignature(archive, sigPath, artifact.URL); err != nil {
		return 0, err
	}
	return VerificationSignature, nil
}

// makeStageDir creates a private directory inside binDir, so commits are
// same-filesystem renames and nothing is written next to binDir. created
// reports whether binDir had to be made for it.
func makeStageDir(binDir string) (stageDir string, created bool, err error) {
	if _, statErr := os.Stat(binDir); os.IsNotExist(statErr) {
		created = true
	}
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return "", false, fmt.Errorf("create bin dir: %w", err)
	}
	stageDir, err = os.MkdirTemp(binDir, stagePrefix)
	if err != nil {
		if created {
			os.Remove(binDir)
		}
		return "", false, fmt.Errorf("create stage dir: %w", err)
	}
	return stageDir, created, nil
}

// commit moves stageDir/new/<target> into binDir. Existing targets are moved
// to stageDir/backup first. On failure every completed step is undone.
func commit(stageDir, binDir string, targets []string) (replaced []string, err error) {
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return nil, fmt.Errorf("create bin dir: %w", err)
	}
	backupDir := filepath.Join(stageDir, "backup")
	if err := os.MkdirAll(backupDir, 0700); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	var backedUp, placed []string
	defer func() {
		if err == nil {
			return
		}
		for _, t := range placed {
			os.Remove(filepath.Join(binDir, t))
		}
		for _, t := range backedUp {
			// best effort: the original error is what the caller needs
			_ = moveFile(filepath.Join(backupDir, t), filepath.Join(binDir, t))
		}
		replaced = nil
	}()

	for _, t := range targets {
		dest := filepath.Join(binDir, t)
		info, statErr := os.Lstat(dest)
		switch {
		case statErr == nil && info.IsDir():
			return nil, fmt.Errorf("%s is a directory", dest)
		case statErr == nil:
			if err := os.Rename(dest, filepath.Join(backupDir, t)); err != nil {
				return nil, fmt.Errorf("back up %s: %w", dest, err)
			}
			backedUp = append(backedUp, t)
		case !os.IsNotExist(statErr):
			return nil, fmt.Errorf("stat %s: %w", dest, statErr)
		}

		if err := moveFile(filepath.Join(stageDir, "new", t), dest); err != nil {
			return nil, fmt.Errorf("install %s: %w", dest, err)
		}
		placed = append(placed, t)
	}

	return backedUp, nil
}

// moveFile renames src to dest, falling back to copy and remove when they
// are on different filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Remove(src)
}

// Uninstall removes the given installed files. Missing files are ignored.
func Uninstall(files []string) error {
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
