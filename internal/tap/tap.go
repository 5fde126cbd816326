// Package tap manages a formula repository: a git repository holding one
// formula per file under Formula/.
//
// Published releases are immutable. Publishing a formula that already exists
// is only allowed for a strictly newer version, and every publish is its own
// commit, so the history of a formula is the list of its releases.
package tap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/usedatabrew/keg/internal/formula"
)

// FormulaDir is the directory formulas live in, relative to the tap root.
const FormulaDir = "Formula"

var (
	ErrNotATap          = errors.New("not a tap repository")
	ErrFormulaNotFound  = errors.New("formula not found")
	ErrVersionExists    = errors.New("formula version already published")
	ErrNothingToPublish = errors.New("generated formula is identical to the published one")
)

// Tap is an opened formula repository.
type Tap struct {
	dir    string
	repo   *gogit.Repository
	user   User
	commit commitFunc
}

// commitFunc records the staged index as a commit.
type commitFunc func(wt *gogit.Worktree, msg string, opts *gogit.CommitOptions) (plumbing.Hash, error)

func gitCommit(wt *gogit.Worktree, msg string, opts *gogit.CommitOptions) (plumbing.Hash, error) {
	return wt.Commit(msg, opts)
}

// Init creates a tap at dir, or opens it when it already exists. user is
// written to the repository-local config.
func Init(ctx context.Context, dir string, user User) (*Tap, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	repo, err := gogit.PlainInit(dir, false)
	if errors.Is(err, gogit.ErrRepositoryAlreadyExists) {
		return Open(ctx, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("init tap: %w", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, fmt.Errorf("read repo config: %w", err)
	}
	cfg.User.Name = user.Name
	cfg.User.Email = user.Email
	if err := repo.Storer.SetConfig(cfg); err != nil {
		return nil, fmt.Errorf("write repo config: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, FormulaDir), 0755); err != nil {
		return nil, fmt.Errorf("create formula dir: %w", err)
	}

	return &Tap{dir: dir, repo: repo, user: user, commit: gitCommit}, nil
}

// Open opens an existing tap. The commit author comes from the repository
// config, falling back to DetectUser.
func Open(ctx context.Context, dir string) (*Tap, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotATap)
	}
	if err != nil {
		return nil, fmt.Errorf("open tap: %w", err)
	}

	user := DetectUser()
	if cfg, err := repo.Config(); err == nil && cfg.User.Name != "" {
		user = User{Name: cfg.User.Name, Email: cfg.User.Email}
	}

	return &Tap{dir: dir, repo: repo, user: user, commit: gitCommit}, nil
}

// Dir returns the tap's root directory.
func (t *Tap) Dir() string {
	return t.dir
}

// List returns the names of all formulas in the tap, sorted.
func (t *Tap) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(t.dir, FormulaDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read formula dir: %w", err)
	}

	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !formula.IsFormulaFile(e.Name()) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Path returns the file holding formula name. Lua is preferred over YAML.
func (t *Tap) Path(name string) (string, error) {
	if err := formula.ValidateTarget(name); err != nil {
		return "", fmt.Errorf("invalid formula name %q: %w", name, err)
	}
	for _, ext := range []string{".lua", ".yaml", ".yml"} {
		p := filepath.Join(t.dir, FormulaDir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrFormulaNotFound)
}

// Load reads and validates formula name.
func (t *Tap) Load(ctx context.Context, name string, loader *formula.Loader) (*formula.Release, error) {
	path, err := t.Path(name)
	if err != nil {
		return nil, err
	}
	if loader == nil {
		loader = formula.NewLoader(nil)
	}
	return loader.LoadFile(ctx, path)
}

// Publish writes release as Formula/<name>.lua and commits it. An existing
// formula must be an older version of the same package; otherwise Publish
// fails with ErrVersionExists and the tap is left untouched. It returns the
// new commit hash.
func (t *Tap) Publish(ctx context.Context, release *formula.Release, loader *formula.Loader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	code, err := formula.NewGenerator().Generate(release)
	if err != nil {
		return "", err
	}

	existing, err := t.Load(ctx, release.Name, loader)
	switch {
	case errors.Is(err, ErrFormulaNotFound):
	case err != nil:
		return "", fmt.Errorf("load published %s: %w", release.Name, err)
	case !formula.Supersedes(release, existing):
		return "", fmt.Errorf("%s %s (published: %s): %w", release.Name, release.Version, existing.Version, ErrVersionExists)
	}

	rel := filepath.ToSlash(filepath.Join(FormulaDir, release.Name+".lua"))
	path := filepath.Join(t.dir, rel)
	prev, err := os.ReadFile(path)
	existed := err == nil
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}

	if err := writeFileAtomic(path, []byte(code)); err != nil {
		return "", err
	}

	hash, err := t.commitFormula(rel, release)
	if err != nil {
		// a failed publish must not leave an uncommitted version behind
		if rbErr := t.rollback(rel, prev, existed); rbErr != nil {
			return "", errors.Join(err, fmt.Errorf("roll back %s: %w", rel, rbErr))
		}
		return "", err
	}
	return hash, nil
}

func (t *Tap) commitFormula(rel string, release *formula.Release) (string, error) {
	worktree, err := t.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("get worktree: %w", err)
	}

	if _, err := worktree.Add(rel); err != nil {
		return "", fmt.Errorf("stage formula %s: %w", rel, err)
	}

	commit := t.commit
	if commit == nil {
		commit = gitCommit
	}
	hash, err := commit(worktree, CommitMessage(release), &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  t.user.Name,
			Email: t.user.Email,
			When:  time.Now(),
		},
	})
	if errors.Is(err, gogit.ErrEmptyCommit) {
		return "", ErrNothingToPublish
	}
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}

	return hash.String(), nil
}

// rollback puts rel back the way it was before a failed publish: the
// previous content restaged, or the new file removed from disk and index.
func (t *Tap) rollback(rel string, prev []byte, existed bool) error {
	path := filepath.Join(t.dir, rel)
	if existed {
		if err := writeFileAtomic(path, prev); err != nil {
			return err
		}
		worktree, err := t.repo.Worktree()
		if err != nil {
			return err
		}
		_, err = worktree.Add(rel)
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	idx, err := t.repo.Storer.Index()
	if err != nil {
		return err
	}
	if _, err := idx.Remove(rel); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
		return err
	}
	return t.repo.Storer.SetIndex(idx)
}

// CommitMessage is the subject of the commit publishing release.
func CommitMessage(release *formula.Release) string {
	return fmt.Sprintf("Brew formula update for %s version v%s", release.Name, release.Version)
}

// Commit is one entry of a formula's history.
type Commit struct {
	Hash    string
	Message string
	Author  string
	When    time.Time
}

// History returns the commits that touched formula name, newest first.
func (t *Tap) History(ctx context.Context, name string) ([]Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	path, err := t.Path(name)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(t.dir, path)
	if err != nil {
		return nil, fmt.Errorf("formula path: %w", err)
	}
	rel = filepath.ToSlash(rel)

	iter, err := t.repo.Log(&gogit.LogOptions{FileName: &rel})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Message: strings.TrimSpace(c.Message),
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return commits, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create formula dir: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write formula: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename formula: %w", err)
	}
	return nil
}
