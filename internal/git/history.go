package git

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/himu-me/notepress/internal/logfields"
)

// ErrNotRepository is returned when no repository encloses the given path.
var ErrNotRepository = errors.New("not inside a git repository")

var errStop = errors.New("stop iteration")

// History answers last-modification queries against one repository.
type History struct {
	repo *git.Repository
	root string

	mu    sync.Mutex
	cache map[string]time.Time
}

// OpenHistory opens the repository enclosing path.
func OpenHistory(path string) (*History, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	return &History{
		repo:  repo,
		root:  canonical(wt.Filesystem.Root()),
		cache: make(map[string]time.Time),
	}, nil
}

// LastModified returns the committer time of the newest commit touching
// path. ok is false for untracked files, paths outside the worktree, or an
// empty repository.
func (h *History) LastModified(path string) (t time.Time, ok bool) {
	if h == nil {
		return time.Time{}, false
	}
	rel, err := filepath.Rel(h.root, canonical(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return time.Time{}, false
	}
	rel = filepath.ToSlash(rel)

	h.mu.Lock()
	defer h.mu.Unlock()
	if cached, hit := h.cache[rel]; hit {
		return cached, !cached.IsZero()
	}

	when := h.lookup(rel)
	h.cache[rel] = when
	return when, !when.IsZero()
}

func (h *History) lookup(rel string) time.Time {
	head, err := h.repo.Head()
	if err != nil {
		return time.Time{}
	}
	iter, err := h.repo.Log(&git.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		slog.Debug("Git log failed", logfields.Path(rel), logfields.Error(err))
		return time.Time{}
	}
	defer iter.Close()

	var when time.Time
	err = iter.ForEach(func(c *object.Commit) error {
		when = c.Committer.When
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		slog.Debug("Git history walk failed", logfields.Path(rel), logfields.Error(err))
		return time.Time{}
	}
	return when
}

func canonical(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
