package project

import (
	"errors"
	"path/filepath"
	"sort"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// FindRoot returns the top of the git worktree enclosing start. When
// start is not inside a repository it returns start itself, made
// absolute.
func FindRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	repo, err := openRepo(abs)
	if errors.Is(err, ErrNoGitRepository) {
		return abs, nil
	}
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no worktree; fall back to start.
		return abs, nil
	}
	return wt.Filesystem.Root(), nil
}

// GitDir returns the path of the .git directory for the repository
// enclosing root.
func GitDir(root string) (string, error) {
	repo, err := openRepo(root)
	if err != nil {
		return "", err
	}
	st, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return "", &WorkspaceError{Root: root, Err: ErrNoGitRepository}
	}
	return st.Filesystem().Root(), nil
}

// ModifiedFiles lists the worktree files, relative to the repository
// root and slash-separated, that are new or changed in the index or the
// worktree. Deleted files are left out.
func ModifiedFiles(root string) ([]string, error) {
	repo, err := openRepo(root)
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, &WorkspaceError{Root: root, Err: err}
	}
	status, err := wt.Status()
	if err != nil {
		return nil, &WorkspaceError{Root: root, Err: err}
	}

	var files []string
	for file, st := range status {
		if st.Worktree == git.Deleted || (st.Staging == git.Deleted && st.Worktree == git.Unmodified) {
			continue
		}
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		files = append(files, file)
	}
	sort.Strings(files)
	return files, nil
}

func openRepo(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, &WorkspaceError{Root: path, Err: ErrNoGitRepository}
	}
	if err != nil {
		return nil, &WorkspaceError{Root: path, Err: err}
	}
	return repo, nil
}
