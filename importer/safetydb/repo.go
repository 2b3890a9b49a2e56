package safetydb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
)

const (
	DefaultRemote = "https://github.com/pyupio/safety-db.git"
	DatabaseFile  = "data/insecure_full.json"
)

// GitLoader keeps a bare clone of the safety-db repository and reads the
// database from the HEAD commit. Clone and fetch are bounded by Timeout.
type GitLoader struct {
	Remote  string
	Path    string
	Timeout time.Duration
}

func (l GitLoader) Load(ctx context.Context) (Snapshot, error) {
	remote := l.Remote
	if remote == "" {
		remote = DefaultRemote
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	repo, err := GetRepo(ctx, remote, l.Path)
	if err != nil {
		return nil, fmt.Errorf("could not open safety-db repo: %w", err)
	}

	err = UpdateRepo(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("could not update safety-db repo: %w", err)
	}

	return ReadDatabase(repo)
}

func GetRepo(ctx context.Context, remote, path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}

	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, err
	}

	return git.PlainCloneContext(ctx, path, true, &git.CloneOptions{
		URL:   remote,
		Depth: 1,
	})
}

func UpdateRepo(ctx context.Context, repo *git.Repository) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RefSpecs: []config.RefSpec{config.RefSpec("+refs/heads/*:refs/heads/*")},
		Force:    true,
	})

	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// ReadDatabase decodes DatabaseFile from the HEAD commit of repo.
func ReadDatabase(repo *git.Repository) (Snapshot, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("could not read HEAD: %w", err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("could not read commit object: %w", err)
	}

	file, err := commit.File(DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("could not find %s: %w", DatabaseFile, err)
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("could not create reader for blob: %w", err)
	}
	defer reader.Close()

	return Decode(reader)
}
