package gitrepo

import "errors"

var (
	// ErrInvalidRepoURL is returned when no repository name can be derived from a URL.
	ErrInvalidRepoURL = errors.New("invalid repository URL")

	// ErrNoBranches is returned when a repository has no branch to export.
	ErrNoBranches = errors.New("repository has no branches")

	errStopWalk = errors.New("stop walk")
)
