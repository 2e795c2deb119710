// Package gitmeta reads lightweight repository metadata for scan records.
package gitmeta

import (
	git "github.com/go-git/go-git/v5"
)

// Metadata identifies the repository state a scan ran against.
type Metadata struct {
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
	Remote string `json:"remote,omitempty"`
}

// Describe returns metadata for the repository containing root, if any.
// The second return is false when root is not inside a git repository.
func Describe(root string) (Metadata, bool) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Metadata{}, false
	}

	var m Metadata
	if head, err := repo.Head(); err == nil {
		m.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			m.Branch = head.Name().Short()
		}
	}
	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			m.Remote = urls[0]
		}
	}
	return m, true
}
