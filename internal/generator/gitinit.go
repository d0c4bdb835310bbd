package generator

import (
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// InitRepo turns the output directory into a git repository with a
// single commit containing the generated files.
func InitRepo(dir, message string) error {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return fmt.Errorf("initializing repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	if err := wt.AddGlob("."); err != nil {
		return fmt.Errorf("staging files: %w", err)
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "dashlift",
			Email: "dashlift@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("creating commit: %w", err)
	}
	return nil
}
