package git

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v6"
	gitconfig "github.com/go-git/go-git/v6/config"

	"repoforge/app/domain"
)

// Push publishes every branch of the working copy at dir to remoteURL.
// Credentials ride in the URL userinfo for HTTP remotes; filesystem remotes
// need none. An already up-to-date remote is success.
func Push(ctx context.Context, dir, remoteURL string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("%w: open working copy %s: %v", domain.ErrPush, dir, err)
	}

	err = repo.PushContext(ctx, &gogit.PushOptions{
		RemoteURL: remoteURL,
		RefSpecs:  []gitconfig.RefSpec{"+refs/heads/*:refs/heads/*"},
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("%w: %s: %v", domain.ErrPush, remoteURL, err)
	}
	return nil
}
