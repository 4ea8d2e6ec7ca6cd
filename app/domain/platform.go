package domain

import "context"

// PlatformAPI is the capability contract every hosting backend implements.
// Instances are stateless across calls: base URL, organization and token are
// fixed at construction and every call is a fresh request.
type PlatformAPI interface {
	// VerifySettings authenticates and confirms the organization (or base
	// path) is reachable.
	VerifySettings(ctx context.Context) error

	// OrgName returns the organization or namespace identity, for display.
	OrgName() string

	// RepoExists reports whether a repository with the given name exists.
	// It never mutates backend state.
	RepoExists(ctx context.Context, name string) (bool, error)

	// CreateRepo creates a repository. An already-existing repository is
	// not an error; callers branch on RepoExists first.
	CreateRepo(ctx context.Context, name string, private bool) error

	// EnsureTeam creates or updates a team so its membership and access
	// level match the request. Members absent from the request are removed,
	// except the acting account and backend owners.
	EnsureTeam(ctx context.Context, name string, members []string, permission TeamPermission) error

	// PushURL returns a remote usable by a git push for the named
	// repository, with the credential embedded where the transport needs it.
	PushURL(repoName string) string
}

// TemplateSource hands out push-ready copies of template repositories.
// Implementations fetch each template at most once per run.
type TemplateSource interface {
	// Acquire fetches the template into the cache. Concurrent calls for the
	// same template share a single fetch.
	Acquire(ctx context.Context, template TemplateRepo) error

	// WorkingCopy returns a fresh, independent working directory derived
	// from the cached template, plus a cleanup func the caller runs after
	// the push.
	WorkingCopy(ctx context.Context, template TemplateRepo) (string, func(), error)

	// Push publishes the working copy at dir to the remote URL.
	Push(ctx context.Context, dir, remoteURL string) error
}
