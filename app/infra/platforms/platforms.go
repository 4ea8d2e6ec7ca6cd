package platforms

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"repoforge/app/domain"
)

// Options carries the immutable connection settings for one backend
// instance. Token is unused by the local backend.
type Options struct {
	Backend string
	BaseURL string
	Org     string
	Token   string
	User    string
}

// New constructs the PlatformAPI implementation for the selected backend.
// Callers never branch on backend identity afterwards.
func New(opts Options) (domain.PlatformAPI, error) {
	switch strings.ToLower(opts.Backend) {
	case "github":
		return NewGithubPlatform(opts)
	case "gitlab":
		return NewGitlabPlatform(opts)
	case "gitea":
		return NewGiteaPlatform(opts)
	case "local":
		return NewLocalPlatform(opts.BaseURL, opts.Org)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", domain.ErrInvalidInput, opts.Backend)
}

// statusErr maps an HTTP status from a backend API onto the shared error
// kinds, falling back to a BackendError.
func statusErr(backend, op string, status int, err error) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrAuthentication, op)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, op)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, op)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, op)
	}
	return &domain.BackendError{Backend: backend, Op: op, Err: err}
}

// pushURL builds an HTTP remote with the credential in the userinfo, the
// form go-git feeds straight into its transport.
func pushURL(baseURL, defaultHost, username, token, org, repo string) string {
	scheme := "https"
	host := defaultHost
	if baseURL != "" {
		trimmed := baseURL
		if i := strings.Index(trimmed, "://"); i >= 0 {
			scheme = trimmed[:i]
			trimmed = trimmed[i+3:]
		}
		if i := strings.IndexByte(trimmed, '/'); i >= 0 {
			trimmed = trimmed[:i]
		}
		if trimmed != "" {
			host = trimmed
		}
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(username, token),
		Host:   host,
		Path:   "/" + org + "/" + repo + ".git",
	}
	return u.String()
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
