package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v72/github"

	"repoforge/app/domain"
)

type GithubPlatform struct {
	client  *github.Client
	org     string
	user    string
	token   string
	baseURL string
}

func NewGithubPlatform(opts Options) (*GithubPlatform, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("%w: token required for the github backend", domain.ErrAuthentication)
	}
	client := github.NewClient(nil).WithAuthToken(opts.Token)
	if opts.BaseURL != "" && !strings.Contains(opts.BaseURL, "github.com") {
		// GitHub Enterprise instance
		var err error
		client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, &domain.BackendError{Backend: "github", Op: "configure enterprise URL", Err: err}
		}
	}
	return &GithubPlatform{
		client:  client,
		org:     opts.Org,
		user:    opts.User,
		token:   opts.Token,
		baseURL: opts.BaseURL,
	}, nil
}

func (g *GithubPlatform) OrgName() string { return g.org }

func (g *GithubPlatform) VerifySettings(ctx context.Context) error {
	if _, _, err := g.client.Users.Get(ctx, ""); err != nil {
		return githubErr("verify credentials", err)
	}
	if _, _, err := g.client.Organizations.Get(ctx, g.org); err != nil {
		return githubErr("verify organization "+g.org, err)
	}
	return nil
}

func (g *GithubPlatform) RepoExists(ctx context.Context, name string) (bool, error) {
	_, resp, err := g.client.Repositories.Get(ctx, g.org, name)
	if err == nil {
		return true, nil
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, githubErr("check repository "+name, err)
}

func (g *GithubPlatform) CreateRepo(ctx context.Context, name string, private bool) error {
	repo := &github.Repository{
		Name:    github.Ptr(name),
		Private: github.Ptr(private),
	}
	_, _, err := g.client.Repositories.Create(ctx, g.org, repo)
	if err == nil {
		return nil
	}
	if isDuplicateRepoErr(err) {
		return nil
	}
	return githubErr("create repository "+name, err)
}

// isDuplicateRepoErr reports whether a create failed only because the
// repository already exists. Other 422 validation failures must surface.
func isDuplicateRepoErr(err error) bool {
	var respErr *github.ErrorResponse
	if !errors.As(err, &respErr) || respErr.Response == nil ||
		respErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	for _, e := range respErr.Errors {
		if strings.Contains(e.Message, "already exists") {
			return true
		}
	}
	return false
}

func (g *GithubPlatform) EnsureTeam(ctx context.Context, name string, members []string, permission domain.TeamPermission) error {
	slug := teamSlug(name)
	perm := permission.String()

	_, resp, err := g.client.Teams.GetTeamBySlug(ctx, g.org, slug)
	switch {
	case err == nil:
		team := github.NewTeam{Name: name, Permission: &perm}
		if _, _, err := g.client.Teams.EditTeamBySlug(ctx, g.org, slug, team, false); err != nil {
			return githubErr("update team "+name, err)
		}
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		team := github.NewTeam{Name: name, Permission: &perm, Privacy: github.Ptr("closed")}
		if _, _, err := g.client.Teams.CreateTeam(ctx, g.org, team); err != nil {
			return githubErr("create team "+name, err)
		}
	default:
		return githubErr("get team "+name, err)
	}

	for _, member := range members {
		opts := &github.TeamAddTeamMembershipOptions{Role: "member"}
		if _, _, err := g.client.Teams.AddTeamMembershipBySlug(ctx, g.org, slug, member, opts); err != nil {
			return githubErr(fmt.Sprintf("add %s to team %s", member, name), err)
		}
	}

	current, _, err := g.client.Teams.ListTeamMembersBySlug(ctx, g.org, slug, nil)
	if err != nil {
		return githubErr("list members of team "+name, err)
	}
	for _, u := range current {
		login := u.GetLogin()
		// creating a team auto-adds the acting user as maintainer; keep them
		if strings.EqualFold(login, g.user) || containsFold(members, login) {
			continue
		}
		if _, err := g.client.Teams.RemoveTeamMembershipBySlug(ctx, g.org, slug, login); err != nil {
			return githubErr(fmt.Sprintf("remove %s from team %s", login, name), err)
		}
	}
	return nil
}

func (g *GithubPlatform) PushURL(repoName string) string {
	return pushURL(g.baseURL, "github.com", g.user, g.token, g.org, repoName)
}

// teamSlug approximates GitHub's team slugging for lookup by slug.
func teamSlug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

func githubErr(op string, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, op)
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return statusErr("github", op, respErr.Response.StatusCode, err)
	}
	return &domain.BackendError{Backend: "github", Op: op, Err: err}
}
