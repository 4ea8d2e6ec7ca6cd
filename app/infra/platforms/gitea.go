package platforms

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"code.gitea.io/sdk/gitea"

	"repoforge/app/domain"
)

type GiteaPlatform struct {
	client  *gitea.Client
	org     string
	user    string
	token   string
	baseURL string
}

func NewGiteaPlatform(opts Options) (*GiteaPlatform, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("%w: token required for the gitea backend", domain.ErrAuthentication)
	}
	client, err := gitea.NewClient(opts.BaseURL, gitea.SetToken(opts.Token))
	if err != nil {
		return nil, &domain.BackendError{Backend: "gitea", Op: "new client", Err: err}
	}
	return &GiteaPlatform{
		client:  client,
		org:     opts.Org,
		user:    opts.User,
		token:   opts.Token,
		baseURL: opts.BaseURL,
	}, nil
}

func (g *GiteaPlatform) OrgName() string { return g.org }

func (g *GiteaPlatform) VerifySettings(ctx context.Context) error {
	g.client.SetContext(ctx)
	if _, resp, err := g.client.GetMyUserInfo(); err != nil {
		return giteaErr("verify credentials", resp, err)
	}
	if _, resp, err := g.client.GetOrg(g.org); err != nil {
		return giteaErr("verify organization "+g.org, resp, err)
	}
	return nil
}

func (g *GiteaPlatform) RepoExists(ctx context.Context, name string) (bool, error) {
	g.client.SetContext(ctx)
	_, resp, err := g.client.GetRepo(g.org, name)
	if err == nil {
		return true, nil
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, giteaErr("check repository "+name, resp, err)
}

func (g *GiteaPlatform) CreateRepo(ctx context.Context, name string, private bool) error {
	g.client.SetContext(ctx)
	_, resp, err := g.client.CreateOrgRepo(g.org, gitea.CreateRepoOption{
		Name:    name,
		Private: private,
	})
	if err == nil {
		return nil
	}
	// 409 for an existing repository of the same name
	if resp != nil && resp.StatusCode == http.StatusConflict {
		return nil
	}
	return giteaErr("create repository "+name, resp, err)
}

func (g *GiteaPlatform) EnsureTeam(ctx context.Context, name string, members []string, permission domain.TeamPermission) error {
	g.client.SetContext(ctx)
	teams, resp, err := g.client.ListOrgTeams(g.org, gitea.ListTeamsOptions{})
	if err != nil {
		return giteaErr("list teams for "+g.org, resp, err)
	}

	perm := giteaAccessMode(permission)
	var team *gitea.Team
	for _, t := range teams {
		if strings.EqualFold(t.Name, name) {
			team = t
			break
		}
	}

	if team == nil {
		team, resp, err = g.client.CreateTeam(g.org, gitea.CreateTeamOption{
			Name:       name,
			Permission: perm,
			Units:      []gitea.RepoUnitType{gitea.RepoUnitCode},
		})
		if err != nil {
			return giteaErr("create team "+name, resp, err)
		}
	} else if team.Permission != perm {
		resp, err = g.client.EditTeam(team.ID, gitea.EditTeamOption{
			Name:       name,
			Permission: perm,
			Units:      []gitea.RepoUnitType{gitea.RepoUnitCode},
		})
		if err != nil {
			return giteaErr("update team "+name, resp, err)
		}
	}

	for _, member := range members {
		resp, err := g.client.AddTeamMember(team.ID, member)
		if err != nil {
			return giteaErr(fmt.Sprintf("add %s to team %s", member, name), resp, err)
		}
	}

	current, resp, err := g.client.ListTeamMembers(team.ID, gitea.ListTeamMembersOptions{})
	if err != nil {
		return giteaErr("list members of team "+name, resp, err)
	}
	for _, u := range current {
		if strings.EqualFold(u.UserName, g.user) || containsFold(members, u.UserName) {
			continue
		}
		if resp, err := g.client.RemoveTeamMember(team.ID, u.UserName); err != nil {
			return giteaErr(fmt.Sprintf("remove %s from team %s", u.UserName, name), resp, err)
		}
	}
	return nil
}

func (g *GiteaPlatform) PushURL(repoName string) string {
	return pushURL(g.baseURL, "gitea.com", g.user, g.token, g.org, repoName)
}

func giteaAccessMode(permission domain.TeamPermission) gitea.AccessMode {
	switch permission {
	case domain.PermissionPull:
		return gitea.AccessModeRead
	case domain.PermissionAdmin:
		return gitea.AccessModeAdmin
	default:
		return gitea.AccessModeWrite
	}
}

func giteaErr(op string, resp *gitea.Response, err error) error {
	if resp != nil {
		return statusErr("gitea", op, resp.StatusCode, err)
	}
	return &domain.BackendError{Backend: "gitea", Op: op, Err: err}
}
