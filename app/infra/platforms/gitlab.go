package platforms

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"repoforge/app/domain"
)

// Narrow interfaces over the client services we use, so tests can stub the
// GitLab API without a real client.
type gitlabUserService interface {
	CurrentUser(options ...gitlab.RequestOptionFunc) (*gitlab.User, *gitlab.Response, error)
	ListUsers(opt *gitlab.ListUsersOptions, options ...gitlab.RequestOptionFunc) ([]*gitlab.User, *gitlab.Response, error)
}

type gitlabGroupService interface {
	GetGroup(gid interface{}, opt *gitlab.GetGroupOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Group, *gitlab.Response, error)
	CreateGroup(opt *gitlab.CreateGroupOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Group, *gitlab.Response, error)
	ListGroupMembers(gid interface{}, opt *gitlab.ListGroupMembersOptions, options ...gitlab.RequestOptionFunc) ([]*gitlab.GroupMember, *gitlab.Response, error)
}

type gitlabGroupMemberService interface {
	AddGroupMember(gid interface{}, opt *gitlab.AddGroupMemberOptions, options ...gitlab.RequestOptionFunc) (*gitlab.GroupMember, *gitlab.Response, error)
	RemoveGroupMember(gid interface{}, user int, opt *gitlab.RemoveGroupMemberOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Response, error)
}

type gitlabProjectService interface {
	GetProject(pid interface{}, opt *gitlab.GetProjectOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Project, *gitlab.Response, error)
	CreateProject(opt *gitlab.CreateProjectOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Project, *gitlab.Response, error)
}

type GitlabPlatform struct {
	users    gitlabUserService
	groups   gitlabGroupService
	members  gitlabGroupMemberService
	projects gitlabProjectService
	org      string
	user     string
	token    string
	baseURL  string
}

func NewGitlabPlatform(opts Options) (*GitlabPlatform, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("%w: token required for the gitlab backend", domain.ErrAuthentication)
	}
	var clientOpts []gitlab.ClientOptionFunc
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, gitlab.WithBaseURL(opts.BaseURL))
	}
	client, err := gitlab.NewClient(opts.Token, clientOpts...)
	if err != nil {
		return nil, &domain.BackendError{Backend: "gitlab", Op: "new client", Err: err}
	}
	return &GitlabPlatform{
		users:    client.Users,
		groups:   client.Groups,
		members:  client.GroupMembers,
		projects: client.Projects,
		org:      opts.Org,
		user:     opts.User,
		token:    opts.Token,
		baseURL:  opts.BaseURL,
	}, nil
}

func (g *GitlabPlatform) OrgName() string { return g.org }

func (g *GitlabPlatform) VerifySettings(ctx context.Context) error {
	if _, resp, err := g.users.CurrentUser(gitlab.WithContext(ctx)); err != nil {
		return gitlabErr("verify credentials", resp, err)
	}
	if _, resp, err := g.groups.GetGroup(g.org, nil, gitlab.WithContext(ctx)); err != nil {
		return gitlabErr("verify group "+g.org, resp, err)
	}
	return nil
}

func (g *GitlabPlatform) RepoExists(ctx context.Context, name string) (bool, error) {
	path := g.org + "/" + name
	_, resp, err := g.projects.GetProject(path, nil, gitlab.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, gitlabErr("check project "+path, resp, err)
}

func (g *GitlabPlatform) CreateRepo(ctx context.Context, name string, private bool) error {
	group, resp, err := g.groups.GetGroup(g.org, nil, gitlab.WithContext(ctx))
	if err != nil {
		return gitlabErr("resolve group "+g.org, resp, err)
	}

	visibility := gitlab.PublicVisibility
	if private {
		visibility = gitlab.PrivateVisibility
	}
	_, resp, err = g.projects.CreateProject(&gitlab.CreateProjectOptions{
		Name:        gitlab.Ptr(name),
		Path:        gitlab.Ptr(name),
		NamespaceID: gitlab.Ptr(group.ID),
		Visibility:  gitlab.Ptr(visibility),
	}, gitlab.WithContext(ctx))
	if err != nil {
		// 400 "has already been taken" for a duplicate path; any other 400
		// is a real validation failure and must surface
		if resp != nil && resp.StatusCode == http.StatusBadRequest &&
			strings.Contains(err.Error(), "has already been taken") {
			return nil
		}
		return gitlabErr("create project "+name, resp, err)
	}
	return nil
}

// EnsureTeam maps a student team onto a subgroup of the org group, with the
// permission expressed as each member's access level.
func (g *GitlabPlatform) EnsureTeam(ctx context.Context, name string, members []string, permission domain.TeamPermission) error {
	parent, resp, err := g.groups.GetGroup(g.org, nil, gitlab.WithContext(ctx))
	if err != nil {
		return gitlabErr("resolve group "+g.org, resp, err)
	}

	full := g.org + "/" + name
	sub, resp, err := g.groups.GetGroup(full, nil, gitlab.WithContext(ctx))
	if err != nil {
		if resp == nil || resp.StatusCode != http.StatusNotFound {
			return gitlabErr("get group "+full, resp, err)
		}
		sub, resp, err = g.groups.CreateGroup(&gitlab.CreateGroupOptions{
			Name:     gitlab.Ptr(name),
			Path:     gitlab.Ptr(name),
			ParentID: gitlab.Ptr(parent.ID),
		}, gitlab.WithContext(ctx))
		if err != nil {
			return gitlabErr("create group "+name, resp, err)
		}
	}

	level := gitlabAccessLevel(permission)
	for _, member := range members {
		users, resp, err := g.users.ListUsers(&gitlab.ListUsersOptions{Username: gitlab.Ptr(member)}, gitlab.WithContext(ctx))
		if err != nil {
			return gitlabErr("lookup user "+member, resp, err)
		}
		if len(users) == 0 {
			return fmt.Errorf("%w: gitlab user %q", domain.ErrNotFound, member)
		}
		_, resp, err = g.members.AddGroupMember(sub.ID, &gitlab.AddGroupMemberOptions{
			UserID:      gitlab.Ptr(users[0].ID),
			AccessLevel: gitlab.Ptr(level),
		}, gitlab.WithContext(ctx))
		if err != nil {
			// 409: already a member
			if resp != nil && resp.StatusCode == http.StatusConflict {
				continue
			}
			return gitlabErr(fmt.Sprintf("add %s to group %s", member, name), resp, err)
		}
	}

	current, resp, err := g.groups.ListGroupMembers(sub.ID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return gitlabErr("list members of group "+name, resp, err)
	}
	for _, m := range current {
		// owners (the token holder among them) stay in place
		if m.AccessLevel >= gitlab.OwnerPermissions || containsFold(members, m.Username) {
			continue
		}
		if resp, err := g.members.RemoveGroupMember(sub.ID, m.ID, nil, gitlab.WithContext(ctx)); err != nil {
			return gitlabErr(fmt.Sprintf("remove %s from group %s", m.Username, name), resp, err)
		}
	}
	return nil
}

func (g *GitlabPlatform) PushURL(repoName string) string {
	// GitLab accepts any non-empty username with a token password; oauth2
	// is the documented convention.
	return pushURL(g.baseURL, "gitlab.com", "oauth2", g.token, g.org, repoName)
}

func gitlabAccessLevel(permission domain.TeamPermission) gitlab.AccessLevelValue {
	switch permission {
	case domain.PermissionPull:
		return gitlab.ReporterPermissions
	case domain.PermissionAdmin:
		return gitlab.MaintainerPermissions
	default:
		return gitlab.DeveloperPermissions
	}
}

func gitlabErr(op string, resp *gitlab.Response, err error) error {
	if resp != nil {
		return statusErr("gitlab", op, resp.StatusCode, err)
	}
	return &domain.BackendError{Backend: "gitlab", Op: op, Err: err}
}
