package domain

import (
	"fmt"
	"sort"
	"strings"
)

// TeamPermission is the access level a student team gets on its repositories.
// Each backend maps it onto its native role model.
type TeamPermission int

const (
	PermissionPull TeamPermission = iota
	PermissionPush
	PermissionAdmin
)

func (p TeamPermission) String() string {
	switch p {
	case PermissionPull:
		return "pull"
	case PermissionAdmin:
		return "admin"
	default:
		return "push"
	}
}

// StudentTeam is one roster entry: a named group of git-hosting user names.
// Teams are built once per run and never mutated afterwards.
type StudentTeam struct {
	Name    string   `json:"name" yaml:"name" koanf:"name"`
	Members []string `json:"members" yaml:"members" koanf:"members"`
}

// NewStudentTeam derives the team name from the sorted member list, so the
// same membership always yields the same name across runs.
func NewStudentTeam(members []string) StudentTeam {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	return StudentTeam{Name: strings.Join(sorted, "-"), Members: members}
}

// NewNamedStudentTeam uses the given name, falling back to derivation when
// the name is empty.
func NewNamedStudentTeam(name string, members []string) StudentTeam {
	if name == "" {
		return NewStudentTeam(members)
	}
	return StudentTeam{Name: name, Members: members}
}

func (t StudentTeam) Validate() error {
	if len(t.Members) == 0 {
		return fmt.Errorf("%w: team %q has no members", ErrInvalidInput, t.Name)
	}
	seen := make(map[string]bool, len(t.Members))
	for _, m := range t.Members {
		if m == "" {
			return fmt.Errorf("%w: team %q has an empty member name", ErrInvalidInput, t.Name)
		}
		if seen[m] {
			return fmt.Errorf("%w: duplicate member %q in team %q", ErrInvalidInput, m, t.Name)
		}
		seen[m] = true
	}
	return nil
}

// TemplateRepo points at an existing repository holding assignment scaffolding.
type TemplateRepo struct {
	Location string
	Name     string
}

// NewTemplateRepo derives the template name from the final path segment of
// the location, dropping a trailing ".git".
func NewTemplateRepo(location string) TemplateRepo {
	trimmed := strings.TrimRight(location, "/")
	name := trimmed
	if i := strings.LastIndexAny(trimmed, "/\\"); i >= 0 {
		name = trimmed[i+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	return TemplateRepo{Location: location, Name: name}
}

// StudentRepo is the repository derived for one (team, template) pair.
type StudentRepo struct {
	Name string
	Team StudentTeam
}

func NewStudentRepo(team StudentTeam, template TemplateRepo) StudentRepo {
	return StudentRepo{
		Name: fmt.Sprintf("%s-%s", team.Name, template.Name),
		Team: team,
	}
}
