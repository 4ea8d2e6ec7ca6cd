// Package roster turns team input (files or command arguments) into
// validated StudentTeams. Fetching rosters from a learning-management
// system is an external concern; this package only parses what it is given.
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"repoforge/app/domain"
)

// ParseTeamArg parses a team argument in the form "name:member1,member2" or
// "member1,member2" (name omitted, derived from the members).
func ParseTeamArg(arg string) (domain.StudentTeam, error) {
	name := ""
	membersPart := arg
	if before, after, found := strings.Cut(arg, ":"); found {
		name = strings.TrimSpace(before)
		membersPart = after
	}

	var members []string
	for _, m := range strings.Split(membersPart, ",") {
		if m = strings.TrimSpace(m); m != "" {
			members = append(members, m)
		}
	}

	team := domain.NewNamedStudentTeam(name, members)
	if err := team.Validate(); err != nil {
		return domain.StudentTeam{}, err
	}
	return team, nil
}

// LoadTeamsFile reads a roster file: a YAML list for .yaml/.yml, a JSON
// array otherwise. Entries without a name get one derived from the members.
func LoadTeamsFile(path string) ([]domain.StudentTeam, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: teams file %s: %v", domain.ErrInvalidInput, path, err)
	}

	var raw []domain.StudentTeam
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &raw)
	default:
		err = json.Unmarshal(content, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse teams file %s: %v", domain.ErrInvalidInput, path, err)
	}

	teams := make([]domain.StudentTeam, 0, len(raw))
	for _, entry := range raw {
		team := domain.NewNamedStudentTeam(entry.Name, entry.Members)
		if err := team.Validate(); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}
