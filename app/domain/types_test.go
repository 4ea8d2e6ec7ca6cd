package domain

import (
	"errors"
	"testing"
)

func TestNewStudentTeam_DerivesNameFromSortedMembers(t *testing.T) {
	a := NewStudentTeam([]string{"bob", "alice"})
	b := NewStudentTeam([]string{"alice", "bob"})

	if a.Name != "alice-bob" {
		t.Fatalf("expected derived name alice-bob, got %q", a.Name)
	}
	if a.Name != b.Name {
		t.Fatalf("same membership must derive the same name: %q vs %q", a.Name, b.Name)
	}
	// Member order as supplied is preserved
	if a.Members[0] != "bob" || a.Members[1] != "alice" {
		t.Fatalf("member order mutated: %v", a.Members)
	}
}

func TestNewNamedStudentTeam(t *testing.T) {
	named := NewNamedStudentTeam("team1", []string{"alice"})
	if named.Name != "team1" {
		t.Fatalf("expected team1, got %q", named.Name)
	}

	derived := NewNamedStudentTeam("", []string{"dan", "carol"})
	if derived.Name != "carol-dan" {
		t.Fatalf("expected derived name carol-dan, got %q", derived.Name)
	}
}

func TestStudentTeam_Validate(t *testing.T) {
	cases := []struct {
		name string
		team StudentTeam
		ok   bool
	}{
		{"valid", NewNamedStudentTeam("t", []string{"a", "b"}), true},
		{"empty members", StudentTeam{Name: "t"}, false},
		{"duplicate member", StudentTeam{Name: "t", Members: []string{"a", "a"}}, false},
		{"blank member", StudentTeam{Name: "t", Members: []string{"a", ""}}, false},
	}
	for _, tc := range cases {
		err := tc.team.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
			}
		}
	}
}

func TestNewTemplateRepo_NameDerivation(t *testing.T) {
	cases := map[string]string{
		"https://github.com/org/templateA.git": "templateA",
		"https://gitlab.example.com/g/sub/tB/": "tB",
		"/srv/templates/templateB":             "templateB",
		"templateC":                            "templateC",
	}
	for location, want := range cases {
		if got := NewTemplateRepo(location).Name; got != want {
			t.Fatalf("NewTemplateRepo(%q).Name = %q, want %q", location, got, want)
		}
	}
}

func TestNewStudentRepo_Name(t *testing.T) {
	team := NewNamedStudentTeam("team1", []string{"alice"})
	tpl := NewTemplateRepo("https://github.com/org/templateA.git")
	repo := NewStudentRepo(team, tpl)

	if repo.Name != "team1-templateA" {
		t.Fatalf("expected team1-templateA, got %q", repo.Name)
	}
	if repo.Team.Name != "team1" {
		t.Fatalf("owning team lost: %+v", repo.Team)
	}
}

func TestTeamPermission_String(t *testing.T) {
	if PermissionPull.String() != "pull" || PermissionPush.String() != "push" || PermissionAdmin.String() != "admin" {
		t.Fatalf("unexpected permission strings: %s %s %s", PermissionPull, PermissionPush, PermissionAdmin)
	}
}
