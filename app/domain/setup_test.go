package domain

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakePlatform implements PlatformAPI in memory and records every mutation.
type fakePlatform struct {
	mu        sync.Mutex
	verifyErr error
	existing  map[string]bool
	createErr map[string]error
	ensureErr map[string]error
	created   []string
	teams     map[string][]string
	perms     map[string]TeamPermission
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		existing:  map[string]bool{},
		createErr: map[string]error{},
		ensureErr: map[string]error{},
		teams:     map[string][]string{},
		perms:     map[string]TeamPermission{},
	}
}

func (f *fakePlatform) VerifySettings(ctx context.Context) error { return f.verifyErr }
func (f *fakePlatform) OrgName() string                          { return "test-org" }

func (f *fakePlatform) RepoExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[name], nil
}

func (f *fakePlatform) CreateRepo(ctx context.Context, name string, private bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[name]; err != nil {
		return err
	}
	f.existing[name] = true
	f.created = append(f.created, name)
	return nil
}

func (f *fakePlatform) EnsureTeam(ctx context.Context, name string, members []string, permission TeamPermission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureErr[name]; err != nil {
		return err
	}
	f.teams[name] = members
	f.perms[name] = permission
	return nil
}

func (f *fakePlatform) PushURL(repoName string) string { return "remote://" + repoName }

// fakeSource implements TemplateSource and counts acquisitions per template.
type fakeSource struct {
	mu         sync.Mutex
	acquireErr map[string]error
	acquires   map[string]int
	pushes     []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{acquireErr: map[string]error{}, acquires: map[string]int{}}
}

func (f *fakeSource) Acquire(ctx context.Context, template TemplateRepo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires[template.Name]++
	return f.acquireErr[template.Name]
}

func (f *fakeSource) WorkingCopy(ctx context.Context, template TemplateRepo) (string, func(), error) {
	return "/tmp/fake-" + template.Name, func() {}, nil
}

func (f *fakeSource) Push(ctx context.Context, dir, remoteURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, remoteURL)
	return nil
}

func testTeams() []StudentTeam {
	return []StudentTeam{
		NewNamedStudentTeam("team1", []string{"alice"}),
		NewNamedStudentTeam("team2", []string{"bob", "carol"}),
		NewNamedStudentTeam("team3", []string{"dan"}),
	}
}

func testTemplates() []TemplateRepo {
	return []TemplateRepo{
		NewTemplateRepo("/srv/templates/templateA"),
		NewTemplateRepo("/srv/templates/templateB"),
	}
}

func TestSetup_CreatesAllRepos(t *testing.T) {
	platform := newFakePlatform()
	source := newFakeSource()

	result, err := Setup(context.Background(), SetupOptions{
		Platform:      platform,
		Templates:     source,
		Teams:         testTeams(),
		TemplateRepos: testTemplates(),
		Private:       true,
	})
	require.NoError(t, err)

	require.True(t, result.IsSuccess())
	require.Equal(t, []string{
		"team1-templateA", "team1-templateB",
		"team2-templateA", "team2-templateB",
		"team3-templateA", "team3-templateB",
	}, result.SuccessfulRepos)
	require.Empty(t, result.ExistingRepos)
	require.Len(t, source.pushes, 6)

	// Every team was ensured with push permission
	require.Equal(t, []string{"alice"}, platform.teams["team1"])
	require.Equal(t, []string{"bob", "carol"}, platform.teams["team2"])
	for team, perm := range platform.perms {
		require.Equal(t, PermissionPush, perm, "team %s", team)
	}
}

func TestSetup_SecondRunIsIdempotent(t *testing.T) {
	platform := newFakePlatform()
	opts := SetupOptions{
		Platform:      platform,
		Templates:     newFakeSource(),
		Teams:         testTeams(),
		TemplateRepos: testTemplates(),
	}

	first, err := Setup(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, first.SuccessfulRepos, 6)

	opts.Templates = newFakeSource()
	second, err := Setup(context.Background(), opts)
	require.NoError(t, err)

	require.Empty(t, second.SuccessfulRepos)
	require.Equal(t, first.SuccessfulRepos, second.ExistingRepos)
	require.True(t, second.IsSuccess())
	// No duplicate creations across both runs
	require.Len(t, platform.created, 6)
}

func TestSetup_PartialFailureIsolation(t *testing.T) {
	platform := newFakePlatform()
	platform.createErr["team2-templateA"] = errors.New("boom")

	result, err := Setup(context.Background(), SetupOptions{
		Platform:      platform,
		Templates:     newFakeSource(),
		Teams:         testTeams(),
		TemplateRepos: testTemplates(),
	})
	require.NoError(t, err)

	require.False(t, result.IsSuccess())
	require.Len(t, result.SuccessfulRepos, 5)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "team2", result.Errors[0].TeamName)
	require.Equal(t, "team2-templateA", result.Errors[0].RepoName)

	// Completeness: every unit accounted for exactly once
	require.Equal(t, 6, result.Total())
}

func TestSetup_EnsureTeamFailureRecordsUnit(t *testing.T) {
	platform := newFakePlatform()
	platform.ensureErr["team3"] = errors.New("no rights")

	result, err := Setup(context.Background(), SetupOptions{
		Platform:      platform,
		Templates:     newFakeSource(),
		Teams:         testTeams(),
		TemplateRepos: testTemplates(),
	})
	require.NoError(t, err)

	require.Len(t, result.Errors, 2) // team3 x both templates
	require.Len(t, result.SuccessfulRepos, 4)
	require.Equal(t, 6, result.Total())
}

func TestSetup_VerifyFailureAbortsBeforeDispatch(t *testing.T) {
	platform := newFakePlatform()
	platform.verifyErr = ErrAuthentication
	source := newFakeSource()

	result, err := Setup(context.Background(), SetupOptions{
		Platform:      platform,
		Templates:     source,
		Teams:         testTeams(),
		TemplateRepos: testTemplates(),
	})
	require.ErrorIs(t, err, ErrAuthentication)
	require.Nil(t, result)
	require.Empty(t, platform.created)
	require.Empty(t, source.acquires)
}

func TestSetup_InvalidInputRejectedBeforeVerify(t *testing.T) {
	cases := []struct {
		name  string
		teams []StudentTeam
	}{
		{"no teams", nil},
		{"empty membership", []StudentTeam{{Name: "t1"}}},
		{"duplicate names", []StudentTeam{
			NewNamedStudentTeam("Team1", []string{"a"}),
			NewNamedStudentTeam("team1", []string{"b"}),
		}},
	}
	for _, tc := range cases {
		platform := newFakePlatform()
		platform.verifyErr = errors.New("verify must not be reached")

		_, err := Setup(context.Background(), SetupOptions{
			Platform:      platform,
			Templates:     newFakeSource(),
			Teams:         tc.teams,
			TemplateRepos: testTemplates(),
		})
		require.ErrorIs(t, err, ErrInvalidInput, tc.name)
	}
}

func TestSetup_NoTemplatesRejected(t *testing.T) {
	_, err := Setup(context.Background(), SetupOptions{
		Platform:  newFakePlatform(),
		Templates: newFakeSource(),
		Teams:     testTeams(),
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetup_TemplateAcquireFailureMarksDependentUnits(t *testing.T) {
	source := newFakeSource()
	source.acquireErr["templateA"] = ErrClone

	result, err := Setup(context.Background(), SetupOptions{
		Platform:      newFakePlatform(),
		Templates:     source,
		Teams:         testTeams(),
		TemplateRepos: testTemplates(),
	})
	require.NoError(t, err)

	// All templateA units failed, all templateB units succeeded
	require.Len(t, result.Errors, 3)
	for _, unitErr := range result.Errors {
		require.ErrorIs(t, unitErr.Err, ErrClone)
		require.Contains(t, unitErr.RepoName, "templateA")
	}
	require.Equal(t, []string{
		"team1-templateB", "team2-templateB", "team3-templateB",
	}, result.SuccessfulRepos)
	require.Equal(t, 6, result.Total())
}

func TestSetup_AcquiresEachTemplateOnce(t *testing.T) {
	source := newFakeSource()

	_, err := Setup(context.Background(), SetupOptions{
		Platform:      newFakePlatform(),
		Templates:     source,
		Teams:         testTeams(),
		TemplateRepos: testTemplates(),
		Concurrency:   16,
	})
	require.NoError(t, err)

	require.Equal(t, map[string]int{"templateA": 1, "templateB": 1}, source.acquires)
}

func TestSetup_CancelledContextStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	platform := newFakePlatform()
	result, err := Setup(ctx, SetupOptions{
		Platform:      platform,
		Templates:     newFakeSource(),
		Teams:         testTeams(),
		TemplateRepos: testTemplates(),
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	require.Empty(t, platform.created)
}
