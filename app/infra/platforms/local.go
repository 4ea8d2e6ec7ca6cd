package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v6"

	"repoforge/app/domain"
)

// LocalPlatform implements PlatformAPI on a plain filesystem, for offline
// use and testing. Repositories are bare git directories under base/org;
// team state lives in JSON sidecar files under base/org/.teams.
type LocalPlatform struct {
	base string
	org  string
}

// localTeam is the stored team record, the filesystem stand-in for a
// hosting backend's team/role model.
type localTeam struct {
	Name       string   `json:"name"`
	Members    []string `json:"members"`
	Permission string   `json:"permission"`
}

func NewLocalPlatform(base, org string) (*LocalPlatform, error) {
	if base == "" {
		return nil, fmt.Errorf("%w: base path required for the local backend", domain.ErrInvalidInput)
	}
	return &LocalPlatform{base: base, org: org}, nil
}

func (l *LocalPlatform) OrgName() string { return l.org }

func (l *LocalPlatform) orgDir() string { return filepath.Join(l.base, l.org) }

func (l *LocalPlatform) VerifySettings(ctx context.Context) error {
	info, err := os.Stat(l.base)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: base path %s", domain.ErrNotFound, l.base)
		}
		return &domain.BackendError{Backend: "local", Op: "stat base path", Err: err}
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: base path %s is not a directory", domain.ErrInvalidInput, l.base)
	}
	probe, err := os.MkdirTemp(l.base, ".verify-")
	if err != nil {
		return fmt.Errorf("%w: base path %s is not writable", domain.ErrPermissionDenied, l.base)
	}
	_ = os.RemoveAll(probe)
	return nil
}

func (l *LocalPlatform) RepoExists(ctx context.Context, name string) (bool, error) {
	info, err := os.Stat(filepath.Join(l.orgDir(), name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &domain.BackendError{Backend: "local", Op: "stat repository " + name, Err: err}
	}
	return info.IsDir(), nil
}

func (l *LocalPlatform) CreateRepo(ctx context.Context, name string, private bool) error {
	// private has no filesystem equivalent; accepted and ignored
	path := filepath.Join(l.orgDir(), name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(l.orgDir(), 0o755); err != nil {
		return &domain.BackendError{Backend: "local", Op: "create org dir", Err: err}
	}
	if _, err := gogit.PlainInit(path, true); err != nil {
		return &domain.BackendError{Backend: "local", Op: "init repository " + name, Err: err}
	}
	return nil
}

func (l *LocalPlatform) EnsureTeam(ctx context.Context, name string, members []string, permission domain.TeamPermission) error {
	dir := filepath.Join(l.orgDir(), ".teams")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.BackendError{Backend: "local", Op: "create teams dir", Err: err}
	}
	record := localTeam{Name: name, Members: members, Permission: permission.String()}
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return &domain.BackendError{Backend: "local", Op: "encode team " + name, Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), content, 0o644); err != nil {
		return &domain.BackendError{Backend: "local", Op: "write team " + name, Err: err}
	}
	return nil
}

func (l *LocalPlatform) PushURL(repoName string) string {
	return filepath.Join(l.orgDir(), repoName)
}
