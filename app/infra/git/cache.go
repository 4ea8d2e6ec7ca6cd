package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	gogit "github.com/go-git/go-git/v6"
	"golang.org/x/sync/singleflight"

	"repoforge/app/domain"
)

// TemplateCache clones each template exactly once per run into a private
// area under the work directory, then hands out independent working copies
// so concurrent pushes for different teams never share a working tree.
type TemplateCache struct {
	root  string
	group singleflight.Group

	mu    sync.Mutex
	paths map[string]string
}

var _ domain.TemplateSource = (*TemplateCache)(nil)

func NewTemplateCache(workDir string) (*TemplateCache, error) {
	root := filepath.Join(workDir, "templates")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create template cache dir: %w", err)
	}
	return &TemplateCache{root: root, paths: map[string]string{}}, nil
}

// Acquire clones the template source into the cache. Concurrent callers for
// the same template block on a single clone and share its outcome.
func (c *TemplateCache) Acquire(ctx context.Context, template domain.TemplateRepo) error {
	_, err, _ := c.group.Do(template.Name, func() (any, error) {
		c.mu.Lock()
		_, done := c.paths[template.Name]
		c.mu.Unlock()
		if done {
			return nil, nil
		}

		dest := filepath.Join(c.root, template.Name)
		// A leftover clone from an aborted earlier run is stale; refetch.
		if err := os.RemoveAll(dest); err != nil {
			return nil, fmt.Errorf("clear cache slot for %s: %w", template.Name, err)
		}
		if _, err := gogit.PlainCloneContext(ctx, dest, &gogit.CloneOptions{URL: template.Location}); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrClone, template.Location, err)
		}

		c.mu.Lock()
		c.paths[template.Name] = dest
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// WorkingCopy clones the cached template into a fresh directory. The caller
// owns the copy and runs the returned cleanup after pushing it.
func (c *TemplateCache) WorkingCopy(ctx context.Context, template domain.TemplateRepo) (string, func(), error) {
	c.mu.Lock()
	src, ok := c.paths[template.Name]
	c.mu.Unlock()
	if !ok {
		return "", nil, fmt.Errorf("%w: template %q was never acquired", domain.ErrClone, template.Name)
	}

	dir, err := os.MkdirTemp(c.root, template.Name+"-copy-")
	if err != nil {
		return "", nil, fmt.Errorf("create working copy dir: %w", err)
	}
	if _, err := gogit.PlainCloneContext(ctx, dir, &gogit.CloneOptions{URL: src}); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, fmt.Errorf("%w: working copy of %s: %v", domain.ErrClone, template.Name, err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// Push publishes the working copy at dir to remoteURL.
func (c *TemplateCache) Push(ctx context.Context, dir, remoteURL string) error {
	return Push(ctx, dir, remoteURL)
}
