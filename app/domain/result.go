package domain

import (
	"sort"
	"sync"
)

// SetupResult aggregates per-unit outcomes of one setup run. Every unit of
// work lands in exactly one of the three buckets.
type SetupResult struct {
	SuccessfulRepos []string
	ExistingRepos   []string
	Errors          []UnitError
}

func (r *SetupResult) IsSuccess() bool { return len(r.Errors) == 0 }

// Total is the number of units accounted for across all buckets.
func (r *SetupResult) Total() int {
	return len(r.SuccessfulRepos) + len(r.ExistingRepos) + len(r.Errors)
}

// resultCollector serializes writes from concurrently running units.
// The SetupResult is only handed out after all units have reported.
type resultCollector struct {
	mu     sync.Mutex
	result SetupResult
}

func (c *resultCollector) created(repo string) {
	c.mu.Lock()
	c.result.SuccessfulRepos = append(c.result.SuccessfulRepos, repo)
	c.mu.Unlock()
}

func (c *resultCollector) existing(repo string) {
	c.mu.Lock()
	c.result.ExistingRepos = append(c.result.ExistingRepos, repo)
	c.mu.Unlock()
}

func (c *resultCollector) failed(team, repo string, err error) {
	c.mu.Lock()
	c.result.Errors = append(c.result.Errors, UnitError{TeamName: team, RepoName: repo, Err: err})
	c.mu.Unlock()
}

// finish sorts each bucket by repository name so output is deterministic
// regardless of completion order.
func (c *resultCollector) finish() *SetupResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.Strings(c.result.SuccessfulRepos)
	sort.Strings(c.result.ExistingRepos)
	sort.Slice(c.result.Errors, func(i, j int) bool {
		return c.result.Errors[i].RepoName < c.result.Errors[j].RepoName
	})
	out := c.result
	return &out
}
