package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 8

// SetupOptions carries everything one setup run needs.
type SetupOptions struct {
	Platform      PlatformAPI
	Templates     TemplateSource
	Teams         []StudentTeam
	TemplateRepos []TemplateRepo
	Private       bool
	Concurrency   int
	Logger        *slog.Logger
}

// unit is one (team, template) pair requiring one repository.
type unit struct {
	team     StudentTeam
	template TemplateRepo
	repo     StudentRepo
}

// Setup creates one repository per (team, template) pair: verify settings,
// fetch each template once, then process units under bounded concurrency.
// Per-unit failures are collected, never fatal; only precondition failures
// (bad input, failed verification) abort the run before dispatch.
//
// Cancelling ctx stops dispatch of queued units; in-flight units finish and
// the partial result is returned together with ctx.Err().
func Setup(ctx context.Context, opts SetupOptions) (*SetupResult, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	units, err := expand(opts.Teams, opts.TemplateRepos)
	if err != nil {
		return nil, err
	}

	if err := opts.Platform.VerifySettings(ctx); err != nil {
		return nil, fmt.Errorf("verify settings: %w", err)
	}
	log.Info("platform settings verified", "org", opts.Platform.OrgName(), "units", len(units))

	collector := &resultCollector{}
	badTemplates := acquireTemplates(ctx, opts, units, collector, log)

	limit := opts.Concurrency
	if limit < 1 {
		limit = DefaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for _, u := range units {
		if badTemplates[u.template.Name] {
			continue // already recorded as failed
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			processUnit(ctx, opts, u, collector, log)
			return nil
		})
	}
	_ = g.Wait()

	result := collector.finish()
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// expand validates the inputs and computes the full unit list. Name
// collisions are checked case-insensitively so backends with
// case-insensitive namespaces cannot silently merge two repositories.
func expand(teams []StudentTeam, templates []TemplateRepo) ([]unit, error) {
	if len(teams) == 0 {
		return nil, fmt.Errorf("%w: no teams given", ErrInvalidInput)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: no templates given", ErrInvalidInput)
	}

	seenTeams := make(map[string]string, len(teams))
	for _, t := range teams {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(t.Name)
		if prev, ok := seenTeams[key]; ok {
			return nil, fmt.Errorf("%w: team name %q collides with %q", ErrInvalidInput, t.Name, prev)
		}
		seenTeams[key] = t.Name
	}

	seenTemplates := make(map[string]string, len(templates))
	for _, tpl := range templates {
		if tpl.Name == "" {
			return nil, fmt.Errorf("%w: template %q has no name", ErrInvalidInput, tpl.Location)
		}
		key := strings.ToLower(tpl.Name)
		if prev, ok := seenTemplates[key]; ok {
			return nil, fmt.Errorf("%w: template name %q collides with %q", ErrInvalidInput, tpl.Name, prev)
		}
		seenTemplates[key] = tpl.Name
	}

	units := make([]unit, 0, len(teams)*len(templates))
	for _, team := range teams {
		for _, tpl := range templates {
			units = append(units, unit{team: team, template: tpl, repo: NewStudentRepo(team, tpl)})
		}
	}
	return units, nil
}

// acquireTemplates fetches every distinct template before any unit is
// dispatched. A template that cannot be fetched marks all dependent units
// failed; the remaining templates still proceed.
func acquireTemplates(ctx context.Context, opts SetupOptions, units []unit, collector *resultCollector, log *slog.Logger) map[string]bool {
	distinct := make(map[string]TemplateRepo)
	order := make([]string, 0)
	for _, u := range units {
		if _, ok := distinct[u.template.Name]; !ok {
			distinct[u.template.Name] = u.template
			order = append(order, u.template.Name)
		}
	}

	var mu sync.Mutex
	failed := make(map[string]bool)
	var g errgroup.Group
	for _, name := range order {
		tpl := distinct[name]
		g.Go(func() error {
			if err := opts.Templates.Acquire(ctx, tpl); err != nil {
				log.Error("template acquisition failed", "template", tpl.Name, "error", err)
				mu.Lock()
				failed[tpl.Name] = true
				mu.Unlock()
				for _, u := range units {
					if u.template.Name == tpl.Name {
						collector.failed(u.team.Name, u.repo.Name, err)
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// processUnit runs the strictly sequential per-unit pipeline:
// exists-check, create, ensure-team, push. The first failure records the
// unit and stops; sibling units are unaffected. No retries, no rollback:
// partial state is recovered by re-running setup.
func processUnit(ctx context.Context, opts SetupOptions, u unit, collector *resultCollector, log *slog.Logger) {
	exists, err := opts.Platform.RepoExists(ctx, u.repo.Name)
	if err != nil {
		collector.failed(u.team.Name, u.repo.Name, fmt.Errorf("check repository: %w", err))
		return
	}
	if exists {
		log.Info("repository already exists, skipping", "repo", u.repo.Name)
		collector.existing(u.repo.Name)
		return
	}

	if err := opts.Platform.CreateRepo(ctx, u.repo.Name, opts.Private); err != nil {
		collector.failed(u.team.Name, u.repo.Name, fmt.Errorf("create repository: %w", err))
		return
	}

	if err := opts.Platform.EnsureTeam(ctx, u.team.Name, u.team.Members, PermissionPush); err != nil {
		collector.failed(u.team.Name, u.repo.Name, fmt.Errorf("ensure team: %w", err))
		return
	}

	dir, cleanup, err := opts.Templates.WorkingCopy(ctx, u.template)
	if err != nil {
		collector.failed(u.team.Name, u.repo.Name, fmt.Errorf("prepare working copy: %w", err))
		return
	}
	defer cleanup()

	if err := opts.Templates.Push(ctx, dir, opts.Platform.PushURL(u.repo.Name)); err != nil {
		collector.failed(u.team.Name, u.repo.Name, fmt.Errorf("push template: %w", err))
		return
	}

	log.Info("repository created", "repo", u.repo.Name, "team", u.team.Name)
	collector.created(u.repo.Name)
}
