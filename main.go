package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"repoforge/app/domain"
	gitinfra "repoforge/app/infra/git"
	"repoforge/app/infra/platforms"
	"repoforge/app/infra/roster"
)

var conf = koanf.Conf{
	Delim:       ".",
	StrictMerge: true,
}
var k = koanf.NewWithConf(conf)

func main() {
	if err := runWithArgs(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runWithArgs(args []string) error {
	return newCommand().Run(context.Background(), args)
}

func newCommand() *cli.Command {
	backendFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Value:   ".repoforge.yaml",
			Usage:   "The config file to be used",
			Aliases: []string{"c"},
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Hosting backend (github, gitlab, gitea, local)",
		},
		&cli.StringFlag{
			Name:    "org",
			Usage:   "Organization or group the repositories live under",
			Aliases: []string{"o"},
		},
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "Backend base URL, or the base directory for the local backend",
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "Bearer token (falls back to REPOFORGE_TOKEN)",
		},
		&cli.StringFlag{
			Name:    "user",
			Usage:   "Acting user, typically the teacher account",
			Aliases: []string{"u"},
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log progress to stderr",
		},
	}

	setupFlags := append([]cli.Flag{
		&cli.StringSliceFlag{
			Name:  "template",
			Usage: `Template repository URL or path (repeatable)`,
		},
		&cli.StringSliceFlag{
			Name:  "team",
			Usage: `Team in the form "name:member1,member2" (repeatable)`,
		},
		&cli.StringFlag{
			Name:  "teams-file",
			Usage: "JSON or YAML roster of teams",
		},
		&cli.StringFlag{
			Name:  "work-dir",
			Value: "./repoforge-work",
			Usage: "Scratch directory for template clones",
		},
		&cli.BoolFlag{
			Name:  "private",
			Value: true,
			Usage: "Create private repositories",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Value: domain.DefaultConcurrency,
			Usage: "Bound on concurrently processed repositories",
		},
	}, backendFlags...)

	return &cli.Command{
		Name:                  "repoforge",
		Usage:                 "Provision per-team student repositories from templates",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:   "setup",
				Usage:  "Create and populate one repository per team and template",
				Flags:  setupFlags,
				Action: runSetup,
			},
			{
				Name:   "verify",
				Usage:  "Check credentials and organization reachability",
				Flags:  backendFlags,
				Action: runVerify,
			},
		},
	}
}

// loadConfig layers the optional config file, REPOFORGE_* env vars and the
// command flags, flags winning.
func loadConfig(c *cli.Command) (domain.Config, error) {
	var cfg domain.Config

	configFile := c.String("config")
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("error loading config: %w", err)
		}
	} else if c.IsSet("config") {
		return cfg, fmt.Errorf("error loading config %s: %w", configFile, err)
	}

	if err := k.Load(env.Provider("REPOFORGE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "REPOFORGE_"))
	}), nil); err != nil {
		return cfg, fmt.Errorf("error loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}

	overrideString(c, "backend", &cfg.Backend)
	overrideString(c, "org", &cfg.Org)
	overrideString(c, "base-url", &cfg.BaseURL)
	overrideString(c, "token", &cfg.Token)
	overrideString(c, "user", &cfg.User)
	overrideString(c, "teams-file", &cfg.TeamsFile)
	overrideString(c, "work-dir", &cfg.WorkDir)
	if len(c.StringSlice("template")) > 0 {
		cfg.Templates = c.StringSlice("template")
	}
	if len(c.StringSlice("team")) > 0 {
		cfg.Teams = c.StringSlice("team")
	}
	if c.IsSet("private") || !k.Exists("private") {
		cfg.Private = c.Bool("private")
	}
	if c.IsSet("concurrency") || !k.Exists("concurrency") {
		cfg.Concurrency = int(c.Int("concurrency"))
	}
	return cfg, nil
}

func overrideString(c *cli.Command, name string, dst *string) {
	if v := c.String(name); v != "" && (c.IsSet(name) || *dst == "") {
		*dst = v
	}
}

func newLogger(verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func runSetup(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	teams, err := gatherTeams(cfg)
	if err != nil {
		return err
	}
	if len(cfg.Templates) == 0 {
		return fmt.Errorf("%w: at least one --template is required", domain.ErrInvalidInput)
	}
	templates := make([]domain.TemplateRepo, 0, len(cfg.Templates))
	for _, location := range cfg.Templates {
		templates = append(templates, domain.NewTemplateRepo(location))
	}

	api, err := platforms.New(platforms.Options{
		Backend: cfg.Backend,
		BaseURL: cfg.BaseURL,
		Org:     cfg.Org,
		Token:   cfg.Token,
		User:    cfg.User,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir %s: %w", cfg.WorkDir, err)
	}
	cache, err := gitinfra.NewTemplateCache(cfg.WorkDir)
	if err != nil {
		return err
	}

	result, err := domain.Setup(ctx, domain.SetupOptions{
		Platform:      api,
		Templates:     cache,
		Teams:         teams,
		TemplateRepos: templates,
		Private:       cfg.Private,
		Concurrency:   cfg.Concurrency,
		Logger:        newLogger(c.Bool("verbose")),
	})
	if err != nil {
		return err
	}

	printSummary(result)
	if !result.IsSuccess() {
		return fmt.Errorf("setup completed with %d errors", len(result.Errors))
	}
	return nil
}

func runVerify(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	api, err := platforms.New(platforms.Options{
		Backend: cfg.Backend,
		BaseURL: cfg.BaseURL,
		Org:     cfg.Org,
		Token:   cfg.Token,
		User:    cfg.User,
	})
	if err != nil {
		return err
	}

	if err := api.VerifySettings(ctx); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	fmt.Printf("Verification successful, can access organization: %s\n", api.OrgName())
	return nil
}

func gatherTeams(cfg domain.Config) ([]domain.StudentTeam, error) {
	if cfg.TeamsFile != "" {
		return roster.LoadTeamsFile(cfg.TeamsFile)
	}
	if len(cfg.Teams) == 0 {
		return nil, fmt.Errorf("%w: either --teams-file or --team is required", domain.ErrInvalidInput)
	}
	teams := make([]domain.StudentTeam, 0, len(cfg.Teams))
	for _, arg := range cfg.Teams {
		team, err := roster.ParseTeamArg(arg)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}

func printSummary(result *domain.SetupResult) {
	fmt.Printf("Successfully created: %d repositories\n", len(result.SuccessfulRepos))
	if len(result.ExistingRepos) > 0 {
		fmt.Printf("Already existed: %d repositories\n", len(result.ExistingRepos))
	}
	if len(result.Errors) > 0 {
		fmt.Printf("Errors: %d repositories\n", len(result.Errors))
		for _, unitErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "  - %s/%s: %v\n", unitErr.TeamName, unitErr.RepoName, unitErr.Err)
		}
	}
}
