package domain

type Config struct {
	Backend     string   `koanf:"backend"`
	Org         string   `koanf:"org"`
	BaseURL     string   `koanf:"base_url"`
	Token       string   `koanf:"token"`
	User        string   `koanf:"user"`
	Templates   []string `koanf:"templates"`
	TeamsFile   string   `koanf:"teams_file"`
	Teams       []string `koanf:"teams"`
	WorkDir     string   `koanf:"work_dir"`
	Private     bool     `koanf:"private"`
	Concurrency int      `koanf:"concurrency"`
}
