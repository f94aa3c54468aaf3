package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rohankatakam/bicmine/internal/errors"
)

// EnvPrefix is prepended to every environment override, e.g. BICMINE_SINKS_SQL_DSN
const EnvPrefix = "BICMINE"

// Config holds all configuration settings
type Config struct {
	// Commit log in JSON Lines, optionally gzip or zstd compressed
	Input string `mapstructure:"input" yaml:"input"`
	// Git repository path or URL, read instead of Input when set
	Repo string `mapstructure:"repo" yaml:"repo"`
	// Cache for cloned remote repositories (default: ~/.bicmine/repos)
	CloneDir string `mapstructure:"clone_dir" yaml:"clone_dir"`
	// Fixes table destination
	Output string `mapstructure:"output" yaml:"output"`
	// Stop after this many records (0 = all)
	Limit       int    `mapstructure:"limit" yaml:"limit"`
	SummaryFile string `mapstructure:"summary_file" yaml:"summary_file"`

	Log   LogConfig   `mapstructure:"log" yaml:"log"`
	Index IndexConfig `mapstructure:"index" yaml:"index"`
	Path  PathConfig  `mapstructure:"path" yaml:"path"`
	Sinks SinksConfig `mapstructure:"sinks" yaml:"sinks"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
	File  string `mapstructure:"file" yaml:"file"`
}

type IndexConfig struct {
	Tiers     []int  `mapstructure:"tiers" yaml:"tiers"`
	Ambiguity string `mapstructure:"ambiguity" yaml:"ambiguity"` // "last-wins", "reject"
}

type PathConfig struct {
	MaxHops     int `mapstructure:"max_hops" yaml:"max_hops"`
	MaxFrontier int `mapstructure:"max_frontier" yaml:"max_frontier"`
}

type SinksConfig struct {
	SQL   SQLConfig   `mapstructure:"sql" yaml:"sql"`
	Bolt  BoltConfig  `mapstructure:"bolt" yaml:"bolt"`
	Neo4j Neo4jConfig `mapstructure:"neo4j" yaml:"neo4j"`
}

type SQLConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"` // "sqlite3", "postgres"
	DSN       string `mapstructure:"dsn" yaml:"dsn"`
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
}

type BoltConfig struct {
	Path      string `mapstructure:"path" yaml:"path"`
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
}

type Neo4jConfig struct {
	URI       string `mapstructure:"uri" yaml:"uri"`
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"password"`
	Database  string `mapstructure:"database" yaml:"database"`
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
}

// Enabled reports whether a SQL sink is configured
func (s SQLConfig) Enabled() bool { return s.DSN != "" }

// Enabled reports whether a bbolt sink is configured
func (b BoltConfig) Enabled() bool { return b.Path != "" }

// Enabled reports whether a Neo4j sink is configured
func (n Neo4jConfig) Enabled() bool { return n.URI != "" }

// Default returns default configuration
func Default() *Config {
	return &Config{
		Output: "fixes.csv",
		Log: LogConfig{
			Level: "info",
		},
		Index: IndexConfig{
			Tiers:     []int{9, 8, 7, 6, 5},
			Ambiguity: "last-wins",
		},
		Sinks: SinksConfig{
			SQL: SQLConfig{
				Driver:    "sqlite3",
				BatchSize: 1000,
			},
			Bolt: BoltConfig{
				BatchSize: 1000,
			},
			Neo4j: Neo4jConfig{
				Username:  "neo4j",
				Database:  "neo4j",
				BatchSize: 500,
			},
		},
	}
}

// Load loads configuration from defaults, an optional YAML file and the
// environment, in increasing precedence
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bicmine")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".bicmine"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh, "failed to read config")
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh, "failed to unmarshal config")
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// setDefaults registers every leaf key, which AutomaticEnv needs to see
// the key during Unmarshal
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("input", cfg.Input)
	v.SetDefault("repo", cfg.Repo)
	v.SetDefault("clone_dir", cfg.CloneDir)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("limit", cfg.Limit)
	v.SetDefault("summary_file", cfg.SummaryFile)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.json", cfg.Log.JSON)
	v.SetDefault("log.file", cfg.Log.File)

	v.SetDefault("index.tiers", cfg.Index.Tiers)
	v.SetDefault("index.ambiguity", cfg.Index.Ambiguity)

	v.SetDefault("path.max_hops", cfg.Path.MaxHops)
	v.SetDefault("path.max_frontier", cfg.Path.MaxFrontier)

	v.SetDefault("sinks.sql.driver", cfg.Sinks.SQL.Driver)
	v.SetDefault("sinks.sql.dsn", cfg.Sinks.SQL.DSN)
	v.SetDefault("sinks.sql.batch_size", cfg.Sinks.SQL.BatchSize)
	v.SetDefault("sinks.bolt.path", cfg.Sinks.Bolt.Path)
	v.SetDefault("sinks.bolt.batch_size", cfg.Sinks.Bolt.BatchSize)
	v.SetDefault("sinks.neo4j.uri", cfg.Sinks.Neo4j.URI)
	v.SetDefault("sinks.neo4j.username", cfg.Sinks.Neo4j.Username)
	v.SetDefault("sinks.neo4j.password", cfg.Sinks.Neo4j.Password)
	v.SetDefault("sinks.neo4j.database", cfg.Sinks.Neo4j.Database)
	v.SetDefault("sinks.neo4j.batch_size", cfg.Sinks.Neo4j.BatchSize)
}

// loadEnvFiles loads .env files in order of precedence; godotenv never
// overrides a variable that is already set
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".bicmine", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides honours the conventional unprefixed variables used by
// the database tooling when no prefixed value was given
func applyEnvOverrides(cfg *Config) {
	if cfg.Sinks.Neo4j.URI == "" {
		cfg.Sinks.Neo4j.URI = os.Getenv("NEO4J_URI")
	}
	if user := os.Getenv("NEO4J_USER"); user != "" && os.Getenv(EnvPrefix+"_SINKS_NEO4J_USERNAME") == "" {
		cfg.Sinks.Neo4j.Username = user
	}
	if cfg.Sinks.Neo4j.Password == "" {
		cfg.Sinks.Neo4j.Password = os.Getenv("NEO4J_PASSWORD")
	}
	if cfg.Sinks.SQL.DSN == "" {
		if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
			cfg.Sinks.SQL.DSN = dsn
			cfg.Sinks.SQL.Driver = "postgres"
		}
	}

	cfg.Input = expandPath(cfg.Input)
	cfg.Repo = expandPath(cfg.Repo)
	cfg.CloneDir = expandPath(cfg.CloneDir)
	cfg.Output = expandPath(cfg.Output)
	cfg.SummaryFile = expandPath(cfg.SummaryFile)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Sinks.Bolt.Path = expandPath(cfg.Sinks.Bolt.Path)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
