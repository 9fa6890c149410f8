package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. BANKDEPLOY_HEALTH_MAX_ATTEMPTS=10.
const EnvPrefix = "BANKDEPLOY"

// Config holds all application configuration.
type Config struct {
	// ProjectDir is the directory holding the compose file and the
	// application sources. Relative paths below are resolved against it.
	ProjectDir string `mapstructure:"project_dir"`

	Docker     DockerConfig     `mapstructure:"docker"`
	Compose    ComposeConfig    `mapstructure:"compose"`
	Files      FilesConfig      `mapstructure:"files"`
	Ports      PortsConfig      `mapstructure:"ports"`
	Deploy     DeployConfig     `mapstructure:"deploy"`
	Containers ContainersConfig `mapstructure:"containers"`
	Health     HealthConfig     `mapstructure:"health"`
	Image      ImageConfig      `mapstructure:"image"`
	Log        LogConfig        `mapstructure:"log"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	// Host overrides socket auto-detection when non-empty.
	Host string `mapstructure:"host"`
}

// ComposeConfig describes the compose project.
type ComposeConfig struct {
	File string `mapstructure:"file"`

	// ProjectName is the compose project name. Empty means the compose
	// default: the base name of the project directory.
	ProjectName string `mapstructure:"project_name"`
}

// FilesConfig lists paths that must exist before any container action.
type FilesConfig struct {
	Required    []string `mapstructure:"required"`
	RequiredDir []string `mapstructure:"required_dirs"`
}

// PortsConfig holds the fixed set of host ports the deployment claims.
type PortsConfig struct {
	Required []int `mapstructure:"required"`

	// Settle is the wait between stopping a previous deployment and
	// re-checking the ports.
	Settle time.Duration `mapstructure:"settle"`
}

// DeployConfig controls the build and start phase.
type DeployConfig struct {
	// Settle is the wait after `compose up` before validation starts.
	Settle time.Duration `mapstructure:"settle"`
}

// ContainersConfig controls post-deploy validation.
type ContainersConfig struct {
	// RequiredName is a container name filter; a running container
	// matching it must exist after deployment.
	RequiredName string `mapstructure:"required_name"`

	// ImageReference filters the built images listed for the operator.
	ImageReference string `mapstructure:"image_reference"`
}

// HealthConfig controls the HTTP health checks.
type HealthConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
	BackendURL  string        `mapstructure:"backend_url"`
	FrontendURL string        `mapstructure:"frontend_url"`
}

// ImageConfig names the base image that is inspected after deployment.
type ImageConfig struct {
	Name   string `mapstructure:"name"`
	Output string `mapstructure:"output"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	NoColor bool   `mapstructure:"no_color"`
}

// setDefaults registers a default for every key so that environment
// overrides work even when no config file sets the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("project_dir", ".")
	v.SetDefault("docker.host", "")
	v.SetDefault("compose.file", "docker-compose.yml")
	v.SetDefault("compose.project_name", "")
	v.SetDefault("files.required", []string{"docker-compose.yml", "nginx.conf"})
	v.SetDefault("files.required_dirs", []string{"banking-backend", "banking-frontend"})
	v.SetDefault("ports.required", []int{80, 3000, 8080})
	v.SetDefault("ports.settle", "5s")
	v.SetDefault("deploy.settle", "10s")
	v.SetDefault("containers.required_name", "banking-backend")
	v.SetDefault("containers.image_reference", "*banking*")
	v.SetDefault("health.max_attempts", 30)
	v.SetDefault("health.delay", "2s")
	v.SetDefault("health.timeout", "5s")
	v.SetDefault("health.backend_url", "http://localhost:8080/api/auth/login")
	v.SetDefault("health.frontend_url", "http://localhost:80/")
	v.SetDefault("image.name", "nginx:alpine")
	v.SetDefault("image.output", "image_inspect.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.no_color", false)
}

// Load loads configuration from defaults, the optional file at path and
// the environment. An empty path skips the file.
//
// Files ending in .json or .jsonc may contain comments and trailing
// commas; they are normalized with jsonc before viper parses them.
// Any other extension is handed to viper as-is (YAML, TOML, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if err := readConfigFile(v, path); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".jsonc" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(data))); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.Health.MaxAttempts < 1 {
		return fmt.Errorf("health.max_attempts must be at least 1, got %d", c.Health.MaxAttempts)
	}
	if c.Health.Delay < 0 {
		return fmt.Errorf("health.delay must not be negative, got %s", c.Health.Delay)
	}
	if c.Health.Timeout <= 0 {
		return fmt.Errorf("health.timeout must be positive, got %s", c.Health.Timeout)
	}
	if c.Ports.Settle < 0 || c.Deploy.Settle < 0 {
		return fmt.Errorf("settle durations must not be negative")
	}
	if len(c.Ports.Required) == 0 {
		return fmt.Errorf("ports.required must list at least one port")
	}
	for _, p := range c.Ports.Required {
		if p < 1 || p > 65535 {
			return fmt.Errorf("ports.required: port %d out of range (1-65535)", p)
		}
	}
	if c.Compose.File == "" {
		return fmt.Errorf("compose.file must not be empty")
	}
	if c.Health.BackendURL == "" || c.Health.FrontendURL == "" {
		return fmt.Errorf("health.backend_url and health.frontend_url must be set")
	}
	return nil
}

// ComposeFilePath returns the compose file path resolved against ProjectDir.
func (c *Config) ComposeFilePath() string {
	return c.resolve(c.Compose.File)
}

// ImageOutputPath returns the inspection output path resolved against ProjectDir.
func (c *Config) ImageOutputPath() string {
	return c.resolve(c.Image.Output)
}

// ProjectName returns the compose project name, falling back to the
// compose default derived from the project directory: its base name
// lowercased, with characters compose rejects removed ("Bank.App" gives
// "bankapp").
func (c *Config) ProjectName() string {
	if c.Compose.ProjectName != "" {
		return c.Compose.ProjectName
	}
	abs, err := filepath.Abs(c.ProjectDir)
	if err != nil {
		abs = c.ProjectDir
	}
	return loader.NormalizeProjectName(filepath.Base(abs))
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}
