// Package config loads and validates the deployment configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default name of the deployment config file, looked
// up in the current working directory.
const ConfigFileName = "htdeploy.yaml"

// DefaultManifestName is used when Config.Manifest is empty.
const DefaultManifestName = ".htdeployment"

// DefaultTempDir is used when Config.TempDir is empty.
const DefaultTempDir = ".htdeploy_temp"

// Config is the root of htdeploy.yaml.
type Config struct {
	ProjectName string     `yaml:"project_name"`
	LocalPath   string     `yaml:"local_path"`
	Auth        Auth       `yaml:"auth"`
	Ignores     []string   `yaml:"ignores"`
	Preprocess  []string   `yaml:"preprocess"`
	AllowDelete bool       `yaml:"allow_delete"`
	Purge       []string   `yaml:"purge"`
	Manifest    string     `yaml:"manifest,omitempty"`
	TempDir     string     `yaml:"temp_dir,omitempty"`
	Jobs        JobsConfig `yaml:"jobs"`
	TestMode    bool       `yaml:"test_mode,omitempty"`
}

// Auth describes how to reach the remote server.
type Auth struct {
	Username   string `yaml:"username"`
	PrivateKey string `yaml:"private_key,omitempty"`
	Password   string `yaml:"password,omitempty"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	RemotePath string `yaml:"remote_path"`
}

// JobsConfig lists the pre- and post-deploy job specs, as scheme-prefixed
// strings understood by internal/jobs.ParseJob ("local:", "remote:",
// "http:").
type JobsConfig struct {
	Before []string `yaml:"before,omitempty"`
	After  []string `yaml:"after,omitempty"`
}

// ConfigError wraps a configuration-loading or validation failure with
// the field or problem description that caused it.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ManifestName returns the configured manifest file name, or the default.
func (c *Config) ManifestName() string {
	if strings.TrimSpace(c.Manifest) == "" {
		return DefaultManifestName
	}
	return c.Manifest
}

// TempDirName returns the configured temp dir, or the default.
func (c *Config) TempDirName() string {
	if strings.TrimSpace(c.TempDir) == "" {
		return DefaultTempDir
	}
	return c.TempDir
}

// ValidateConfig checks required fields and accumulates every problem found,
// rather than failing on the first one, so a user can fix a config in one
// pass.
func ValidateConfig(cfg *Config) error {
	var problems []string

	if strings.TrimSpace(cfg.ProjectName) == "" {
		problems = append(problems, "project_name cannot be empty")
	}
	if strings.TrimSpace(cfg.LocalPath) == "" {
		problems = append(problems, "local_path cannot be empty")
	} else if _, err := os.Stat(cfg.LocalPath); os.IsNotExist(err) {
		problems = append(problems, fmt.Sprintf("local_path does not exist: %s", cfg.LocalPath))
	}

	if strings.TrimSpace(cfg.Auth.Username) == "" {
		problems = append(problems, "auth.username cannot be empty")
	}
	if strings.TrimSpace(cfg.Auth.Host) == "" {
		problems = append(problems, "auth.host cannot be empty")
	}
	if strings.TrimSpace(cfg.Auth.Port) == "" {
		problems = append(problems, "auth.port cannot be empty")
	} else if port, err := strconv.Atoi(cfg.Auth.Port); err != nil || port <= 0 || port > 65535 {
		problems = append(problems, "auth.port must be a number between 1-65535")
	}
	if strings.TrimSpace(cfg.Auth.RemotePath) == "" {
		problems = append(problems, "auth.remote_path cannot be empty")
	}
	if strings.TrimSpace(cfg.Auth.PrivateKey) != "" {
		if _, err := os.Stat(cfg.Auth.PrivateKey); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("auth.private_key file does not exist: %s", cfg.Auth.PrivateKey))
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Field: "validation", Err: errors.New(strings.Join(problems, "\n"))}
	}
	return nil
}

// ConfigExists reports whether ConfigFileName is present in the current
// working directory.
func ConfigExists() bool {
	_, err := os.Stat(ConfigFileName)
	return !os.IsNotExist(err)
}

// GetConfigPath returns the absolute path to the config file.
func GetConfigPath() string {
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ConfigFileName)
}

// LoadAndValidateConfig reads ConfigFileName from the current directory,
// interpolates ${VAR} placeholders, unmarshals it, and validates it.
func LoadAndValidateConfig() (*Config, error) {
	if !ConfigExists() {
		return nil, &ConfigError{Field: ConfigFileName, Err: errors.New("not found; run 'htdeploy init' first")}
	}

	data, err := os.ReadFile(ConfigFileName)
	if err != nil {
		return nil, &ConfigError{Field: ConfigFileName, Err: err}
	}

	envMap, _ := loadDotEnvIfExists(filepath.Dir(ConfigFileName))
	rendered := interpolateEnv(string(data), envMap)

	var cfg Config
	if err := yaml.Unmarshal([]byte(rendered), &cfg); err != nil {
		return nil, &ConfigError{Field: ConfigFileName, Err: err}
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnvIfExists loads a .env file from dir, if present.
func loadDotEnvIfExists(dir string) (map[string]string, error) {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	m, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}, err
	}
	return m, nil
}

// interpolateEnv replaces ${VAR} (and $VAR) occurrences in input. OS
// environment variables take precedence over envMap (loaded from .env);
// an unset variable is replaced with the empty string.
func interpolateEnv(input string, envMap map[string]string) string {
	lookup := func(name string) string {
		if v := os.Getenv(name); v != "" {
			return v
		}
		if v, ok := envMap[name]; ok {
			return v
		}
		return ""
	}
	return os.Expand(input, lookup)
}
