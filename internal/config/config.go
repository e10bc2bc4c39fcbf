package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"podrepo-agent/internal/constants"
	"podrepo-agent/pkg/models"

	"github.com/spf13/viper"
)

const (
	DefaultLogLevel         = constants.LogLevelInfo
	DefaultPodBinary        = "pod"
	DefaultListenAddr       = "127.0.0.1:7319"
	DefaultCDNTimeout       = 15
	DefaultUpdateTimeout    = 600
	DefaultDiscoveryTimeout = 30
	envPrefix               = "PODREPO"
)

var (
	DefaultConfigFile = filepath.Join(homeDir(), ".config", "podrepo-agent", "config.yml")
	DefaultLogFile    = filepath.Join(homeDir(), "Library", "Logs", "podrepo-agent", "agent.log")
	DefaultReposDir   = filepath.Join(homeDir(), ".cocoapods", "repos")
)

// Keys accepted by "config set"
var settableKeys = map[string]bool{
	"repos_dir":          true,
	"project_dir":        true,
	"pod_binary":         true,
	"log_file":           true,
	"log_level":          true,
	"listen_addr":        true,
	"cdn_timeout":        true,
	"update_timeout":     true,
	"discovery_timeout":  true,
	"prune_on_discovery": true,
	"skip_ssl_verify":    true,
}

// Manager loads and persists the agent configuration
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *models.Config
}

// New creates a configuration manager populated with defaults
func New() *Manager {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("repos_dir", DefaultReposDir)
	v.SetDefault("project_dir", ".")
	v.SetDefault("pod_binary", DefaultPodBinary)
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("cdn_timeout", DefaultCDNTimeout)
	v.SetDefault("update_timeout", DefaultUpdateTimeout)
	v.SetDefault("discovery_timeout", DefaultDiscoveryTimeout)
	v.SetDefault("prune_on_discovery", false)
	v.SetDefault("skip_ssl_verify", false)

	m := &Manager{
		v:          v,
		configFile: DefaultConfigFile,
		config:     &models.Config{},
	}
	if cfg, err := decode(m.v); err == nil {
		m.config = cfg
	}
	return m
}

// SetConfigFile sets the path of the configuration file
func (m *Manager) SetConfigFile(path string) {
	if path != "" {
		m.configFile = path
	}
}

// GetConfigFile returns the path of the configuration file
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *models.Config {
	return m.config
}

// LoadConfig reads the configuration file. A missing file is not an error;
// defaults and PODREPO_* environment variables still apply.
func (m *Manager) LoadConfig() error {
	m.v.SetConfigFile(m.configFile)
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read config file %s: %w", m.configFile, err)
		}
	}

	cfg, err := decode(m.v)
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	m.config = cfg
	return nil
}

// Set updates a single configuration key in memory. A value that does not
// decode leaves the configuration unchanged.
func (m *Manager) Set(key, value string) error {
	if !settableKeys[key] {
		return fmt.Errorf("unknown config key %q", key)
	}

	trial := viper.New()
	if err := trial.MergeConfigMap(m.v.AllSettings()); err != nil {
		return fmt.Errorf("failed to copy config: %w", err)
	}
	trial.Set(key, value)
	if _, err := decode(trial); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	m.v.Set(key, value)
	cfg, err := decode(m.v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	m.config = cfg
	return nil
}

func decode(v *viper.Viper) (*models.Config, error) {
	cfg := &models.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.ReposDir = expandHome(cfg.ReposDir)
	cfg.ProjectDir = expandHome(cfg.ProjectDir)
	cfg.LogFile = expandHome(cfg.LogFile)
	return cfg, nil
}

// SaveConfig writes the current configuration to the config file
func (m *Manager) SaveConfig() error {
	if err := os.MkdirAll(filepath.Dir(m.configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	m.v.Set("repos_dir", m.config.ReposDir)
	m.v.Set("project_dir", m.config.ProjectDir)
	m.v.Set("pod_binary", m.config.PodBinary)
	m.v.Set("log_file", m.config.LogFile)
	m.v.Set("log_level", m.config.LogLevel)
	m.v.Set("listen_addr", m.config.ListenAddr)
	m.v.Set("cdn_timeout", m.config.CDNTimeout)
	m.v.Set("update_timeout", m.config.UpdateTimeout)
	m.v.Set("discovery_timeout", m.config.DiscoveryTimeout)
	m.v.Set("prune_on_discovery", m.config.PruneOnDiscovery)
	m.v.Set("skip_ssl_verify", m.config.SkipSSLVerify)

	if err := m.v.WriteConfigAs(m.configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
