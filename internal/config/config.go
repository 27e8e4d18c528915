// Package config loads runtime settings from defaults, the TOML config file,
// a .env file and RAGCORE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

const (
	// EnvPrefix prefixes every environment override: RAGCORE_EMBEDDING_MODEL sets embedding.model.
	EnvPrefix = "RAGCORE"

	// HomeDirName is the per-user directory under $HOME.
	HomeDirName = ".ragcore"

	// FileName is the config file inside the home directory.
	FileName = "config.toml"
)

// Options controls where configuration is read from.
type Options struct {
	// ConfigFile is an explicit config path (--config). It must exist.
	ConfigFile string

	// EnvFile is the dotenv file to load. Defaults to ".env"; a missing file is ignored.
	EnvFile string

	// Home overrides ~/.ragcore.
	Home string
}

// Config is the resolved runtime configuration.
type Config struct {
	Settings domain.AppSettings

	// Home is the ragcore home directory holding data, prompts and the config file.
	Home string

	// File is the config file path in effect, whether or not it exists yet.
	File string
}

// PromptDir is where editable prompt templates live.
func (c *Config) PromptDir() string {
	return filepath.Join(c.Home, "prompts")
}

// Load resolves settings. Every recognised key gets a default, so environment
// variables override keys that the file never mentions.
func Load(opts Options) (*Config, error) {
	home, err := resolveHome(opts.Home)
	if err != nil {
		return nil, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := domain.DefaultAppSettings()
	defaults.DataDir = filepath.Join(home, "data")
	for _, k := range domain.SettingKeys() {
		v.SetDefault(k.Name, k.Persisted(k.Value(&defaults)))
	}

	file := opts.ConfigFile
	if file == "" {
		file = filepath.Join(home, FileName)
		if _, err := os.Stat(file); err == nil {
			v.SetConfigFile(file)
		}
	} else {
		v.SetConfigFile(file)
	}
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	settings := defaults
	for _, k := range domain.SettingKeys() {
		if err := k.Apply(&settings, v.Get(k.Name)); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	applyProviderKeys(&settings)

	if err := settings.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &Config{Settings: settings, Home: home, File: file}, nil
}

// applyProviderKeys fills API keys from the providers' conventional variables
// when no ragcore-specific key is set.
func applyProviderKeys(s *domain.AppSettings) {
	if s.Embedding.APIKey == "" && s.Embedding.Provider == domain.AIProviderOpenAI {
		s.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if s.Generation.Remote.APIKey == "" {
		switch s.Generation.Remote.Provider {
		case domain.AIProviderOpenAI:
			s.Generation.Remote.APIKey = os.Getenv("OPENAI_API_KEY")
		case domain.AIProviderAnthropic:
			s.Generation.Remote.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

func resolveHome(home string) (string, error) {
	if home != "" {
		return home, nil
	}
	if env := os.Getenv(EnvPrefix + "_HOME"); env != "" {
		return env, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: get home directory: %w", err)
	}
	return filepath.Join(userHome, HomeDirName), nil
}
