package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/studycompanion/internal/service"
)

// GlobalConfig is the credential file stored under the user config directory
type GlobalConfig struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url"`
}

// Overridden in tests.
var getConfigDirFunc = defaultGetConfigDir

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "study"), nil
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// LoadGlobalConfig returns nil without error when no config file exists.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config with 0600 permissions.
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := getConfigDirFunc()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, "config.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// IsValidAPIKey validates the API key format: stc_ + 64 hex chars
func IsValidAPIKey(key string) bool {
	return service.IsValidAPIToken(key)
}

// CredentialSource represents where credentials came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceNone         CredentialSource = "none"
)

// GetCredentialSource checks flag, env, then global config and reports the first
// source that supplies an API key. The URL falls back to the default.
func GetCredentialSource(flagAPIKey, flagAPIURL string) (CredentialSource, string, string) {
	withURL := func(url string) string {
		if url == "" {
			return defaultAPIURL
		}
		return url
	}

	if flagAPIKey != "" {
		return SourceFlag, flagAPIKey, withURL(flagAPIURL)
	}

	if key := os.Getenv(envAPIKey); key != "" {
		return SourceEnv, key, withURL(os.Getenv(envAPIURL))
	}

	config, err := LoadGlobalConfig()
	if err == nil && config != nil && config.APIKey != "" {
		return SourceGlobalConfig, config.APIKey, withURL(config.APIURL)
	}

	return SourceNone, "", ""
}
