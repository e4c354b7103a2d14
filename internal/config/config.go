package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		URL            string `yaml:"url"`
		MigrationsPath string `yaml:"migrations_path"`
		MaxOpenConns   int    `yaml:"max_open_conns"`
		MaxIdleConns   int    `yaml:"max_idle_conns"`
	} `yaml:"database"`

	Gemini struct {
		APIKey         string `yaml:"api_key"`
		ModelName      string `yaml:"model_name"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"gemini"`

	Signer struct {
		Mode                  string `yaml:"mode"` // "recorder" or "message"
		AgentURL              string `yaml:"agent_url"`
		ContractAddress       string `yaml:"contract_address"`
		ChainID               int64  `yaml:"chain_id"`
		ConfirmPollSeconds    int64  `yaml:"confirm_poll_seconds"`
		RequestTimeoutSeconds int64  `yaml:"request_timeout_seconds"`
	} `yaml:"signer"`

	Session struct {
		JWTSecret     string `yaml:"jwt_secret"`
		TokenTTLHours int64  `yaml:"token_ttl_hours"`
	} `yaml:"session"`

	Workflow struct {
		PersistTimeoutSeconds int64 `yaml:"persist_timeout_seconds"`
	} `yaml:"workflow"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Set defaults
	if config.Server.Port == "" {
		config.Server.Port = "8090"
	}

	if config.Database.MigrationsPath == "" {
		config.Database.MigrationsPath = "file://migrations"
	}

	if config.Database.MaxOpenConns == 0 {
		config.Database.MaxOpenConns = 10
	}

	if config.Database.MaxIdleConns == 0 {
		config.Database.MaxIdleConns = 5
	}

	if config.Gemini.ModelName == "" {
		config.Gemini.ModelName = "gemini-1.5-flash"
	}

	if config.Gemini.TimeoutSeconds == 0 {
		config.Gemini.TimeoutSeconds = 30
	}

	if config.Signer.Mode == "" {
		config.Signer.Mode = "message"
	}

	if config.Signer.ChainID == 0 {
		config.Signer.ChainID = 11155111 // Sepolia
	}

	if config.Signer.ConfirmPollSeconds == 0 {
		config.Signer.ConfirmPollSeconds = 2
	}

	if config.Signer.RequestTimeoutSeconds == 0 {
		config.Signer.RequestTimeoutSeconds = 30
	}

	if config.Session.TokenTTLHours == 0 {
		config.Session.TokenTTLHours = 24
	}

	if config.Workflow.PersistTimeoutSeconds == 0 {
		config.Workflow.PersistTimeoutSeconds = 10
	}

	// Expand environment variables in secrets
	config.Database.URL = os.ExpandEnv(config.Database.URL)
	config.Gemini.APIKey = os.ExpandEnv(config.Gemini.APIKey)
	config.Session.JWTSecret = os.ExpandEnv(config.Session.JWTSecret)

	return config, nil
}
