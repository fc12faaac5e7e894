package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CHATRELAY_SERVER_ADDR.
const EnvPrefix = "CHATRELAY"

// compatEnv lists the OpenAI-style names accepted in addition to the
// prefixed ones. The prefixed name wins when both are set.
var compatEnv = map[string]string{
	"provider.api_key":  "OPENAI_API_KEY",
	"provider.base_url": "OPENAI_API_BASE_URL",
	"provider.model":    "OPENAI_API_MODEL",
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Fs is the filesystem config files are read from. Defaults to the OS.
	Fs afero.Fs
	// ConfigFile is an explicit config path. A missing explicit file is an error.
	ConfigFile string
	// SearchPaths are scanned for config.{yaml,json,toml} when ConfigFile is
	// empty. Defaults to the XDG config directory.
	SearchPaths []string
}

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	opts      LoadOptions
	validator *Validator
}

// NewLoader creates a new configuration loader
func NewLoader(opts LoadOptions) *Loader {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.ConfigFile == "" && len(opts.SearchPaths) == 0 {
		opts.SearchPaths = []string{GetDefaultConfigDir()}
	}
	return &Loader{
		opts:      opts,
		validator: NewValidator(),
	}
}

// Load is shorthand for NewLoader(opts).Load().
func Load(opts LoadOptions) (*Config, error) {
	return NewLoader(opts).Load()
}

// Load merges defaults, the config file and the environment, in that order,
// and validates the result.
func (l *Loader) Load() (*Config, error) {
	v := l.newViper()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.Log.Level = strings.ToLower(config.Log.Level)

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// UsedFile reports the config file Load would read, or "" when none exists.
func (l *Loader) UsedFile() string {
	v := l.newViper()
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

func (l *Loader) newViper() *viper.Viper {
	v := viper.New()
	v.SetFs(l.opts.Fs)

	if l.opts.ConfigFile != "" {
		v.SetConfigFile(l.opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		for _, p := range l.opts.SearchPaths {
			v.AddConfigPath(p)
		}
	}

	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range compatEnv {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), name)
	}
	return v
}

// setDefaults registers every key so environment overrides are visible to
// Unmarshal even when no config file mentions them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("auth.identity_header", d.Auth.IdentityHeader)
	v.SetDefault("auth.require_identity", d.Auth.RequireIdentity)

	v.SetDefault("provider.api_key", d.Provider.APIKey)
	v.SetDefault("provider.base_url", d.Provider.BaseURL)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.organization", d.Provider.Organization)
	v.SetDefault("provider.temperature", d.Provider.Temperature)
	v.SetDefault("provider.max_tokens", d.Provider.MaxTokens)
	v.SetDefault("provider.timeout", d.Provider.Timeout)
	v.SetDefault("provider.retry_count", d.Provider.RetryCount)
	v.SetDefault("provider.retry_delay", d.Provider.RetryDelay)
	v.SetDefault("provider.verify_model", d.Provider.VerifyModel)

	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("chat.system_prompt", d.Chat.SystemPrompt)
	v.SetDefault("chat.history_policy", d.Chat.HistoryPolicy)
	v.SetDefault("chat.history_limit", d.Chat.HistoryLimit)
	v.SetDefault("chat.max_message_bytes", d.Chat.MaxMessageBytes)
	v.SetDefault("chat.finalize_timeout", d.Chat.FinalizeTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
