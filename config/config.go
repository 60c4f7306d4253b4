// Package config layers the bridge's runtime configuration: defaults set in
// code, overridden by an optional config file, overridden by SCIMBRIDGE_*
// environment variables.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every value spec.md §6 names as a caller-provided
// collaborator, plus the ambient additions SPEC_FULL.md §10.1 adds.
type Config struct {
	BaseOU          string
	DefaultPassword string
	Port            int
	TLSCertFile     string
	TLSKeyFile      string
	APIKey          string
	DirectoryServer string

	DatabaseURL    string
	ToolTimeout    time.Duration
	ToolExecutable string
	LogLevel       string
}

// Load reads configuration from configFile (if non-empty), then from
// SCIMBRIDGE_*-prefixed environment variables, which always win. configFile
// may be a .env file, in which case it is loaded with godotenv first so its
// keys reach the process environment the same way f0oster/adspy's
// settings.env did, before viper's own file reader has a chance at it.
func Load(configFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("port", 8443)
	v.SetDefault("tool_executable", "powershell.exe")
	v.SetDefault("tool_timeout_seconds", 30)
	v.SetDefault("log_level", "info")

	if configFile != "" {
		if strings.HasSuffix(configFile, ".env") {
			_ = godotenv.Load(configFile)
		} else {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, err
			}
		}
	}

	v.SetEnvPrefix("SCIMBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		BaseOU:          v.GetString("base_ou"),
		DefaultPassword: v.GetString("default_password"),
		Port:            v.GetInt("port"),
		TLSCertFile:     v.GetString("tls_cert_file"),
		TLSKeyFile:      v.GetString("tls_key_file"),
		APIKey:          v.GetString("api_key"),
		DirectoryServer: v.GetString("directory_server"),
		DatabaseURL:     v.GetString("database_url"),
		ToolTimeout:     time.Duration(v.GetInt("tool_timeout_seconds")) * time.Second,
		ToolExecutable:  v.GetString("tool_executable"),
		LogLevel:        v.GetString("log_level"),
	}

	return cfg, nil
}
