package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	OutputText = "text"
	OutputJSON = "json"

	LogFormatText = "text"
	LogFormatJSON = "json"

	DefaultEndpoint       = "https://testnet.fuel.network/v1/graphql"
	DefaultMaxRetries     = 3
	DefaultTimeout        = 30 * time.Second
	DefaultMaxConcurrency = 1
)

// Viper keys, shared with the command-line flags.
const (
	KeyEndpoint       = "endpoint"
	KeyHeight         = "height"
	KeyLatest         = "latest"
	KeyMaxRetries     = "max-retries"
	KeyTimeout        = "timeout"
	KeyMaxConcurrency = "max-concurrency"
	KeyOutput         = "output"
	KeyProgress       = "progress"
	KeyPushgateway    = "pushgateway"
	KeyPushJob        = "push-job"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyLogFile        = "log-file"
	KeyLogMaxSizeMB   = "log-max-size-mb"
	KeyLogMaxBackups  = "log-max-backups"
	KeyLogMaxAgeDays  = "log-max-age-days"
	KeyLogCompress    = "log-compress"
)

// VerifyConfig holds the settings of a single verification run.
type VerifyConfig struct {
	Endpoint       string
	Height         uint64
	Latest         bool
	MaxRetries     uint
	Timeout        time.Duration
	MaxConcurrency uint
	Output         string
	Progress       bool
	Pushgateway    string
	PushJob        string
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level          string
	Format         string
	Filename       string
	MaxSizeInMB    int
	MaxBackups     int
	MaxAgeInDays   int
	CompressBackup bool
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyEndpoint, DefaultEndpoint)
	v.SetDefault(KeyMaxRetries, DefaultMaxRetries)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyMaxConcurrency, DefaultMaxConcurrency)
	v.SetDefault(KeyOutput, OutputText)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, LogFormatText)
	v.SetDefault(KeyLogMaxSizeMB, 100)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAgeDays, 28)
}

// LoadVerifyConfig reads the verification settings from v.
func LoadVerifyConfig(v *viper.Viper) (VerifyConfig, error) {
	cfg := VerifyConfig{
		Endpoint:       v.GetString(KeyEndpoint),
		Height:         v.GetUint64(KeyHeight),
		Latest:         v.GetBool(KeyLatest),
		MaxRetries:     v.GetUint(KeyMaxRetries),
		Timeout:        v.GetDuration(KeyTimeout),
		MaxConcurrency: v.GetUint(KeyMaxConcurrency),
		Output:         strings.ToLower(v.GetString(KeyOutput)),
		Progress:       v.GetBool(KeyProgress),
		Pushgateway:    v.GetString(KeyPushgateway),
		PushJob:        v.GetString(KeyPushJob),
	}
	if err := cfg.Validate(v.IsSet(KeyHeight)); err != nil {
		return VerifyConfig{}, err
	}
	return cfg, nil
}

// Validate checks the settings. heightSet tells whether a height was given explicitly.
func (c VerifyConfig) Validate(heightSet bool) error {
	if c.Endpoint == "" {
		return fmt.Errorf("%s must not be empty", KeyEndpoint)
	}
	if c.Latest && heightSet {
		return fmt.Errorf("--%s and --%s are mutually exclusive", KeyHeight, KeyLatest)
	}
	if !c.Latest && !heightSet {
		return fmt.Errorf("one of --%s or --%s is required", KeyHeight, KeyLatest)
	}
	if c.Height > uint64(^uint32(0)) {
		return fmt.Errorf("%s %d exceeds the maximum block height", KeyHeight, c.Height)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyTimeout)
	}
	if c.MaxConcurrency == 0 {
		return fmt.Errorf("%s must be at least 1", KeyMaxConcurrency)
	}
	if c.Output != OutputText && c.Output != OutputJSON {
		return fmt.Errorf("%s must be %q or %q, got %q", KeyOutput, OutputText, OutputJSON, c.Output)
	}
	return nil
}

// LoadLogConfig reads the logging settings from v.
func LoadLogConfig(v *viper.Viper) (LogConfig, error) {
	cfg := LogConfig{
		Level:          v.GetString(KeyLogLevel),
		Format:         strings.ToLower(v.GetString(KeyLogFormat)),
		Filename:       v.GetString(KeyLogFile),
		MaxSizeInMB:    v.GetInt(KeyLogMaxSizeMB),
		MaxBackups:     v.GetInt(KeyLogMaxBackups),
		MaxAgeInDays:   v.GetInt(KeyLogMaxAgeDays),
		CompressBackup: v.GetBool(KeyLogCompress),
	}
	if err := cfg.Validate(); err != nil {
		return LogConfig{}, err
	}
	return cfg, nil
}

// Validate checks the level and format, and the rotation limits when logging to a file.
func (c LogConfig) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Format != LogFormatText && c.Format != LogFormatJSON {
		return fmt.Errorf("%s must be %q or %q, got %q", KeyLogFormat, LogFormatText, LogFormatJSON, c.Format)
	}
	if c.Filename != "" {
		if c.MaxSizeInMB <= 0 {
			return fmt.Errorf("%s should be larger than 0 if %s is set", KeyLogMaxSizeMB, KeyLogFile)
		}
		if c.MaxBackups < 0 {
			return fmt.Errorf("%s must not be negative", KeyLogMaxBackups)
		}
	}
	return nil
}

// SlogLevel parses Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return level, fmt.Errorf("invalid %s %q: %w", KeyLogLevel, c.Level, err)
	}
	return level, nil
}
