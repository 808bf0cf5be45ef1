// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Browser backends understood by the run command.
const (
	BackendChromedp = "chromedp"
	BackendRod      = "rod"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Campaign   CampaignConfig   `mapstructure:"campaign" yaml:"campaign"`
	Timeouts   TimeoutsConfig   `mapstructure:"timeouts" yaml:"timeouts"`
	Pauses     PausesConfig     `mapstructure:"pauses" yaml:"pauses"`
	Vocabulary VocabularyConfig `mapstructure:"vocabulary" yaml:"vocabulary"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console colour of each level. Levels above error
// use the error colour.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// BrowserConfig holds settings for the browser process driving the form.
type BrowserConfig struct {
	Backend         string        `mapstructure:"backend" yaml:"backend"`
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	Lang            string        `mapstructure:"lang" yaml:"lang"`
	WindowWidth     int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int           `mapstructure:"window_height" yaml:"window_height"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Stealth         bool          `mapstructure:"stealth" yaml:"stealth"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	Linger          time.Duration `mapstructure:"linger" yaml:"linger"`
}

// CampaignConfig describes one run of repeated submissions.
// URL, Count and Delay are normally supplied on the command line.
type CampaignConfig struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	Count             int           `mapstructure:"count" yaml:"count"`
	Delay             time.Duration `mapstructure:"delay" yaml:"delay"`
	PacingJitter      float64       `mapstructure:"pacing_jitter" yaml:"pacing_jitter"`
	AnswersFile       string        `mapstructure:"answers_file" yaml:"answers_file"`
	NavigationRetries int           `mapstructure:"navigation_retries" yaml:"navigation_retries"`
	RecoveryInterval  time.Duration `mapstructure:"recovery_interval" yaml:"recovery_interval"`
	ReportFile        string        `mapstructure:"report_file" yaml:"report_file"`
}

// TimeoutsConfig bounds every wait the driver performs. None of them may be zero:
// an unbounded wait would let a stuck page hang the campaign.
type TimeoutsConfig struct {
	FormLoad         time.Duration `mapstructure:"form_load" yaml:"form_load"`
	Strategy         time.Duration `mapstructure:"strategy" yaml:"strategy"`
	SubmitStrategy   time.Duration `mapstructure:"submit_strategy" yaml:"submit_strategy"`
	ContinueStrategy time.Duration `mapstructure:"continue_strategy" yaml:"continue_strategy"`
	Confirmation     time.Duration `mapstructure:"confirmation" yaml:"confirmation"`
	Navigation       time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Script           time.Duration `mapstructure:"script" yaml:"script"`
	Teardown         time.Duration `mapstructure:"teardown" yaml:"teardown"`
}

// PausesConfig holds the mean durations of the human-like pauses.
// StdDevRatio scales each mean into the standard deviation of its jitter.
type PausesConfig struct {
	Settle         time.Duration `mapstructure:"settle" yaml:"settle"`
	Question       time.Duration `mapstructure:"question" yaml:"question"`
	FormSettle     time.Duration `mapstructure:"form_settle" yaml:"form_settle"`
	PostSubmit     time.Duration `mapstructure:"post_submit" yaml:"post_submit"`
	PostNavigation time.Duration `mapstructure:"post_navigation" yaml:"post_navigation"`
	PostContinue   time.Duration `mapstructure:"post_continue" yaml:"post_continue"`
	ScrollStep     int           `mapstructure:"scroll_step" yaml:"scroll_step"`
	StdDevRatio    float64       `mapstructure:"stddev_ratio" yaml:"stddev_ratio"`
}

// VocabularyConfig lists the localized texts used to find controls and
// recognize a recorded response.
type VocabularyConfig struct {
	SubmitLabels      []string `mapstructure:"submit_labels" yaml:"submit_labels"`
	ContinueLabels    []string `mapstructure:"continue_labels" yaml:"continue_labels"`
	ConfirmationTexts []string `mapstructure:"confirmation_texts" yaml:"confirmation_texts"`
	ConfirmationClass string   `mapstructure:"confirmation_class" yaml:"confirmation_class"`
	ConfirmationURLs  []string `mapstructure:"confirmation_urls" yaml:"confirmation_urls"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pollster")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.backend", BackendChromedp)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("browser.lang", "ru-RU")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.linger", "3s")

	// -- Campaign --
	v.SetDefault("campaign.count", 150)
	v.SetDefault("campaign.delay", "1s")
	v.SetDefault("campaign.pacing_jitter", 0.0)
	v.SetDefault("campaign.answers_file", "survey_answers.md")
	v.SetDefault("campaign.navigation_retries", 2)
	v.SetDefault("campaign.recovery_interval", "2s")

	// -- Timeouts --
	v.SetDefault("timeouts.form_load", "10s")
	v.SetDefault("timeouts.strategy", "3s")
	v.SetDefault("timeouts.submit_strategy", "5s")
	v.SetDefault("timeouts.continue_strategy", "5s")
	v.SetDefault("timeouts.confirmation", "2s")
	v.SetDefault("timeouts.navigation", "90s")
	v.SetDefault("timeouts.script", "20s")
	v.SetDefault("timeouts.teardown", "15s")

	// -- Pauses --
	v.SetDefault("pauses.settle", "300ms")
	v.SetDefault("pauses.question", "500ms")
	v.SetDefault("pauses.form_settle", "1s")
	v.SetDefault("pauses.post_submit", "800ms")
	v.SetDefault("pauses.post_navigation", "2s")
	v.SetDefault("pauses.post_continue", "500ms")
	v.SetDefault("pauses.scroll_step", 150)
	v.SetDefault("pauses.stddev_ratio", 0.2)

	// -- Vocabulary --
	v.SetDefault("vocabulary.submit_labels", []string{"Отправить", "Submit", "Send"})
	v.SetDefault("vocabulary.continue_labels", []string{
		"Отправить ещё один ответ",
		"ещё один ответ",
		"Заполнить ещё раз",
		"Submit another response",
	})
	v.SetDefault("vocabulary.confirmation_texts", []string{
		"Ваш ответ записан",
		"ответ отправлен",
		"Your response has been recorded",
	})
	v.SetDefault("vocabulary.confirmation_class", "freebirdFormviewerViewResponseConfirmationMessage")
	v.SetDefault("vocabulary.confirmation_urls", []string{"formResponse"})
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading "~" in every file path the config carries.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.Campaign.AnswersFile, &c.Campaign.ReportFile, &c.Logger.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
// The campaign URL is not checked here; the run command requires it as a flag.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Browser.Backend) {
	case BackendChromedp, BackendRod:
	default:
		return fmt.Errorf("browser.backend must be %q or %q, got %q", BackendChromedp, BackendRod, c.Browser.Backend)
	}
	if c.Campaign.Count <= 0 {
		return fmt.Errorf("campaign.count must be a positive integer")
	}
	if c.Campaign.Delay < 0 {
		return fmt.Errorf("campaign.delay must not be negative")
	}
	if c.Campaign.PacingJitter < 0 || c.Campaign.PacingJitter > 1 {
		return fmt.Errorf("campaign.pacing_jitter must be between 0.0 and 1.0")
	}
	if c.Campaign.NavigationRetries < 0 {
		return fmt.Errorf("campaign.navigation_retries must not be negative")
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if c.Pauses.StdDevRatio < 0 {
		return fmt.Errorf("pauses.stddev_ratio must not be negative")
	}
	if len(c.Vocabulary.SubmitLabels) == 0 {
		return fmt.Errorf("vocabulary.submit_labels must not be empty")
	}
	return nil
}

// Validate checks that every wait is bounded.
func (t *TimeoutsConfig) Validate() error {
	bounded := []struct {
		name string
		d    time.Duration
	}{
		{"form_load", t.FormLoad},
		{"strategy", t.Strategy},
		{"submit_strategy", t.SubmitStrategy},
		{"continue_strategy", t.ContinueStrategy},
		{"confirmation", t.Confirmation},
		{"navigation", t.Navigation},
		{"script", t.Script},
		{"teardown", t.Teardown},
	}
	for _, b := range bounded {
		if b.d <= 0 {
			return fmt.Errorf("%s must be a positive duration", b.name)
		}
	}
	return nil
}
