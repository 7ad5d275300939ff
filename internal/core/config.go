package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/RecoveryAshes/poharvest/internal/crawlers"
	"github.com/RecoveryAshes/poharvest/internal/models"
	"github.com/RecoveryAshes/poharvest/internal/rules"
	"github.com/RecoveryAshes/poharvest/internal/storage"
	"github.com/RecoveryAshes/poharvest/internal/utils"
)

// EnvPrefix prefixes every environment override, e.g. POHARVEST_CREDENTIALS_PASSWORD.
const EnvPrefix = "POHARVEST"

// Config is the application configuration.
type Config struct {
	Target      crawlers.Target         `mapstructure:"target"`
	Credentials crawlers.Credentials    `mapstructure:"credentials"`
	Run         models.RunConfig        `mapstructure:"run"`
	Browser     crawlers.BrowserConfig  `mapstructure:"browser"`
	Timeouts    crawlers.Timeouts       `mapstructure:"timeouts"`
	Selectors   crawlers.Selectors      `mapstructure:"selectors"`
	Rules       rules.DetailSelectors   `mapstructure:"rules"`
	Output      storage.Options         `mapstructure:"output"`
	Logging     LoggingConfig           `mapstructure:"logging"`
	Resource    crawlers.ResourceConfig `mapstructure:"resource"`
	Metrics     MetricsConfig           `mapstructure:"metrics"`
	Preflight   PreflightConfig         `mapstructure:"preflight"`
	Headers     map[string]string       `mapstructure:"headers"` // extra request headers

	v *viper.Viper
}

// LoggingConfig configures the zerolog outputs.
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures lumberjack.
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// MetricsConfig enables the prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// PreflightConfig controls the HTTP check run before login.
type PreflightConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig loads configPath, or config.yaml from the default search paths
// when configPath is empty. A missing default file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".poharvest"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("decode: %w", err)}
	}
	config.v = v

	return &config, nil
}

// setDefaults registers every key, which also makes it visible to AutomaticEnv.
func setDefaults(v *viper.Viper) {
	v.SetDefault("target.login_url", "http://localhost:8069/web/login")
	v.SetDefault("target.list_url", "http://localhost:8069/odoo/purchase-orders")
	v.SetDefault("credentials.username", "")
	v.SetDefault("credentials.password", "")

	v.SetDefault("run.pages", 3)
	v.SetDefault("run.workers", crawlers.DefaultWorkers)
	v.SetDefault("run.max_attempts", 2)
	v.SetDefault("run.retry_backoff", "2s")
	v.SetDefault("run.dispatch_rate", 0.0)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.ignore_cert_errors", false)
	v.SetDefault("browser.block_resources", true)
	v.SetDefault("browser.launch_retries", 2)

	t := crawlers.DefaultTimeouts()
	v.SetDefault("timeouts.login", t.Login)
	v.SetDefault("timeouts.list", t.List)
	v.SetDefault("timeouts.pager", t.Pager)
	v.SetDefault("timeouts.detail", t.Detail)
	v.SetDefault("timeouts.item", t.Item)

	s := crawlers.DefaultSelectors()
	v.SetDefault("selectors.login_field", s.LoginField)
	v.SetDefault("selectors.password_field", s.PasswordField)
	v.SetDefault("selectors.submit", s.Submit)
	v.SetDefault("selectors.landing", s.Landing)
	v.SetDefault("selectors.row", s.Row)
	v.SetDefault("selectors.id", s.ID)
	v.SetDefault("selectors.next", s.Next)
	v.SetDefault("selectors.pager", s.Pager)
	v.SetDefault("selectors.detail_marker", s.DetailMarker)

	r := rules.DefaultDetailSelectors()
	v.SetDefault("rules.vendor", r.Vendor)
	v.SetDefault("rules.order_date", r.OrderDate)
	v.SetDefault("rules.expected_arrival", r.ExpectedArrival)
	v.SetDefault("rules.status", r.Status)
	v.SetDefault("rules.total", r.Total)
	v.SetDefault("rules.line_row", r.LineRow)
	v.SetDefault("rules.product", r.Product)
	v.SetDefault("rules.quantity", r.Quantity)
	v.SetDefault("rules.unit_price", r.UnitPrice)
	v.SetDefault("rules.taxes", r.Taxes)
	v.SetDefault("rules.subtotal", r.Subtotal)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.basename", "odoo_purchase_orders")
	v.SetDefault("output.formats", []string{"json"})
	v.SetDefault("output.compress", false)
	v.SetDefault("output.checkpoint_meta", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("resource.enabled", true)
	v.SetDefault("resource.context_memory_mb", 150)
	v.SetDefault("resource.safety_reserve_mb", 1024)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("preflight.enabled", true)
	v.SetDefault("preflight.timeout", "10s")
}

// CLIFlags carries the command-line overrides. Zero values mean "not set",
// except Pages where -1 means "not set" because 0 pages is a valid run.
type CLIFlags struct {
	Pages       int
	Workers     int
	Headless    *bool
	OutputDir   string
	Formats     []string
	LogLevel    string
	MetricsAddr string
}

// MergeCLIFlags applies command-line flags on top of the file and environment.
func (c *Config) MergeCLIFlags(f CLIFlags) {
	if f.Pages >= 0 {
		c.Run.Pages = f.Pages
		c.set("run.pages", f.Pages)
	}
	if f.Workers > 0 {
		c.Run.Workers = f.Workers
		c.set("run.workers", f.Workers)
	}
	if f.Headless != nil {
		c.Browser.Headless = *f.Headless
		c.set("browser.headless", *f.Headless)
	}
	if f.OutputDir != "" {
		c.Output.Dir = f.OutputDir
		c.set("output.dir", f.OutputDir)
	}
	if len(f.Formats) > 0 {
		c.Output.Formats = f.Formats
		c.set("output.formats", f.Formats)
	}
	if f.LogLevel != "" {
		c.Logging.Level = f.LogLevel
		c.set("logging.level", f.LogLevel)
	}
	if f.MetricsAddr != "" {
		c.Metrics.Addr = f.MetricsAddr
		c.set("metrics.addr", f.MetricsAddr)
	}
}

func (c *Config) set(key string, value interface{}) {
	if c.v != nil {
		c.v.Set(key, value)
	}
}

// Validate checks URLs, ranges and required selectors.
func (c *Config) Validate() error {
	if err := models.ValidateURL(c.Target.LoginURL); err != nil {
		return fmt.Errorf("target.login_url: %w", err)
	}
	if err := models.ValidateURL(c.Target.ListURL); err != nil {
		return fmt.Errorf("target.list_url: %w", err)
	}
	if err := c.Run.Validate(); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	timeouts := map[string]time.Duration{
		"login":  c.Timeouts.Login,
		"list":   c.Timeouts.List,
		"pager":  c.Timeouts.Pager,
		"detail": c.Timeouts.Detail,
		"item":   c.Timeouts.Item,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive", name)
		}
	}

	required := map[string]string{
		"login_field":    c.Selectors.LoginField,
		"password_field": c.Selectors.PasswordField,
		"submit":         c.Selectors.Submit,
		"landing":        c.Selectors.Landing,
		"row":            c.Selectors.Row,
		"id":             c.Selectors.ID,
		"next":           c.Selectors.Next,
		"pager":          c.Selectors.Pager,
		"detail_marker":  c.Selectors.DetailMarker,
	}
	for name, sel := range required {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("selectors.%s is required", name)
		}
	}

	if c.Output.Basename == "" {
		return errors.New("output.basename is required")
	}
	for _, f := range c.Output.Formats {
		switch strings.ToLower(f) {
		case "json", "csv", "sqlite":
		default:
			return fmt.Errorf("output.formats: unknown format %q (json, csv, sqlite)", f)
		}
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// LogConfig converts the logging section for utils.InitLogger.
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// ExtractorConfig returns the retry policy of the detail extractor.
func (c *Config) ExtractorConfig() crawlers.ExtractorConfig {
	return crawlers.ExtractorConfig{
		MaxAttempts:  c.Run.MaxAttempts,
		RetryBackoff: c.Run.RetryBackoff,
	}
}

// Snapshot returns the effective settings with credentials redacted, for reports.
func (c *Config) Snapshot() map[string]interface{} {
	if c.v == nil {
		return map[string]interface{}{}
	}
	return utils.NewRedactor().RedactMap(c.v.AllSettings())
}
