// Package config resolves questbot settings from defaults, an optional YAML
// file, a .env file, QUESTBOT_* environment variables and command-line flags,
// in that order of precedence (later wins). Secrets are never read from the
// YAML file; they come from the environment or the OS keyring.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/questbot/internal/constants"
	"github.com/julianstephens/questbot/internal/keyring"
	"github.com/julianstephens/questbot/internal/notifier"
	"github.com/julianstephens/questbot/internal/storage/postgres"
	"github.com/julianstephens/questbot/internal/utils"
)

// PostgresKeyword as the store target means "use the connection string from
// the environment or the keyring"
const PostgresKeyword = "postgres"

var (
	lookupEnv     = os.LookupEnv
	loadDotEnv    = godotenv.Load
	keyringLookup = keyring.Lookup
)

type Config struct {
	Store        string        `yaml:"store"`
	Timezone     string        `yaml:"timezone"`
	ReminderText string        `yaml:"reminder_text"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
	Notifier     string        `yaml:"notifier"`
	WebhookURL   string        `yaml:"webhook_url"`
	RelayDir     string        `yaml:"relay_dir"`
	HTTPAddr     string        `yaml:"http_addr"`
	Debug        bool          `yaml:"debug"`
	LogDir       string        `yaml:"log_dir"`

	DBConnection  string `yaml:"-"`
	BotToken      string `yaml:"-"`
	WebhookSecret string `yaml:"-"`
	TriggerToken  string `yaml:"-"`

	// Path is the YAML file that was read, empty when none was
	Path string `yaml:"-"`
}

// Overrides are the values given as command-line flags. Zero values leave the
// lower layers untouched.
type Overrides struct {
	ConfigFile string
	EnvFile    string
	Store      string
	Timezone   string
	Notifier   string
	HTTPAddr   string
	Debug      bool
}

func Default() Config {
	return Config{
		Store:        constants.DefaultStorePath,
		Timezone:     constants.DefaultTimezone,
		ReminderText: constants.DefaultReminderText,
		SendTimeout:  constants.DefaultSendTimeout,
		Notifier:     notifier.KindLog,
		LogDir:       constants.DefaultLogDir,
	}
}

// Load builds the effective configuration
func Load(ov Overrides) (*Config, error) {
	cfg := Default()

	path, explicit := configPath(ov)
	expanded, err := utils.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if err := loadFile(expanded, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || explicit {
			return nil, err
		}
	} else {
		cfg.Path = expanded
	}

	envFile := ov.EnvFile
	if envFile == "" {
		envFile = constants.DefaultEnvFile
	}
	// godotenv never overrides variables that are already set
	if err := loadDotEnv(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyOverrides(&cfg, ov)
	resolveSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath(ov Overrides) (string, bool) {
	if ov.ConfigFile != "" {
		return ov.ConfigFile, true
	}
	if v, ok := lookupEnv(constants.EnvConfigFile); ok && v != "" {
		return v, true
	}
	return constants.DefaultConfigFile, false
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	str(constants.EnvStore, &cfg.Store)
	str(constants.EnvTimezone, &cfg.Timezone)
	str(constants.EnvReminderText, &cfg.ReminderText)
	str(constants.EnvNotifier, &cfg.Notifier)
	str(constants.EnvWebhookURL, &cfg.WebhookURL)
	str(constants.EnvRelayDir, &cfg.RelayDir)
	str(constants.EnvHTTPAddr, &cfg.HTTPAddr)
	str(constants.EnvDBConnection, &cfg.DBConnection)
	str(constants.EnvBotToken, &cfg.BotToken)
	str(constants.EnvWebhookKey, &cfg.WebhookSecret)
	str(constants.EnvTriggerToken, &cfg.TriggerToken)

	if v, ok := lookupEnv(constants.EnvSendTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", constants.EnvSendTimeout, v, err)
		}
		cfg.SendTimeout = d
	}
	if v, ok := lookupEnv(constants.EnvDebug); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", constants.EnvDebug, v, err)
		}
		cfg.Debug = b
	}
	return nil
}

func applyOverrides(cfg *Config, ov Overrides) {
	if ov.Store != "" {
		cfg.Store = ov.Store
	}
	if ov.Timezone != "" {
		cfg.Timezone = ov.Timezone
	}
	if ov.Notifier != "" {
		cfg.Notifier = ov.Notifier
	}
	if ov.HTTPAddr != "" {
		cfg.HTTPAddr = ov.HTTPAddr
	}
	if ov.Debug {
		cfg.Debug = true
	}
}

func resolveSecrets(cfg *Config) {
	fill := func(dst *string, secret keyring.Secret) {
		if *dst == "" {
			*dst = keyringLookup(secret)
		}
	}

	if cfg.Store == PostgresKeyword {
		fill(&cfg.DBConnection, keyring.DBConnection)
	}
	switch cfg.Notifier {
	case notifier.KindMax:
		fill(&cfg.BotToken, keyring.BotToken)
	case notifier.KindWebhook:
		fill(&cfg.WebhookSecret, keyring.WebhookSecret)
	}
	fill(&cfg.TriggerToken, keyring.TriggerToken)
}

// Validate checks the settings that can be checked without touching the store
func (c *Config) Validate() error {
	if _, err := utils.LoadLocation(c.Timezone); err != nil {
		return err
	}
	if strings.TrimSpace(c.ReminderText) == "" {
		return errors.New("reminder text cannot be empty")
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("send timeout must be positive, got %s", c.SendTimeout)
	}

	switch c.Notifier {
	case notifier.KindLog, notifier.KindRelay:
	case notifier.KindMax:
		if c.BotToken == "" {
			return fmt.Errorf("notifier %q needs a bot token: set %s or run 'questbot keyring set %s'",
				c.Notifier, constants.EnvBotToken, keyring.BotToken)
		}
	case notifier.KindWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("notifier %q needs webhook_url or %s", c.Notifier, constants.EnvWebhookURL)
		}
	default:
		return fmt.Errorf("unknown notifier %q (expected max, webhook, relay or log)", c.Notifier)
	}

	if postgres.IsConnString(c.Store) {
		// Connection strings on the command line or in the config file end up
		// in shell history and dotfiles.
		if _, err := postgres.ValidateConnString(c.Store); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return fmt.Errorf("%w: use %s or the OS keyring for connection strings with passwords",
					err, constants.EnvDBConnection)
			}
			return err
		}
	}
	if c.Store == PostgresKeyword && c.DBConnection == "" {
		return fmt.Errorf("store %q needs %s or a keyring entry (questbot keyring set %s)",
			PostgresKeyword, constants.EnvDBConnection, keyring.DBConnection)
	}
	return nil
}

// Location returns the zone reminder times and display dates use
func (c *Config) Location() (*time.Location, error) {
	return utils.LoadLocation(c.Timezone)
}

// StoreTarget returns the path or connection string the store opens
func (c *Config) StoreTarget() (string, error) {
	if c.Store == PostgresKeyword {
		return c.DBConnection, nil
	}
	if postgres.IsConnString(c.Store) {
		return c.Store, nil
	}
	return utils.ExpandHome(c.Store)
}

// NotifierOptions maps the settings onto notifier.New. out receives dry-run output.
func (c *Config) NotifierOptions(out io.Writer) notifier.Options {
	return notifier.Options{
		Kind:          c.Notifier,
		BotToken:      c.BotToken,
		WebhookURL:    c.WebhookURL,
		WebhookSecret: c.WebhookSecret,
		RelayDir:      c.RelayDir,
		Out:           out,
	}
}

// Redacted renders the effective settings for display with secrets masked
func (c *Config) Redacted() map[string]string {
	mask := func(s string) string {
		if s == "" {
			return "(unset)"
		}
		return "********"
	}
	store := c.Store
	if c.Store == PostgresKeyword {
		store = PostgresKeyword + " (" + mask(c.DBConnection) + ")"
	}
	file := c.Path
	if file == "" {
		file = "(none)"
	}
	return map[string]string{
		"config_file":    file,
		"store":          store,
		"timezone":       c.Timezone,
		"reminder_text":  c.ReminderText,
		"send_timeout":   c.SendTimeout.String(),
		"notifier":       c.Notifier,
		"webhook_url":    c.WebhookURL,
		"http_addr":      c.HTTPAddr,
		"bot_token":      mask(c.BotToken),
		"webhook_secret": mask(c.WebhookSecret),
		"trigger_token":  mask(c.TriggerToken),
	}
}
