package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Moderation ModerationConfig `mapstructure:"moderation"`
}

// chat adapter selection and credentials
type BotConfig struct {
	Adapter  string         `mapstructure:"adapter"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	OneBot   OneBotConfig   `mapstructure:"onebot"`
}

// Telegram bot configuration
type TelegramConfig struct {
	Token   string        `mapstructure:"token"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// webhook server configuration
type WebhookConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	ListenPort string `mapstructure:"listen_port"`
	DebugPath  string `mapstructure:"debug_path"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
}

// OneBot v11 forward websocket configuration
type OneBotConfig struct {
	WSURL             string        `mapstructure:"ws_url"`
	AccessToken       string        `mapstructure:"access_token"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	APITimeout        time.Duration `mapstructure:"api_timeout"`
}

// logging configuration
type LoggerConfig struct {
	Directory  string            `mapstructure:"directory"`
	Rotation   LogRotationConfig `mapstructure:"rotation"`
	Timezone   string            `mapstructure:"timezone"`
	TimeFormat string            `mapstructure:"time_format"`
	Level      string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	Path     string `mapstructure:"path"`
}

// prometheus endpoint
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
	Path   string `mapstructure:"path"`
}

type ModerationConfig struct {
	DecayWindow time.Duration `mapstructure:"decay_window"`
	Groups      []GroupConfig `mapstructure:"groups"`
}

// GroupConfig is the on-disk form of one group's moderation policy.
type GroupConfig struct {
	GroupID          string       `mapstructure:"group_id"`
	Enabled          bool         `mapstructure:"enabled"`
	Language         string       `mapstructure:"language"`
	ExemptAdmins     bool         `mapstructure:"exempt_admins"`
	CustomMessage    string       `mapstructure:"custom_message"`
	AlertText        string       `mapstructure:"alert_text"`
	CorrectionPrefix string       `mapstructure:"correction_prefix"`
	Mute             MuteConfig   `mapstructure:"mute"`
	Rules            []RuleConfig `mapstructure:"rules"`
}

type MuteConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Threshold is nil when the key is absent so an explicit 0 can be rejected.
	Threshold *int          `mapstructure:"threshold"`
	Duration  time.Duration `mapstructure:"duration"`
}

// ViolationThreshold returns the configured threshold, or
// DefaultMuteThreshold when none is set.
func (m MuteConfig) ViolationThreshold() int {
	if m.Threshold == nil {
		return DefaultMuteThreshold
	}
	return *m.Threshold
}

type RuleConfig struct {
	Pattern     string `mapstructure:"pattern"`
	Enabled     *bool  `mapstructure:"enabled"`
	Mute        bool   `mapstructure:"mute"`
	Recall      bool   `mapstructure:"recall"`
	Replace     bool   `mapstructure:"replace"`
	ReplaceWord string `mapstructure:"replace_word"`
}

// IsEnabled reports whether the rule is active; rules are on unless
// explicitly disabled.
func (r RuleConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

const (
	AdapterTelegram = "telegram"
	AdapterOneBot   = "onebot"

	DefaultMuteThreshold = 3
	DefaultMuteDuration  = 10 * time.Minute
)

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	// a missing .env is normal outside development
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("CHATGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("bot.telegram.token", "CHATGUARD_BOT_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	// Unmarshal configuration
	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	loaded.applyGroupDefaults()
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return loaded, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.adapter", AdapterTelegram)
	v.SetDefault("bot.telegram.webhook.listen_port", "8443")
	v.SetDefault("bot.telegram.webhook.debug_path", "/debug")
	v.SetDefault("bot.telegram.webhook.cert_file", "")
	v.SetDefault("bot.telegram.webhook.key_file", "")
	v.SetDefault("bot.onebot.reconnect_interval", 10*time.Second)
	v.SetDefault("bot.onebot.api_timeout", 10*time.Second)

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.timezone", "Local")
	v.SetDefault("logger.time_format", "2006/01/02 15:04:05")
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.path", "chat-guard.db")

	v.SetDefault("metrics.listen", ":9090")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("moderation.decay_window", 24*time.Hour)
}

// applyGroupDefaults fills the mute duration and language left out of a
// group. A missing threshold is resolved by ViolationThreshold.
func (c *Config) applyGroupDefaults() {
	for i := range c.Moderation.Groups {
		g := &c.Moderation.Groups[i]
		if g.Mute.Duration == 0 {
			g.Mute.Duration = DefaultMuteDuration
		}
		if g.Language == "" {
			g.Language = "zh_CN"
		}
	}
}
