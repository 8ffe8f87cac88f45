package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone    = "UTC"
	configPathEnv      = "NEWSPIPELINE_CONFIG"
	databaseDriverEnv  = "DATABASE_DRIVER"
	databaseDSNEnv     = "DATABASE_DSN"
	redisAddrEnv       = "REDIS_ADDR"
	llmProviderEnv     = "LLM_PROVIDER"
	llmAPIKeyEnv       = "OPENAI_API_KEY"
	llmModelEnv        = "LLM_MODEL"
	llmBaseURLEnv      = "LLM_BASE_URL"
	cmsPasswordEnv     = "CMS_PASSWORD"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	autoPublishEnv     = "AUTO_PUBLISH_ENABLED"
	logLevelEnv        = "LOG_LEVEL"
	metricsAddrEnv     = "METRICS_ADDR"
	memoryHeadroomMB   = 32
	defaultMaxMemoryMB = 256
)

// Config holds every setting of the process. It is built once by Load and
// passed by value to constructors.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Lock      LockConfig      `yaml:"lock"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	LLM       LLMConfig       `yaml:"llm"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// DatabaseConfig selects the persistent store.
type DatabaseConfig struct {
	// Driver is one of postgres, sqlite, memory.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig describes the Redis server used for scheduler locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LockConfig selects the lock backend.
type LockConfig struct {
	// Backend is memory or redis.
	Backend    string `yaml:"backend"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

// TTL returns the lock expiry used to heal crashed runs.
func (l LockConfig) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}

// SchedulerConfig defines the timer cadence of each hook.
type SchedulerConfig struct {
	Timezone                string         `yaml:"timezone"`
	AutoPublishEveryMinutes int            `yaml:"autoPublishEveryMinutes"`
	ScheduledEveryMinutes   int            `yaml:"scheduledEveryMinutes"`
	CleanupEveryHours       int            `yaml:"cleanupEveryHours"`
	StaggerSeconds          int            `yaml:"staggerSeconds"`
	location                *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// PipelineConfig carries the editorial and budget options of the pipeline.
type PipelineConfig struct {
	FetchIntervalMinutes      int      `yaml:"fetchInterval"`
	ProcessIntervalMinutes    int      `yaml:"processInterval"`
	BatchSize                 int      `yaml:"batchSize"`
	FetchBatchSize            int      `yaml:"fetchBatchSize"`
	AutoPublishEnabled        bool     `yaml:"autoPublishEnabled"`
	AutoPublishDelayMinutes   int      `yaml:"autoPublishDelay"`
	FactCheckThreshold        float64  `yaml:"factCheckThreshold"`
	SourceTrustThreshold      float64  `yaml:"sourceTrustThreshold"`
	CategoriesRequireApproval []string `yaml:"categoriesRequireApproval"`
	TargetLanguages           []string `yaml:"targetLanguages"`
	SensitiveKeywords         []string `yaml:"sensitiveKeywords"`
	MaxMemoryMB               int      `yaml:"maxMemoryMb"`
	TimeBudgetSeconds         int      `yaml:"timeBudgetSeconds"`
	MaxAttempts               int      `yaml:"maxAttempts"`
	LogRetentionDays          int      `yaml:"logRetentionDays"`
	RawItemRetentionDays      int      `yaml:"rawItemRetentionDays"`
	JobRetentionDays          int      `yaml:"jobRetentionDays"`
}

// TimeBudget returns the wall-clock allowance of one scheduler run.
func (p PipelineConfig) TimeBudget() time.Duration {
	return time.Duration(p.TimeBudgetSeconds) * time.Second
}

// AutoPublishDelay returns how long an auto_ready draft waits before the sweep publishes it.
func (p PipelineConfig) AutoPublishDelay() time.Duration {
	return time.Duration(p.AutoPublishDelayMinutes) * time.Minute
}

// MemoryHeadroomBytes is the minimum free allowance required to start a unit of work.
func (p PipelineConfig) MemoryHeadroomBytes() uint64 {
	return memoryHeadroomMB << 20
}

// FetcherConfig tunes outbound feed requests.
type FetcherConfig struct {
	TimeoutSeconds    int     `yaml:"timeoutSeconds"`
	UserAgent         string  `yaml:"userAgent"`
	RespectRobots     bool    `yaml:"respectRobots"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// Timeout returns the per-request HTTP timeout.
func (f FetcherConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// LLMConfig defines how to contact the text generation backend.
type LLMConfig struct {
	// Provider is openai, ollama, inference or empty (disabled).
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	APIKey          string `yaml:"apiKey"`
	BaseURL         string `yaml:"baseUrl"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	MaxTokens       int    `yaml:"maxTokens"`
	CacheTTLMinutes int    `yaml:"cacheTtlMinutes"`
}

// ChannelsConfig encapsulates outbound publication channels.
type ChannelsConfig struct {
	CMS      CMSConfig      `yaml:"cms"`
	Telegram TelegramConfig `yaml:"telegram"`
	// Default lists the secondary channels used when a publish names none.
	Default []string `yaml:"default"`
}

// CMSConfig wires the primary WordPress-compatible REST endpoint.
type CMSConfig struct {
	BaseURL  string `yaml:"baseUrl"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Status   string `yaml:"status"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// MetricsConfig configures the Prometheus endpoint of the run command.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig sets the minimum log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig is one entry of the seed source list.
type SourceConfig struct {
	Name                 string            `yaml:"name"`
	URL                  string            `yaml:"url"`
	Lang                 string            `yaml:"lang"`
	Category             string            `yaml:"category"`
	Kind                 string            `yaml:"kind"`
	TrustScore           float64           `yaml:"trustScore"`
	FetchIntervalMinutes int               `yaml:"fetchInterval"`
	Options              map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit path; an empty path means defaults plus env.
func LoadFile(path string) Config {
	cfg := Default()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := Default()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.Pipeline.normalize()

	return cfg
}

// Validate reports settings that would make the pipeline misbehave.
func (c Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			problems = append(problems, "database.dsn is required for driver "+c.Database.Driver)
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Lock.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			problems = append(problems, "redis.addr is required for lock backend redis")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown lock.backend %q", c.Lock.Backend))
	}
	// A lock that expires mid-run lets a second runner in.
	if c.Lock.TTLSeconds <= 0 {
		problems = append(problems, "lock.ttlSeconds must be positive")
	} else if c.Lock.TTLSeconds < c.Pipeline.TimeBudgetSeconds {
		problems = append(problems, "lock.ttlSeconds must be at least pipeline.timeBudgetSeconds")
	}

	p := c.Pipeline
	if p.FactCheckThreshold < 0 || p.FactCheckThreshold > 1 {
		problems = append(problems, "pipeline.factCheckThreshold must be within [0,1]")
	}
	if p.SourceTrustThreshold < 0 || p.SourceTrustThreshold > 1 {
		problems = append(problems, "pipeline.sourceTrustThreshold must be within [0,1]")
	}
	if len(p.TargetLanguages) == 0 {
		problems = append(problems, "pipeline.targetLanguages must not be empty")
	}
	if p.MaxMemoryMB <= memoryHeadroomMB {
		problems = append(problems, fmt.Sprintf("pipeline.maxMemoryMb must exceed %d", memoryHeadroomMB))
	}

	for i, src := range c.Sources {
		if src.URL == "" {
			problems = append(problems, fmt.Sprintf("sources[%d].url is required", i))
		}
		if src.TrustScore < 0 || src.TrustScore > 1 {
			problems = append(problems, fmt.Sprintf("sources[%d].trustScore must be within [0,1]", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(llmBaseURLEnv); v != "" {
		c.LLM.BaseURL = v
	}

	if v := os.Getenv(cmsPasswordEnv); v != "" {
		c.Channels.CMS.Password = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Channels.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Channels.Telegram.ChatID = v
	}

	if v := os.Getenv(autoPublishEnv); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Pipeline.AutoPublishEnabled = enabled
		} else {
			log.Printf("config: ignoring %s=%q: %v", autoPublishEnv, v, err)
		}
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(metricsAddrEnv); v != "" {
		c.Metrics.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// normalize lower-cases the lookup lists so gate checks are case-insensitive.
func (p *PipelineConfig) normalize() {
	p.CategoriesRequireApproval = lowerAll(p.CategoriesRequireApproval)
	p.TargetLanguages = lowerAll(p.TargetLanguages)
	p.SensitiveKeywords = lowerAll(p.SensitiveKeywords)
	if p.BatchSize <= 0 {
		p.BatchSize = 5
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Default returns the built-in configuration.
func Default() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:newspipeline.db?_busy_timeout=5000"},
		Redis:    RedisConfig{Addr: ""},
		Lock:     LockConfig{Backend: "memory", TTLSeconds: 300},
		Scheduler: SchedulerConfig{
			Timezone:                defaultTimezone,
			AutoPublishEveryMinutes: 5,
			ScheduledEveryMinutes:   1,
			CleanupEveryHours:       24,
			StaggerSeconds:          30,
			location:                tz,
		},
		Pipeline: PipelineConfig{
			FetchIntervalMinutes:      15,
			ProcessIntervalMinutes:    5,
			BatchSize:                 5,
			FetchBatchSize:            10,
			AutoPublishEnabled:        false,
			AutoPublishDelayMinutes:   0,
			FactCheckThreshold:        0.6,
			SourceTrustThreshold:      0.7,
			CategoriesRequireApproval: []string{"politik"},
			TargetLanguages:           []string{"de"},
			SensitiveKeywords:         DefaultSensitiveKeywords(),
			MaxMemoryMB:               defaultMaxMemoryMB,
			TimeBudgetSeconds:         120,
			MaxAttempts:               3,
			LogRetentionDays:          30,
			RawItemRetentionDays:      30,
			JobRetentionDays:          7,
		},
		Fetcher: FetcherConfig{
			TimeoutSeconds:    20,
			UserAgent:         "NewsPipeline/1.0",
			RespectRobots:     true,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		LLM: LLMConfig{
			Provider:        "",
			Model:           "gpt-4o-mini",
			TimeoutSeconds:  60,
			MaxTokens:       2000,
			CacheTTLMinutes: 60,
		},
		Channels: ChannelsConfig{
			CMS:     CMSConfig{Status: "publish"},
			Default: []string{"telegram"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultSensitiveKeywords is the built-in multilingual list of topics that always need an editor.
func DefaultSensitiveKeywords() []string {
	return []string{
		"war", "death", "dead", "killed", "accident", "crisis", "scandal", "terror", "attack", "murder",
		"krieg", "tod", "tot", "getötet", "unfall", "krise", "skandal", "anschlag", "mord",
		"війна", "смерть", "загиб", "аварія", "криза", "скандал", "теракт",
		"война", "погиб", "авария", "кризис",
	}
}
