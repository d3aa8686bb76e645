// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Database DatabaseConfig          `mapstructure:"database"`
	Markets  map[string]MarketConfig `mapstructure:"markets"`
	APIs     APIsConfig              `mapstructure:"apis"`
	Engine   EngineConfig            `mapstructure:"engine"`
	Server   ServerConfig            `mapstructure:"server"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MarketConfig holds per-connector settings.
type MarketConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`
}

// EngineConfig holds the pipeline knobs.
type EngineConfig struct {
	MaxProducts       int           `mapstructure:"max_products"`       // product cap per search
	BatchScoreCap     int           `mapstructure:"batch_score_cap"`    // candidates sent to the AI scorer
	BatchScoreTimeout int           `mapstructure:"batch_score_timeout"` // milliseconds
	FallbackLimit     int           `mapstructure:"fallback_limit"`     // top-N when strict filtering empties
	MarketTimeout     int           `mapstructure:"market_timeout"`     // milliseconds per connector
	DefaultPageSize   int           `mapstructure:"default_page_size"`
	Scoring           ScoringConfig `mapstructure:"scoring"`
}

// ScoringConfig exposes the deal-score constants as configuration rather
// than hard-coded law.
type ScoringConfig struct {
	DefaultBaseScore   float64        `mapstructure:"default_base_score"`
	DefaultReliability float64        `mapstructure:"default_reliability"`
	TrendWindowDays    int            `mapstructure:"trend_window_days"`
	TrendDailyThresh   float64        `mapstructure:"trend_daily_threshold"` // fraction per day
	AnomalySigma       float64        `mapstructure:"anomaly_sigma"`
	DiscountBands      []DiscountBand `mapstructure:"discount_bands"`
}

// DiscountBand maps a minimum discount fraction to a score bonus.
type DiscountBand struct {
	MinDiscount float64 `mapstructure:"min_discount"`
	Bonus       float64 `mapstructure:"bonus"`
}

type ServerConfig struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
