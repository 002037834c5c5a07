// Package config loads daemon configuration from a YAML file with
// environment variable overrides. Out-of-range market values are not
// rejected here; the engine clamps them with a log line.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ndrandal/stocksim/internal/engine"
)

// Config holds all daemon configuration.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Market struct {
		OpeningHour         *int     `yaml:"opening_hour"`
		ClosingHour         *int     `yaml:"closing_hour"`
		ClosedWeekdays      []string `yaml:"closed_weekdays"`
		TrendChancePct      *float64 `yaml:"trend_chance_pct"`
		MaxTrends           *int     `yaml:"max_trends"` // -1 = unlimited
		MinTrendHours       *int     `yaml:"min_trend_hours"`
		MaxTrendHours       *int     `yaml:"max_trend_hours"`
		FluctuationPct      *float64 `yaml:"fluctuation_pct"`
		TicksPerHour        *int     `yaml:"ticks_per_hour"`
		RetentionDays       *int     `yaml:"retention_days"`
		BootstrapDays       *int     `yaml:"bootstrap_days"`
		BootstrapVolatility *float64 `yaml:"bootstrap_volatility"`
	} `yaml:"market"`

	Save struct {
		Path         string `yaml:"path"`
		AutosaveCron string `yaml:"autosave_cron"`
		ArchiveCron  string `yaml:"archive_cron"`
		ArchiveDir   string `yaml:"archive_dir"`
		ArchiveKeep  int    `yaml:"archive_keep"`
	} `yaml:"save"`

	Recorder struct {
		// Empty = disabled, "mongodb://..." = MongoDB, anything else is
		// treated as a SQLite file path.
		URI string `yaml:"uri"`
	} `yaml:"recorder"`

	Sim struct {
		Seed       int64 `yaml:"seed"` // 0 = time-based
		TickMillis int   `yaml:"tick_millis"`
		SendBuffer int   `yaml:"send_buffer"`
	} `yaml:"sim"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error; the defaults
// stand alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("STOCKSIM_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := envInt("STOCKSIM_PORT"); v != nil {
		cfg.Server.Port = *v
	}
	if v := os.Getenv("STOCKSIM_SAVE_PATH"); v != "" {
		cfg.Save.Path = v
	}
	if v := os.Getenv("STOCKSIM_RECORDER_URI"); v != "" {
		cfg.Recorder.URI = v
	}
	if v := envInt64("STOCKSIM_SEED"); v != nil {
		cfg.Sim.Seed = *v
	}

	// Defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8200
	}
	if cfg.Save.Path == "" {
		cfg.Save.Path = "data/stocksim.dat"
	}
	if cfg.Save.AutosaveCron == "" {
		cfg.Save.AutosaveCron = "0 */10 * * * *" // every 10 minutes
	}
	if cfg.Save.ArchiveCron == "" {
		cfg.Save.ArchiveCron = "0 0 * * * *" // hourly
	}
	if cfg.Save.ArchiveDir == "" {
		cfg.Save.ArchiveDir = "data/archive"
	}
	if cfg.Save.ArchiveKeep == 0 {
		cfg.Save.ArchiveKeep = 24
	}
	if cfg.Sim.TickMillis == 0 {
		cfg.Sim.TickMillis = 1000
	}
	if cfg.Sim.SendBuffer == 0 {
		cfg.Sim.SendBuffer = 256
	}

	return cfg, nil
}

// MarketConfig maps the YAML market section onto the engine's config,
// starting from the engine defaults. Unset fields keep the default;
// whatever is set gets clamped by the engine.
func (c *Config) MarketConfig() engine.MarketConfig {
	mc := engine.DefaultMarketConfig()
	m := &c.Market

	setInt(&mc.OpeningHour, m.OpeningHour)
	setInt(&mc.ClosingHour, m.ClosingHour)
	setFloat(&mc.TrendChancePct, m.TrendChancePct)
	setInt(&mc.MaxTrends, m.MaxTrends)
	setInt(&mc.MinTrendHours, m.MinTrendHours)
	setInt(&mc.MaxTrendHours, m.MaxTrendHours)
	setFloat(&mc.FluctuationPct, m.FluctuationPct)
	setInt(&mc.TicksPerHour, m.TicksPerHour)
	setInt(&mc.RetentionDays, m.RetentionDays)
	setInt(&mc.BootstrapDays, m.BootstrapDays)
	setFloat(&mc.BootstrapVolatility, m.BootstrapVolatility)

	if m.ClosedWeekdays != nil {
		mc.ClosedWeekdays = parseWeekdays(m.ClosedWeekdays)
	}
	return mc
}

// TickInterval is the wall-clock duration of one in-game minute.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Sim.TickMillis) * time.Millisecond
}

// Addr is the listen address for the HTTP/feed server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// parseWeekdays maps day names onto weekdays, dropping anything it does
// not recognize. An explicit empty list means no closed days.
func parseWeekdays(names []string) []time.Weekday {
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		key := make([]byte, 0, len(name))
		for i := 0; i < len(name); i++ {
			ch := name[i]
			if ch >= 'A' && ch <= 'Z' {
				ch += 'a' - 'A'
			}
			key = append(key, ch)
		}
		if wd, ok := weekdayNames[string(key)]; ok {
			days = append(days, wd)
		}
	}
	return days
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func envInt(key string) *int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func envInt64(key string) *int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}
