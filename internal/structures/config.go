package structures

import (
	"net/http"
	"time"
)

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Route struct {
	Url     string
	Handler http.Handler
}

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type SourceConfig struct {
	BaseURL string        `yaml:"baseURL" validate:"required"`
	ApiKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout" validate:"required|min:1"`
}

type ProofConfig struct {
	Tolerance     time.Duration `yaml:"tolerance" validate:"required|min:1"`
	SourceTimeout time.Duration `yaml:"sourceTimeout" validate:"required|min:1"`
	NtpServer     string        `yaml:"ntpServer"`
	HttpDateURLs  []string      `yaml:"httpDateURLs"`
	WorldTimeURL  string        `yaml:"worldTimeURL"`
}

type StoreConfig struct {
	Dir            string        `yaml:"dir" validate:"required|unixPath"`
	LockTimeout    time.Duration `yaml:"lockTimeout" validate:"required|min:1"`
	ConflictPolicy string        `yaml:"conflictPolicy" validate:"required|in:reject,supersede"`
	HistoryDays    int           `yaml:"historyDays" validate:"required|min:1"`
	Reports        bool          `yaml:"reports"`
}

// ScheduleConfig drives the in-server daily run. At is a two-digit HH:MM
// time of day read in UTC, e.g. "00:10".
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	At      string `yaml:"at"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	Source    SourceConfig   `yaml:"source"`
	Proof     ProofConfig    `yaml:"proof"`
	Store     StoreConfig    `yaml:"store"`
	Schedule  ScheduleConfig `yaml:"schedule"`
	WebServer Server         `yaml:"webServer"`
	Logger    LoggerConfig   `yaml:"logger"`
	Cache     CacheConfig    `yaml:"cache"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}
