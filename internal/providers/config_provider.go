package providers

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
	"wakaproof/internal/structures"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("source.baseURL", "https://wakatime.com/api/v1")
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("proof.tolerance", 5*time.Second)
	v.SetDefault("proof.sourceTimeout", 5*time.Second)
	v.SetDefault("proof.ntpServer", "pool.ntp.org")
	v.SetDefault("proof.httpDateURLs", []string{"https://api.github.com"})
	v.SetDefault("proof.worldTimeURL", "http://worldtimeapi.org/api/timezone/Etc/UTC")
	v.SetDefault("store.dir", "wakatime_logs")
	v.SetDefault("store.lockTimeout", 10*time.Second)
	v.SetDefault("store.conflictPolicy", "reject")
	v.SetDefault("store.historyDays", 365)
	v.SetDefault("store.reports", true)
	v.SetDefault("schedule.at", "00:10")
	v.SetDefault("webServer.host", "127.0.0.1")
	v.SetDefault("webServer.port", 8090)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.mode", 0644)
	v.SetDefault("logger.dir", "logs")
	v.SetDefault("cache.ttl", time.Minute)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setConfigDefaults(v)

	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.BindEnv("source.apiKey", "WAKATIME_API_KEY")
	v.BindEnv("source.baseURL", "WAKAPROOF_SOURCE_URL")
	v.BindEnv("logger.level", "WAKAPROOF_LOG_LEVEL")
	v.BindEnv("store.dir", "WAKAPROOF_STORE_DIR")
	v.BindEnv("store.conflictPolicy", "WAKAPROOF_CONFLICT_POLICY")
	v.BindEnv("proof.tolerance", "WAKAPROOF_PROOF_TOLERANCE")
	v.BindEnv("cache.enabled", "WAKAPROOF_CACHE_ENABLED")
	v.BindEnv("metrics.enabled", "WAKAPROOF_METRICS_ENABLED")

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "WakaProof"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
