package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/wasend/campaign-runner/pkg/logger"
)

var config *Config

// Config holds every env-sourced setting. Only this struct may be used to
// carry configuration values; no direct access to env or any other config
// source should be made elsewhere.
type Config struct {
	AppEnv   string `env:"APP_ENV" default:"dev"`
	AppName  string `env:"APP_NAME" default:"campaign_runner"`
	AppDebug bool   `env:"APP_DEBUG" default:"1"`

	HttpListenAddr    string `env:"HTTP_LISTEN_ADDR" default:":8080"`
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR" default:":9100"`

	StoreDriver string `env:"STORE_DRIVER" default:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" default:"campaigns.db"`

	RedisAddr      string `env:"REDIS_ADDR"`
	RedisUsername  string `env:"REDIS_USER"`
	RedisPassword  string `env:"REDIS_PASS"`
	RedisDatabase  int    `env:"REDIS_DATABASE"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE" default:"campaign_runner"`

	BridgeURL          string        `env:"BRIDGE_URL" default:"ws://127.0.0.1:8765/bridge"`
	BridgeTimeout      time.Duration `env:"BRIDGE_TIMEOUT" default:"5s"`
	BridgePingInterval time.Duration `env:"BRIDGE_PING_INTERVAL" default:"30s"`

	BrowserControlURL string        `env:"BROWSER_CONTROL_URL"`
	WebSurfaceBaseURL string        `env:"WEB_SURFACE_BASE_URL" default:"https://web.whatsapp.com"`
	WebSendWait       time.Duration `env:"WEB_SEND_WAIT" default:"8s"`
	NativeURIScheme   string        `env:"NATIVE_URI_SCHEME" default:"whatsapp"`

	CampaignBatchSize    int           `env:"CAMPAIGN_BATCH_SIZE" default:"10"`
	CampaignMessageDelay time.Duration `env:"CAMPAIGN_MESSAGE_DELAY" default:"2s"`
	CampaignBatchDelay   time.Duration `env:"CAMPAIGN_BATCH_DELAY" default:"3m"`
	CampaignPausePoll    time.Duration `env:"CAMPAIGN_PAUSE_POLL" default:"1s"`
	CampaignPollInterval time.Duration `env:"CAMPAIGN_POLL_INTERVAL" default:"10s"`

	PhoneTrunkPrefix string `env:"PHONE_TRUNK_PREFIX" default:"01"`
	PhoneCountryCode string `env:"PHONE_COUNTRY_CODE" default:"20"`
	PhoneMinDigits   int    `env:"PHONE_MIN_DIGITS" default:"12"`

	LogLevel []string `env:"LOG_LEVEL"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
