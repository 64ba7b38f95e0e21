package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wasend/campaign-runner/internal/bridge"
	"github.com/wasend/campaign-runner/internal/config"
	"github.com/wasend/campaign-runner/internal/dispatch"
	"github.com/wasend/campaign-runner/internal/handlers"
	"github.com/wasend/campaign-runner/internal/runner"
	"github.com/wasend/campaign-runner/internal/scheduler"
	"github.com/wasend/campaign-runner/internal/services"
	"github.com/wasend/campaign-runner/internal/store"
	xhttp "github.com/wasend/campaign-runner/pkg/http"
	"github.com/wasend/campaign-runner/pkg/logger"
	"github.com/wasend/campaign-runner/pkg/phone"
	"github.com/wasend/campaign-runner/pkg/prom"
	"github.com/wasend/campaign-runner/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	conf := config.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, conf)
	if err != nil {
		logger.Error("failed to open campaign store", "driver", conf.StoreDriver, "error", err)
		return
	}

	// extension bridge; reconnects in the background, so a missing
	// extension only disables the first strategy
	bridgeClient := bridge.New(bridge.Config{
		URL:            conf.BridgeURL,
		RequestTimeout: conf.BridgeTimeout,
		PingInterval:   conf.BridgePingInterval,
	})
	bridgeClient.Start(ctx)

	chain := buildChain(conf, bridgeClient)

	policy := phone.Policy{
		TrunkPrefix: conf.PhoneTrunkPrefix,
		CountryCode: conf.PhoneCountryCode,
		MinDigits:   conf.PhoneMinDigits,
	}

	campaignRunner := runner.New(st, chain, policy, runner.Config{
		Schedule: scheduler.Config{
			BatchSize:         conf.CampaignBatchSize,
			PerItemDelay:      conf.CampaignMessageDelay,
			InterBatchDelay:   conf.CampaignBatchDelay,
			PausePollInterval: conf.CampaignPausePoll,
		},
		PollInterval: conf.CampaignPollInterval,
	})
	campaignRunner.Start(ctx)

	hostname, _ := os.Hostname()
	if err := prom.Create(hostname, conf.AppEnv, conf.PromNamespace); err != nil {
		logger.Error("failed to register metrics", "error", err)
		return
	}
	go func() {
		prom.ListenAndServe(conf.MetricsListenAddr, "/metrics")
	}()

	// operator API
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	campaignService := services.NewCampaignService(campaignRunner, bridgeClient)
	healthService := services.NewHealthService(st)

	g := s.Router.Group("/api/v1")
	handlers.RegisterCampaignRoutes(g, handlers.NewCampaignHandler(campaignService))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("campaign runner started", "version", version, "commit", commit, "built", date)
		if err := s.ListenAndServe(conf.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	logger.Info("shutting down..")
	s.Shutdown()
	campaignRunner.Stop()
	bridgeClient.Close()
}

func openStore(ctx context.Context, conf *config.Config) (store.Store, error) {
	switch conf.StoreDriver {
	case "redis":
		adapter, err := redis.NewAdapter(ctx, conf.RedisKeyPrefix, &goredis.UniversalOptions{
			Addrs:    []string{conf.RedisAddr},
			Username: conf.RedisUsername,
			Password: conf.RedisPassword,
			DB:       conf.RedisDatabase,
		})
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(adapter), nil
	default:
		return store.OpenSQLite(conf.SQLitePath)
	}
}

// buildChain assembles the delivery fallback order: extension bridge, then
// a driven browser tab, then the desktop client's URI scheme.
func buildChain(conf *config.Config, bridgeClient *bridge.Client) *dispatch.Chain {
	strategies := []dispatch.Strategy{
		dispatch.NewBridgeStrategy(bridgeClient),
	}

	browser, err := dispatch.ConnectBrowser(conf.BrowserControlURL)
	if err != nil {
		logger.Warn("browser not reachable, web strategy disabled", "error", err)
	} else {
		strategies = append(strategies,
			dispatch.NewWebStrategy(browser, conf.WebSurfaceBaseURL, conf.WebSendWait))
	}

	strategies = append(strategies, dispatch.NewNativeStrategy(conf.NativeURIScheme))
	return dispatch.NewChain(strategies...)
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
