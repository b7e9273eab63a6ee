package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "smartlife2mqtt/internal/adapter/actor"
	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/core/actor"
	"smartlife2mqtt/internal/kvstore"
	"smartlife2mqtt/internal/rooms"
	"smartlife2mqtt/internal/server"
	"smartlife2mqtt/internal/tuya"
	"smartlife2mqtt/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// persistent store: sqlite when a path is configured, memory otherwise
	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("store open failed", zap.Error(err))
	}
	defer store.Close()

	// upstream client, with session restore from the store
	client := tuya.NewClient(cfg, store, logger)

	refresher := tuya.NewTokenRefresher(client, cfg.Tuya, logger)
	if err := refresher.Start(context.Background()); err != nil {
		logger.Fatal("token refresher start failed", zap.Error(err))
	}
	defer refresher.Stop()

	roomService := rooms.NewService(cfg.Rooms, store, logger)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, store, tuyaActorProvider(client, logger),
			mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	apiServer := server.NewServer(*cfg, client, roomService, ctx, pid, logger)
	done := make(chan bool, 1)

	go gracefulShutdown(apiServer, done)

	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SMARTLIFE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SMARTLIFE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("smartlife")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix region
	region, err := config.CheckRegion(cfg.Tuya.Region)
	if err != nil {
		return nil, err
	}
	cfg.Tuya.Region = region

	if len(cfg.Tuya.SceneKeywords) == 0 {
		cfg.Tuya.SceneKeywords = config.DefaultSceneKeywords()
	}

	// check bounds
	if cfg.Monitor.PollIntervalMillis < 1000 {
		return nil, errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}
	if cfg.Monitor.KnownSetCap <= 0 || cfg.Monitor.AutomationSetCap <= 0 || cfg.Monitor.EventLogCap <= 0 {
		return nil, errors.New("config params monitor.*_cap should be > 0")
	}
	if cfg.Control.CooldownMillis < 100 {
		return nil, errors.New("config param control.cooldown_millis should be >= 100")
	}
	if cfg.Control.MaxQueued <= 0 {
		return nil, errors.New("config param control.max_queued should be > 0")
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, errors.New("config param retry.max_retries should be >= 0")
	}

	return &cfg, nil
}

func openStore(cfg *config.Config) (kvstore.Store, error) {
	if cfg.Store.Path != "" {
		return kvstore.OpenSQLite(cfg.Store.Path)
	}
	return kvstore.NewMemoryStore(), nil
}

func tuyaActorProvider(client *tuya.Client, logger *zap.Logger) actor.TuyaActorProvider {
	return func() *adactor.TuyaActor {
		return adactor.NewTuyaActor(client, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(stream *eventstream.EventStream) *adactor.MQTTActor {
		if !cfg.MQTT.Enable {
			return adactor.NewDisabledMQTTActor(cfg, logger)
		}
		return adactor.NewMQTTActor(cfg, stream, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("tuya.region", "eu")
	viper.SetDefault("tuya.request_timeout_millis", 15000)
	viper.SetDefault("tuya.token_refresh_margin_seconds", 600)
	viper.SetDefault("tuya.token_refresh_interval_millis", 60000)
	viper.SetDefault("monitor.poll_interval_millis", 3000)
	viper.SetDefault("monitor.known_set_cap", 1000)
	viper.SetDefault("monitor.automation_set_cap", 100)
	viper.SetDefault("monitor.event_log_cap", 1000)
	viper.SetDefault("control.cooldown_millis", 2000)
	viper.SetDefault("control.max_queued", 3)
	viper.SetDefault("retry.max_retries", 2)
	viper.SetDefault("retry.base_delay_millis", 5000)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.base_topic", "smartlife")
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
