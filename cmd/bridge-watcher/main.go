package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zos-network/bridge-watcher/chain"
	"github.com/zos-network/bridge-watcher/config"
	bridgedb "github.com/zos-network/bridge-watcher/db"
	"github.com/zos-network/bridge-watcher/logging"
	"github.com/zos-network/bridge-watcher/metrics"
	"github.com/zos-network/bridge-watcher/reporter"
	"github.com/zos-network/bridge-watcher/server"
	"github.com/zos-network/bridge-watcher/watcher"
)

func initFlags() {
	flag.String(config.FlagConfigPath, "", "config file path")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()
	err := viper.BindPFlags(pflag.CommandLine)
	if err != nil {
		panic(err)
	}
}

func printUsage() {
	fmt.Print("usage: ./bridge-watcher --config-path configFile\n")
}

func main() {
	initFlags()
	configFilePath := viper.GetString(config.FlagConfigPath)
	if configFilePath == "" {
		configFilePath = os.Getenv(config.EnvVarConfigFilePath)
		if configFilePath == "" {
			printUsage()
			return
		}
	}
	cfg := config.ParseConfigFromFile(configFilePath)
	if cfg == nil {
		panic("failed to get configuration")
	}
	cfg.Validate()
	logging.InitLogger(&cfg.LogConfig)

	if cfg.WatcherConfig.SearchAPIKey == "" {
		cfg.WatcherConfig.SearchAPIKey = os.Getenv(config.EnvVarSearchAPIKey)
	}

	gormDB := config.InitDBWithConfig(&cfg.DBConfig)
	bridgedb.InitTables(gormDB)
	dao := bridgedb.NewBridgeSvcDB(gormDB)

	registry, err := chain.NewRegistry(&cfg.WatcherConfig)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsConfig.Enable {
		address := cfg.MetricsConfig.ListenAddr
		if address == "" {
			address = metrics.DefaultMetricsAddress
		}
		metrics.NewMetrics(address).Start()
	}
	if cfg.ServerConfig.ListenAddr != "" {
		server.NewServer(dao, registry, cfg.ServerConfig.ListenAddr).Start()
	}

	for _, network := range registry.Watched() {
		w, err := watcher.NewWatcher(dao, registry, network)
		if err != nil {
			panic(err)
		}
		go w.Run(ctx)
	}
	go reporter.NewReporter(dao, registry).Run(ctx)

	<-ctx.Done()
	logging.Logger.Info("shutting down")
}
