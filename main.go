package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mottu/patio-proxy/backend"
	"github.com/mottu/patio-proxy/cache"
	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag"
	"github.com/mottu/patio-proxy/diag/status"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/log"
	"github.com/mottu/patio-proxy/patio"
	"github.com/mottu/patio-proxy/web"
	"github.com/mottu/patio-proxy/web/forward"
)

const (
	exitOk = iota
	exitFailure
)

// set at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

func main() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	os.Exit(run(sigChan))
}

func run(closeSignal chan os.Signal) int {
	logger := log.NewLogger(os.Stderr, os.Stdout, log.Warn)
	logger.Reportf("service starting...")
	var configFile string
	flag.StringVar(&configFile, "c", "", "path to the configuration file")
	flag.Parse()

	conf, err := config.LoadConfigFromFileAndEnvironment(configFile)
	if err != nil {
		logger.Errorf("%s", err)
		return exitFailure
	}
	err = conf.Validate()
	if err != nil {
		logger.Errorf("%s", err)
		return exitFailure
	}

	logger = logger.WithLevel(conf.Log.GetLevel())

	errorChan := make(chan error)

	statusReporter := status.NewReporter(&conf)
	telemetryReporter := telemetry.NewReporter(&conf.Diag, version, logger)
	defer telemetryReporter.Shutdown()

	registry, err := patio.NewRegistryFromConfig(&conf.Patios, logger)
	if err != nil {
		logger.Errorf("failed to load the pátio table: %s", err)
		return exitFailure
	}
	defer registry.Close()

	var tagged *cache.Tagged
	if conf.Cache.Enabled {
		store, err := cache.SetupStore(context.Background(), &conf.Cache, telemetryReporter, logger)
		if err != nil {
			logger.Errorf("failed to set up the cache: %s", err)
			return exitFailure
		}
		defer store.Shutdown()
		tagged = cache.NewTagged(store, &conf.Cache, statusReporter, telemetryReporter, logger)
	}

	var diagServer *diag.Server
	if conf.Diag.Enabled && (conf.Diag.IsMetricsEnabled() || conf.Diag.IsStatusEnabled()) {
		diagServer = diag.NewServer(&conf.Diag, telemetryReporter, statusReporter, logger, errorChan)
		diagServer.Listen()
	}

	client := backend.NewClient(&conf.Backend, statusReporter, telemetryReporter, logger)
	forwarder := forward.NewForwarder(client, tagged, telemetryReporter, logger)
	router := web.NewRouter(forwarder, tagged, registry, telemetryReporter, &conf.Http, logger)

	httpServer, err := web.NewServer(router.Handler(), logger, &conf, errorChan)
	if err != nil {
		logger.Errorf("failed to create the HTTP server: %s", err)
		router.Close()
		return exitFailure
	}
	httpServer.Listen()

	for {
		select {
		case <-closeSignal:
			router.Close()

			shutDownCount := 1
			if diagServer != nil {
				shutDownCount++
			}
			wg := sync.WaitGroup{}
			wg.Add(shutDownCount)
			go func() {
				httpServer.Shutdown()
				wg.Done()
			}()
			if diagServer != nil {
				go func() {
					diagServer.Shutdown()
					wg.Done()
				}()
			}
			wg.Wait()
			return exitOk
		case err = <-errorChan:
			logger.Errorf("%s", err)
			router.Close()
			return exitFailure
		}
	}
}
