package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-picker/internal/filesystem"
	"media-picker/internal/handlers"
	"media-picker/internal/imageproc"
	"media-picker/internal/logging"
	"media-picker/internal/memory"
	"media-picker/internal/metrics"
	"media-picker/internal/middleware"
	"media-picker/internal/pipeline"
	"media-picker/internal/provider"
	"media-picker/internal/resolver"
	"media-picker/internal/startup"
	"media-picker/internal/storage"
)

const metricsInterval = time.Minute

// services holds everything the shutdown sequence has to stop.
type services struct {
	runner    *pipeline.Runner
	indexer   *provider.Indexer
	collector *metrics.Collector
	monitor   *memory.Monitor
	store     *provider.Store
	metrics   *http.Server
}

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	startup.LogMemoryConfig(memory.ConfigureLimit(config.MemoryLimit, config.MemoryRatio))

	volumes := map[string]string{
		"data":           config.DataDir,
		"external-app":   config.ExternalAppDir,
		"external-cache": config.ExternalCacheDir,
		"internal-app":   config.InternalAppDir,
		"media":          config.MediaDir,
	}
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumes))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	volumeNames := make([]string, 0, len(volumes))
	for name, path := range volumes {
		if path != "" {
			volumeNames = append(volumeNames, name)
		}
	}
	metrics.InitializeMetrics(volumeNames)
	buildInfo := startup.GetBuildInfo()
	metrics.SetAppInfo(buildInfo.Version, buildInfo.Commit, buildInfo.GoVersion)

	// Initialize provider database
	dbStart := time.Now()
	store, err := provider.Open(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize provider database: %v", err)
	}
	startup.LogProviderInit(store.Path(), time.Since(dbStart))

	if config.VipsEnabled {
		if err := imageproc.InitVips(); err != nil {
			logging.Warn("libvips unavailable, falling back to pure Go decoding: %v", err)
		}
	}
	startup.LogVipsInit(config.VipsEnabled, imageproc.IsVipsAvailable())

	svc := &services{store: store}

	// Memory monitor holds back batch starts under pressure
	svc.monitor = memory.NewMonitor(memory.DefaultConfig())
	svc.monitor.Start()

	// Initialize indexer
	if config.IndexingEnabled {
		startup.LogIndexerInit(config.MediaDir, config.IndexInterval)
		svc.indexer = provider.NewIndexer(store, config.MediaDir, provider.IndexerConfig{
			NumWorkers: config.IndexWorkers,
			Interval:   config.IndexInterval,
		})
		svc.indexer.Start()
		startup.LogIndexerStarted()
	}

	// Batches read local files only inside the configured directories and
	// download only from public addresses unless ALLOW_PRIVATE_NETWORKS.
	roots := config.ReadableRoots()
	logging.Info("Local reads limited to %s", strings.Join(roots.Dirs(), ", "))
	var httpClient *http.Client
	if !config.AllowPrivateNetworks {
		httpClient = resolver.PublicClient(config.HTTPTimeout)
	}

	svc.runner = pipeline.NewRunner(pipeline.Deps{
		Storage:     storage.New(config.StorageDirs()),
		Querier:     store,
		Documents:   store,
		Streams:     store,
		HTTPClient:  httpClient,
		HTTPTimeout: config.HTTPTimeout,
		UseVips:     imageproc.IsVipsAvailable(),
		Throttle:    svc.monitor,
		AllowPath:   roots.Contains,
	}, config.BatchWorkers)

	svc.collector = metrics.NewCollector(store, config.DatabasePath, metricsInterval)
	svc.collector.Start()

	// Initialize handlers
	h := handlers.New(svc.runner, store, svc.indexer, handlers.Defaults{
		Location:  config.StorageLocation,
		Options:   config.ImageOptions(),
		AllowPath: roots.Contains,
	}).WithMonitor(svc.monitor)

	// Setup router
	router := handlers.NewRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrap(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	if config.MetricsEnabled {
		svc.metrics = startMetricsServer(h, config.MetricsPort)
	}

	// Start graceful shutdown handler
	done := make(chan struct{})
	go handleShutdown(srv, svc, done)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// wrap applies the middleware chain, outermost last.
func wrap(router *mux.Router, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggingConfig.TrustProxy = config.TrustProxyHeaders
	logged := middleware.Logger(loggingConfig)(router)
	return middleware.Metrics(middleware.DefaultMetricsConfig())(logged)
}

func startMetricsServer(h *handlers.Handlers, port string) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	r.HandleFunc("/health", h.LivenessCheck).Methods("GET", "HEAD")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv *http.Server, svc *services, done chan<- struct{}) {
	defer close(done)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Waiting for running batches")
	if err := svc.runner.Shutdown(ctx); err != nil {
		logging.Warn("Batches still running at shutdown: %v", err)
	} else {
		startup.LogShutdownStepComplete("Batches finished")
	}

	if svc.indexer != nil {
		startup.LogShutdownStep("Stopping indexer")
		svc.indexer.Stop()
		startup.LogShutdownStepComplete("Indexer stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	svc.collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	svc.monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	if svc.metrics != nil {
		if err := svc.metrics.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	imageproc.ShutdownVips()

	startup.LogShutdownStep("Closing provider database")
	if err := svc.store.Close(); err != nil {
		logging.Warn("Provider database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Provider database closed")
	}

	startup.LogShutdownComplete()
}
