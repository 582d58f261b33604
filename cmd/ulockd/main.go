package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ulock-home/ulockd/internal/config"
	"github.com/ulock-home/ulockd/internal/core"
	"github.com/ulock-home/ulockd/internal/hass"
	"github.com/ulock-home/ulockd/internal/rate"
	"github.com/ulock-home/ulockd/internal/router"
	"github.com/ulock-home/ulockd/internal/server"
	"github.com/ulock-home/ulockd/internal/session"
	"github.com/ulock-home/ulockd/plugins/ultraloq"
)

func main() {
	configPath := flag.String("config", envOrDefault("ULOCKD_CONFIG", config.DefaultPath), "path to the daemon config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var compiled []core.Plugin
	if cfg.Ultraloq != nil {
		ultraloqCfg, err := ultraloq.ConfigFromFile(cfg.Ultraloq)
		if err != nil {
			log.Fatalf("ultraloq config: %v", err)
		}

		var blobStore session.BlobStore = session.NoopStore{}
		if cfg.Session.Blob.Endpoint != "" {
			blobStore, err = session.NewS3Store(session.BlobConfig{
				Endpoint:      cfg.Session.Blob.Endpoint,
				Bucket:        cfg.Session.Blob.Bucket,
				Prefix:        cfg.Session.Blob.Prefix,
				AccessKeyFile: cfg.Session.Blob.AccessKeyFile,
				SecretKeyFile: cfg.Session.Blob.SecretKeyFile,
				Region:        cfg.Session.Blob.Region,
			})
			if err != nil {
				log.Fatalf("session blob store: %v", err)
			}
		}

		sessionManager, err := session.NewManager(
			session.Declaration{Provider: "ultraloq", StatePath: cfg.Session.StatePath},
			ultraloq.NewAuthenticator(ultraloqCfg),
			cfg.Session.CredentialsFile,
			blobStore,
		)
		if err != nil {
			log.Fatalf("session: %v", err)
		}
		sessionManager.StartWithInterval(ctx, time.Duration(cfg.Session.ReloginIntervalSeconds)*time.Second)

		plugin := ultraloq.NewPlugin(ultraloqCfg, sessionManager)
		compiled = append(compiled, plugin)

		if coordinator := plugin.Coordinator(); coordinator != nil {
			go coordinator.Run(ctx)
			startBridge(ctx, cfg.Hass, coordinator)
		}
	}

	if err := core.ValidatePlugins(compiled); err != nil {
		log.Fatalf("plugins: %v", err)
	}
	enabled := config.EnabledPlugins(cfg)
	if err := core.ValidateEnabledPlugins(compiled, enabled, false); err != nil {
		log.Fatalf("plugins: %v", err)
	}
	plugins := core.FilterPlugins(compiled, enabled, false)

	metricsRegistry := core.MetricsRegistry(plugins)
	metricsRegistry.MustRegister(rate.MetricsCollectors()...)
	metricsRegistry.MustRegister(session.MetricsCollectors()...)
	metricsRegistry.MustRegister(hass.MetricsCollectors()...)
	metricsRegistry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ulockd_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))

	if err := core.WriteDashboards(cfg.Core.DashboardDir, plugins); err != nil {
		log.Printf("write dashboards: %v", err)
	}

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/health", server.HealthHandler)
	httpMux.Handle("/metrics", server.MetricsHandler(metricsRegistry))
	httpMux.Handle("/dashboards/", server.DashboardsHandler(core.DashboardsMap(plugins)))
	router.RegisterPlugins(httpMux, plugins)

	listenAddr := envOrDefault("ULOCKD_HTTP_ADDR", cfg.Core.HTTPAddr)
	httpServer := server.NewHTTPServer(listenAddr, httpMux)

	go func() {
		log.Printf("listening on %s", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

func startBridge(ctx context.Context, cfg *config.HassConfig, coordinator *ultraloq.Coordinator) {
	if cfg == nil || cfg.BrokerHost == "" {
		return
	}

	password := ""
	if cfg.PasswordFile != "" {
		data, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			log.Fatalf("hass password file: %v", err)
		}
		password = strings.TrimSpace(string(data))
	}

	bridge, err := hass.NewBridge(hass.Config{
		BrokerHost:      cfg.BrokerHost,
		BrokerPort:      cfg.BrokerPort,
		TLS:             cfg.TLS,
		Username:        cfg.Username,
		Password:        password,
		DiscoveryPrefix: cfg.DiscoveryPrefix,
		TopicPrefix:     cfg.TopicPrefix,
	}, coordinator)
	if err != nil {
		log.Fatalf("hass bridge: %v", err)
	}

	updates := coordinator.Subscribe()
	go func() {
		defer bridge.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case states := <-updates:
				if err := bridge.Publish(states); err != nil {
					log.Printf("hass publish: %v", err)
				}
			}
		}
	}()
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
