package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/dasmlab/pagetrans/pkg/config"
	"github.com/dasmlab/pagetrans/pkg/document"
	"github.com/dasmlab/pagetrans/pkg/persist"
	"github.com/dasmlab/pagetrans/pkg/pipeline"
	"github.com/dasmlab/pagetrans/pkg/server"
	"github.com/dasmlab/pagetrans/pkg/service"
	"github.com/dasmlab/pagetrans/pkg/translate"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "pagetrans-server",
		Short:         "Serve the PDF/TXT translation form, JSON API and gRPC service",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(config.WithConfigFile(configFile))
			if err := bindFlags(loader.Viper(), cmd.Flags()); err != nil {
				return err
			}
			cfg, err := loader.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "Path to a yaml, json or toml config file")

	// Server configuration flags
	f.String("http-host", "127.0.0.1", "HTTP listen host")
	f.Int("http-port", 7860, "HTTP listen port for the form and JSON API")
	f.Bool("grpc-enabled", true, "Serve the gRPC translation service")
	f.String("grpc-host", "127.0.0.1", "gRPC listen host")
	f.Int("grpc-port", 50051, "gRPC server port")
	f.String("cors-allowed-origins", "", "Comma-separated origins allowed to call the JSON API (empty: same origin only)")

	// Translation engine configuration
	f.String("mt-engine", "libretranslate", "Translation engine: libretranslate, argos or mymemory")
	f.String("mt-url", "http://localhost:5000", "Base URL for translation engine API")
	f.String("mt-api-key", "", "API key for the translation engine")
	f.String("mt-source-lang", translate.AutoDetect, "Source language sent to the engine")
	f.String("mt-timeout", "5m", "Timeout of a single engine call")

	// Documents
	f.Bool("pdf-strict", false, "Validate PDFs with pdfcpu before extracting text")
	f.String("text-output-dir", ".", "Directory receiving Pages/ for literal text input")

	// Logging configuration
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.String("log-format", "text", "Log format: text or json")

	return cmd
}

// bindFlags maps every flag except --config onto its config key,
// so --http-port overrides http_port.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(fl *pflag.Flag) {
		if fl.Name == "config" || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(strings.ReplaceAll(fl.Name, "-", "_"), fl)
	})
	return bindErr
}

func run(cfg *config.Config) error {
	logger, err := config.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"http_addr":    cfg.HTTP.Addr(),
		"grpc_enabled": cfg.GRPC.Enabled,
		"grpc_addr":    cfg.GRPC.Addr(),
		"mt_engine":    cfg.MT.Engine,
		"mt_url":       cfg.MT.URL,
		"pdf_strict":   cfg.PDF.Strict,
		"log_level":    cfg.Log.Level,
	}).Info("Starting pagetrans server")

	engineType, err := translate.ParseEngineType(cfg.MT.Engine)
	if err != nil {
		return fmt.Errorf("parse translation engine type: %w", err)
	}

	translator, err := translate.NewTranslator(translate.Config{
		Engine:  engineType,
		BaseURL: cfg.MT.URL,
		APIKey:  cfg.MT.APIKey,
		Timeout: cfg.MT.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create translator: %w", err)
	}

	// Verify translator is healthy
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	logger.Info("Checking translator health...")
	if err := translator.CheckHealth(ctx); err != nil {
		logger.WithError(err).Warn("Translator health check failed, but continuing anyway")
		logger.Warn("Server will start, but translation requests may fail until translator is ready")
	} else {
		logger.Info("Translator health check passed")
	}
	cancel()

	p, err := pipeline.New(pipeline.Config{
		Translator:     translator,
		Extractor:      document.NewExtractor(document.LedongthucOpener{Strict: cfg.PDF.Strict}, logger),
		Persister:      persist.NewPersister(logger),
		Languages:      translate.NewLanguageMapper(),
		SourceLanguage: cfg.MT.SourceLang,
		TextOutputDir:  cfg.Output.TextDir,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	errChan := make(chan error, 2)

	httpServer := server.NewHTTPServer(p, translator, server.Config{
		Addr:           cfg.HTTP.Addr(),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger,
	})
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	var (
		grpcServer   *grpc.Server
		healthServer *health.Server
	)
	if cfg.GRPC.Enabled {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"addr": cfg.GRPC.Addr(),
			}).Error("Failed to listen on address")
			return err
		}

		grpcServer, healthServer = newGRPCServer(p, logger)
		go func() {
			logger.WithFields(logrus.Fields{
				"addr": cfg.GRPC.Addr(),
			}).Info("gRPC server listening")
			if err := grpcServer.Serve(lis); err != nil {
				errChan <- fmt.Errorf("failed to serve: %w", err)
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.WithError(err).Error("Server error")
		return err
	case sig := <-sigChan:
		logger.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Info("Received signal, shutting down gracefully...")
	}

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}

	if grpcServer != nil {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-ctx.Done():
			logger.Warn("Graceful shutdown timeout, forcing stop...")
			grpcServer.Stop()
		}
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// newGRPCServer registers the translation and health services.
func newGRPCServer(p *pipeline.Pipeline, logger *logrus.Logger) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.Creds(insecure.NewCredentials()),
		grpc.UnaryInterceptor(service.RecoveryInterceptor(logger)),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             15 * time.Second,
			PermitWithoutStream: true,
		}),
		// PDF runs can take minutes, so idle and age limits stay generous
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
		}),
	}

	s := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(service.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	service.RegisterTranslationServiceServer(s, service.NewTranslationService(p, logger))

	// Lists services for grpcurl
	reflection.Register(s)

	return s, healthServer
}
