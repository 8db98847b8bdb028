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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/cartridge/framereplay/internal/config"
	"github.com/cartridge/framereplay/internal/service"
	replayv1 "github.com/cartridge/framereplay/pkg/proto/replay/v1"
)

var (
	cfg        *config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "replay-server",
	Short: "Cartridge frame-stacking replay service",
	Long: `Replay service that stores transitions from concurrent actors in
fixed-capacity ring buffers and serves stacked, episode-masked training
batches to learners.`,
	PreRunE: loadConfig,
	RunE:    runServer,
}

func init() {
	cfg = config.Default()

	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML config file")

	// Server settings
	rootCmd.Flags().Int("port", cfg.Port, "gRPC server port")
	rootCmd.Flags().Duration("shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
	rootCmd.Flags().Int("max-message-bytes", cfg.MaxMessageBytes, "Largest gRPC request or response accepted")

	// Buffer defaults
	rootCmd.Flags().Int("default-capacity", cfg.DefaultCapacity, "Capacity for buffers created without one")
	rootCmd.Flags().Int("default-stack-size", cfg.DefaultStackSize, "Frames per state for buffers created without one")

	// Sampling
	rootCmd.Flags().Int64("seed", cfg.Seed, "Sampling seed (0 seeds from the clock)")
	rootCmd.Flags().Bool("weight-by-length", cfg.WeightByLength, "Draw buffers proportionally to their length")

	// Logging
	rootCmd.Flags().String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", cfg.LogFormat, "Log format (json, console)")

	// Flags are bound under their config keys so files, env and flags agree
	for _, key := range []string{
		"port", "shutdown_timeout", "max_message_bytes",
		"default_capacity", "default_stack_size",
		"seed", "weight_by_length", "log_level", "log_format",
	} {
		flag := rootCmd.Flags().Lookup(flagName(key))
		if err := viper.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", key, err))
		}
	}
	viper.SetEnvPrefix("REPLAY")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return cfg.Validate()
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := cfg.NewLogger(os.Stderr)
	logger.Info().
		Int("port", cfg.Port).
		Int("max_message_bytes", cfg.MaxMessageBytes).
		Int("default_capacity", cfg.DefaultCapacity).
		Int("default_stack_size", cfg.DefaultStackSize).
		Bool("weight_by_length", cfg.WeightByLength).
		Msg("Starting Replay service")

	// Create gRPC service
	replayService := service.NewReplayService(cfg, logger)

	// Create gRPC server
	server := grpc.NewServer(append(
		replayv1.ServerOptions(cfg.MaxMessageBytes),
		grpc.UnaryInterceptor(loggingInterceptor(logger)),
	)...)

	// Register services
	replayv1.RegisterReplayServer(server, replayService)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(replayv1.Replay_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Enable reflection for development
	reflection.Register(server)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", lis.Addr().String()).Msg("Replay service listening")
		serveErr <- server.Serve(lis)
	}()

	// Wait for interrupt signal or a serve failure
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-c:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	}

	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		logger.Warn().Msg("Shutdown timeout exceeded, forcing stop")
		server.Stop()
	case <-stopped:
		logger.Info().Msg("Server stopped gracefully")
	}
	return nil
}

// loggingInterceptor logs gRPC requests
func loggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		// Call the handler
		resp, err := handler(ctx, req)

		event := logger.Debug()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.
			Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			Msg("Handled request")

		return resp, err
	}
}

// flagName maps a config key to its command-line flag
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
