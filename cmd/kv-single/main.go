package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/heysubinoy/pyazkv/internal/api"
	"github.com/heysubinoy/pyazkv/internal/logging"
	"github.com/heysubinoy/pyazkv/internal/store"
	"github.com/heysubinoy/pyazkv/pkg/codec"
	"github.com/heysubinoy/pyazkv/pkg/config"
	"github.com/heysubinoy/pyazkv/pkg/kv"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the node YAML config")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Development: cfg.LogDev})
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("kv-single stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := codec.NewResolver(codec.WithLogger(logger.Named("codec")))

	// Create the in-memory store and seed it from the data file
	memStore := kv.NewMemStore()
	if cfg.DataFile != "" {
		err := resolver.LoadFile(cfg.DataFile, memStore)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			memStore.SetFormat(kv.FormatForPath(cfg.DataFile))
			logger.Info("data file not found, starting empty", zap.String("path", cfg.DataFile))
		case err != nil:
			return err
		default:
			logger.Info("store seeded",
				zap.String("path", cfg.DataFile),
				zap.Stringer("format", memStore.Format()),
				zap.Int("keys", memStore.Len()))
		}
	}

	var backend kv.Store = memStore
	var leadership api.Leadership
	if cfg.RaftEnabled() {
		raftStore := store.NewRaftStore(memStore)
		node, err := store.OpenNode(store.NodeConfig{
			NodeID:   cfg.NodeID,
			RaftAddr: cfg.RaftAddr,
			DataDir:  cfg.RaftData,
		}, raftStore.FSM())
		if err != nil {
			return err
		}
		defer func() {
			if err := node.Shutdown(); err != nil {
				logger.Error("raft shutdown failed", zap.Error(err))
			}
		}()
		raftStore.SetRaft(node.Raft)
		backend = raftStore
		leadership = node.Raft
		logger.Info("raft node started", zap.String("node_id", cfg.NodeID), zap.String("addr", cfg.RaftAddr))
	}

	instrumented := store.NewInstrumentedStore(backend)

	// Start gRPC server in a goroutine
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer()
	api.RegisterScalarService(grpcServer, api.NewGRPCServer(instrumented))
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server failed", zap.Error(err))
			stop()
		}
	}()

	// Create the HTTP server with the store
	srv := api.NewServer(instrumented, leadership, logger.Named("http"))
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	mux.Handle("/metrics", api.MetricsHandler(instrumented))
	promHandler, err := api.PrometheusHandler(instrumented)
	if err != nil {
		return err
	}
	mux.Handle("/metrics/prometheus", promHandler)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()

	if cfg.DataFile != "" {
		if err := resolver.SaveFile(cfg.DataFile, memStore); err != nil {
			return err
		}
		logger.Info("store saved", zap.String("path", cfg.DataFile), zap.Int("keys", memStore.Len()))
	}
	return nil
}
