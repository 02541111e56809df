package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/potability/internal/api"
	"github.com/danielpatrickdp/potability/internal/codec"
	"github.com/danielpatrickdp/potability/internal/config"
	"github.com/danielpatrickdp/potability/internal/loader"
	"github.com/danielpatrickdp/potability/internal/observability"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API (and optionally the gRPC predictor service)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("http-addr"); addr != "" {
			cfg.Server.HTTPAddr = addr
		}
		if addr, _ := cmd.Flags().GetString("grpc-addr"); addr != "" {
			cfg.Server.GRPCAddr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)

		loaded, err := loadPipeline(ctx, loader.Options{Observer: metrics})
		if err != nil {
			return err
		}
		defer loaded.Close()

		gin.SetMode(gin.ReleaseMode)
		router := api.NewRouter(api.Deps{
			Pipeline: loaded.Pipeline,
			Logger:   logger,
			Metrics:  metrics,
			Gatherer: reg,
		})
		httpSrv := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

		// Bind the gRPC port before anything serves, so a bad address fails
		// the command with nothing left running.
		lis, err := grpcListener(cfg)
		if err != nil {
			return err
		}
		if lis == nil && cfg.Server.GRPCAddr != "" {
			logger.Warn("grpc predictor service disabled for remote artifacts", "addr", cfg.Server.GRPCAddr)
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("http listening", "addr", cfg.Server.HTTPAddr, "source", loaded.Source)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		var grpcSrv *grpc.Server
		if lis != nil {
			grpcSrv = grpc.NewServer()
			codec.Register(grpcSrv, codec.NewServer(loaded.Models, logger))
			g.Go(func() error {
				logger.Info("grpc listening", "addr", lis.Addr().String())
				return grpcSrv.Serve(lis)
			})
		}

		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if grpcSrv != nil {
				grpcSrv.GracefulStop()
			}
			return httpSrv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

// grpcListener binds the predictor service address. It returns nil when the
// service is off or the artifacts are themselves remote.
func grpcListener(c config.Config) (net.Listener, error) {
	if c.Server.GRPCAddr == "" || c.Artifacts.Source == config.SourceRemote {
		return nil, nil
	}
	lis, err := net.Listen("tcp", c.Server.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", c.Server.GRPCAddr, err)
	}
	return lis, nil
}

func init() {
	serveCmd.Flags().String("http-addr", "", "HTTP listen address (overrides server.http_addr)")
	serveCmd.Flags().String("grpc-addr", "", "gRPC predictor service address (overrides server.grpc_addr)")
}
