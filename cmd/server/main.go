package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handler "neuracall-backend/api"
	"neuracall-backend/pkg/config"

	"github.com/spf13/cobra"
)

// 本地开发入口：把Vercel函数包装成常驻HTTP服务
var (
	port string

	rootCmd = &cobra.Command{
		Use:   "neuracall-server",
		Short: "Neuracall CRM backend API server",
		Long: `neuracall-server runs the Neuracall backend as a standalone HTTP server.
In production the same router is served as a Vercel function; this command
exists for local development and self-hosted deployments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
)

func init() {
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "listen port (defaults to PORT or 8080)")
}

func serve(ctx context.Context) error {
	cfg := config.GetCached()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	listenPort := port
	if listenPort == "" {
		listenPort = cfg.Port
	}
	if listenPort == "" {
		listenPort = "8080"
	}

	server := &http.Server{
		Addr:              ":" + listenPort,
		Handler:           http.HandlerFunc(handler.Handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("🚀 Neuracall API listening on :%s (env: %s)\n", listenPort, cfg.Environment)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// 优雅关停：给在途请求一个收尾窗口
	fmt.Println("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
