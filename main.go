package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"blackjack/server"
)

// 牌桌服务入口：TCP 玩家接入 + 牌局协调协程 + HTTP 管理/WebSocket 接入
func main() {
	var (
		configPath string
		addr       string
		adminAddr  string
		logFile    string
	)
	flag.StringVar(&configPath, "config", "", "path to a JSON config file")
	flag.StringVar(&addr, "addr", "", "player listen address, e.g. :12345")
	flag.StringVar(&adminAddr, "admin", "", "admin/websocket listen address, e.g. :8080")
	flag.StringVar(&logFile, "log", "", "log file path")
	flag.Parse()

	cfg := server.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = server.LoadConfig(configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	// 位置参数兼容旧用法：blackjack <port>
	if port := flag.Arg(0); port != "" {
		cfg.Addr = ":" + port
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if adminAddr != "" {
		cfg.AdminAddr = adminAddr
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, nil)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx) })
	g.Go(func() error { return srv.Table().Run(ctx) })

	if cfg.AdminAddr != "" {
		httpSrv := &http.Server{Addr: cfg.AdminAddr, Handler: srv.Handler()}
		g.Go(func() error {
			server.Log.Infof("admin listening on %s", cfg.AdminAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin listen: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		server.Log.Errorf("server stopped: %v", err)
		server.SyncLogger()
		os.Exit(1)
	}
	server.Log.Info("Shutting down...")
}
