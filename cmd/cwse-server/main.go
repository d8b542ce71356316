// Command cwse-server runs the authoritative CWSE replica behind a
// websocket endpoint, wiring pkg/server.Manager and pkg/server.Router onto
// a pkg/bus.WSBus.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/collabwhiteboard/cwse/internal/logging"
	"github.com/collabwhiteboard/cwse/pkg/bus"
	"github.com/collabwhiteboard/cwse/pkg/checkpoint"
	"github.com/collabwhiteboard/cwse/pkg/server"
)

const shutdownGrace = 5 * time.Second

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	checkpointDir := flag.String("checkpoint-dir", "", "if set, persist checkpoints to this directory instead of keeping them in memory")
	tombstoneCacheSize := flag.Int("tombstone-cache-size", 0, "bound tombstone growth to this many most-recent ids (0 = unbounded)")
	flag.Parse()

	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	logger := logging.New(zl)

	var store checkpoint.Store
	if *checkpointDir != "" {
		fs, err := checkpoint.NewFileStore(*checkpointDir)
		if err != nil {
			logger.Error("failed to open checkpoint store", zap.Error(err))
			os.Exit(1)
		}
		store = fs
	} else {
		store = checkpoint.NewMemoryStore()
	}

	metrics := server.NewMetrics(prometheus.DefaultRegisterer)
	mgr := server.NewManager(
		server.WithLogger(logger),
		server.WithCheckpointStore(store),
		server.WithMetrics(metrics),
		server.WithTombstoneCacheSize(*tombstoneCacheSize),
	)

	wsBus := bus.NewWSBus()
	router := server.NewRouter(mgr, wsBus, logger)
	wsBus.SetOnDisconnect(router.OnClientLeft)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Query().Get("client_id")
		if clientID == "" {
			http.Error(w, "client_id query parameter is required", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		wsBus.AddClient(clientID, conn)
		router.OnClientJoined(clientID)
		logger.Info("client joined", zap.String("client_id", clientID))
	})

	httpSrv := &http.Server{Addr: *addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("cwse-server listening", zap.String("addr", *addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}
