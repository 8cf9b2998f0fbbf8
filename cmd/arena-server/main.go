package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lab1702/arena-server/internal/game"
	"github.com/lab1702/arena-server/internal/httpapi"
	"github.com/lab1702/arena-server/internal/transport"
)

const defaultMaxPlayers = 50

// config holds the process configuration, read from the
// environment at startup.
type config struct {
	port        string
	env         string
	maxPlayers  int
	tlsCertFile string
	tlsKeyFile  string
}

func loadConfig() config {
	cfg := config{
		port:        "8080",
		env:         "development",
		maxPlayers:  defaultMaxPlayers,
		tlsCertFile: os.Getenv("TLS_CERT_FILE"),
		tlsKeyFile:  os.Getenv("TLS_KEY_FILE"),
	}

	if p := os.Getenv("PORT"); p != "" {
		cfg.port = p
	}
	if e := os.Getenv("ENV"); e != "" {
		cfg.env = e
	}
	if m := os.Getenv("MAX_PLAYERS"); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			cfg.maxPlayers = n
		} else {
			log.Printf("ignoring invalid MAX_PLAYERS=%q, using default %d", m, defaultMaxPlayers)
		}
	}

	return cfg
}

func (c config) usesTLS() bool {
	return c.tlsCertFile != "" && c.tlsKeyFile != ""
}

func main() {
	cfg := loadConfig()

	log.Printf("starting arena server on port %s (env=%s, maxPlayers=%d)", cfg.port, cfg.env, cfg.maxPlayers)

	store := game.NewStateStore("match-1", game.DefaultSpawnPoints(), cfg.maxPlayers)
	gameServer := transport.NewServer(store, cfg.maxPlayers)
	go gameServer.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gameServer.HandleWebSocket)
	mux.HandleFunc("/health", httpapi.Health)
	mux.HandleFunc("/status", httpapi.Status(store))

	srv := &http.Server{
		Addr:         ":" + cfg.port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if cfg.usesTLS() {
			err = srv.ListenAndServeTLS(cfg.tlsCertFile, cfg.tlsKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		log.Fatalf("server failed to start: %v", err)

	case sig := <-sigChan:
		log.Printf("shutting down server (signal: %v)...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		gameServer.Shutdown()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("server shutdown error: %v", err)
		}

		log.Println("server stopped")
	}
}
