package gbfsanalytics

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bikewatch-nyc/gbfs-analytics/config"
)

var (
	server *http.Server
)

func StartServer(reg *Registry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", handleHealth(reg))
	mux.HandleFunc("/api/systems", handleSystems)
	mux.HandleFunc("/api/series/entities", handleSeriesEntities(reg))
	mux.HandleFunc("/api/series/state", handleSeriesState(reg))
	mux.HandleFunc("/api/series/errors", handleSeriesErrors(reg))

	addr := fmt.Sprintf(":%d", config.Config.Server.Port)
	server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("server listening on %s", addr)
}

// HandleGracefulShutdown blocks until SIGINT/SIGTERM, cancels the registered
// polling jobs, then drains the HTTP server.
func HandleGracefulShutdown(reg *Registry) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Printf("shutdown signal received")
	if reg != nil {
		reg.CancelAll()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("server shutdown error: %v", err)
		} else {
			log.Printf("server shut down successfully")
		}
	}
}
