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

	"github.com/stafflane/access/internal/access"
	"github.com/stafflane/access/internal/audit"
	"github.com/stafflane/access/internal/events"
	"github.com/stafflane/access/internal/httpapi"
	"github.com/stafflane/access/internal/obs"
	"github.com/stafflane/access/internal/store/pg"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("ACCESS_COMMIT"))

	dsn := os.Getenv("ACCESS_PG_DSN")
	if dsn == "" {
		log.Fatal("missing DSN: set ACCESS_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	svc, err := access.NewService(store)
	if err != nil {
		log.Fatalf("access service: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.EnsureBuiltins(ctx); err != nil {
		cancel()
		log.Fatalf("ensure permission catalog: %v", err)
	}
	cancel()

	publisher, err := events.NewPublisher(os.Getenv("ACCESS_AMQP_URI"))
	if err != nil {
		log.Fatalf("events publisher: %v", err)
	}

	recorder := audit.NewRecorder(store, audit.WithNotifier(publisher))

	retention := audit.NewRetention(store, retentionAge())
	if err := retention.Start(); err != nil {
		log.Fatalf("audit retention: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Store:      store,
		Service:    svc,
		Resolver:   access.NewResolver(store),
		Auditor:    recorder,
		AuditLog:   store,
		ReadyProbe: httpapi.ReadyProbe{DB: store.DB()},
		Version:    version,
		TokenTTL:   tokenTTL(),
	})

	addr := os.Getenv("ACCESS_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting access-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	retention.Stop()
	recorder.Close()
	_ = publisher.Close()
	_ = store.Close()
	log.Println("Stopped")
}

// retentionAge reads ACCESS_AUDIT_RETENTION_DAYS. Zero or unset keeps
// audit entries forever.
func retentionAge() time.Duration {
	days, err := strconv.Atoi(os.Getenv("ACCESS_AUDIT_RETENTION_DAYS"))
	if err != nil || days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}

func tokenTTL() time.Duration {
	minutes, err := strconv.Atoi(os.Getenv("ACCESS_TOKEN_TTL_MINUTES"))
	if err != nil || minutes <= 0 {
		return time.Hour
	}
	return time.Duration(minutes) * time.Minute
}
