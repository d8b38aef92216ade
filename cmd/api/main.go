package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"clubapi.org/internal/auth"
	"clubapi.org/internal/httpapi"
	"clubapi.org/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("CLUBAPI_PG_DSN")
	if dsn == "" {
		log.Fatal("missing CLUBAPI_PG_DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	codec, err := auth.NewCodec(os.Getenv("CLUBAPI_AUTH_SECRET"))
	if err != nil {
		log.Fatalf("auth codec: %v", err)
	}

	opts := []auth.ServiceOption{}
	if ttl := durationEnv("CLUBAPI_ACCESS_TTL"); ttl > 0 {
		opts = append(opts, auth.WithAccessTTL(ttl))
	}
	if ttl := durationEnv("CLUBAPI_REFRESH_TTL"); ttl > 0 {
		opts = append(opts, auth.WithRefreshTTL(ttl))
	}

	svc, err := auth.NewService(auth.NewPGUserStore(db), auth.NewPGTokenLedger(db), codec, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version)

	addr := os.Getenv("CLUBAPI_ADDR")
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

	log.Printf("Starting club-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}

func durationEnv(name string) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("parse %s: %v", name, err)
	}
	return d
}
