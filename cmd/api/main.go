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

	"github.com/joho/godotenv"

	"packready.org/internal/httpapi"
	"packready.org/internal/links"
	"packready.org/internal/obs"
	"packready.org/internal/pack"
	"packready.org/internal/project"
	"packready.org/internal/store/pg"
	"packready.org/internal/stream"
)

var (
	version = "0.4.1"
	commit  = "dev"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("PACKREADY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	bank := project.NewStaticQuestionBank()

	var (
		db       *sql.DB
		packs    pack.Service
		projects project.Service
		lessons  links.Store
	)

	if dsn := os.Getenv("PACKREADY_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn, bank)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.Seed(ctx, func(ctx context.Context) error {
			return seedEcosystems(ctx, store)
		}); err != nil {
			cancel()
			log.Fatalf("seed ecosystems: %v", err)
		}
		cancel()

		db = store.DB()
		packs = store
		projects = store
		lessons = store
	} else {
		// No DSN: run fully in memory. Useful for demos and local work.
		log.Println("PACKREADY_PG_DSN not set, using in-memory stores")
		packs = pack.NewInMemory()
		mem := project.NewInMemory(bank)
		if err := seedEcosystems(context.Background(), mem); err != nil {
			log.Fatalf("seed ecosystems: %v", err)
		}
		projects = mem
		lessons = links.NewInMemory(nil)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, packs, projects, lessons, stream.New())

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting packready-api %s on %s", version, srv.Addr)

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
	log.Println("Stopped")
}

// seedEcosystems upserts the shipped permission-ecosystem reference data so
// a fresh deployment can create projects immediately.
func seedEcosystems(ctx context.Context, svc project.Service) error {
	ecosystems, err := project.DefaultEcosystems()
	if err != nil {
		return err
	}
	for _, eco := range ecosystems {
		if err := svc.PutEcosystem(ctx, eco); err != nil {
			return err
		}
	}
	return nil
}
