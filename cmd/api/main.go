package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/sessions"

	"github.com/GakeBruh/kakarikostore.ui/devapi"
)

func main() {
	cfg := devapi.Load()
	ctx := context.Background()

	logCloser, err := devapi.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	var (
		users    devapi.UserRepository
		types    devapi.CatalogTypeRepository
		catalogs devapi.CatalogRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := devapi.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		defer db.Close()
		if err := devapi.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("failed to ensure schema: %v", err)
		}
		users = devapi.NewPgUserRepository(db)
		types = devapi.NewPgCatalogTypeRepository(db)
		catalogs = devapi.NewPgCatalogRepository(db)
	} else {
		log.Printf("DATABASE_URL not set; keeping data in memory")
		mem := devapi.NewMemoryStore()
		users, types, catalogs = mem.Users(), mem.CatalogTypes(), mem.Catalogs()
	}

	var revocations devapi.Revocations
	if cfg.RedisURL != "" {
		redisClient, err := devapi.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisClient.Close()
		revocations = devapi.NewRedisRevocations(redisClient)
	} else {
		revocations = devapi.NewMemoryRevocations()
	}

	authService := devapi.NewRepositoryAuthService(users)

	if cfg.SeedFile != "" {
		doc, err := devapi.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("failed to read seed %s: %v", cfg.SeedFile, err)
		}
		if err := devapi.ApplySeed(ctx, doc, types, catalogs); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	if err := devapi.BootstrapOperator(ctx, authService, users, cfg); err != nil {
		log.Fatalf("bootstrap operator failed: %v", err)
	}

	// Gorilla cookie store for browser sessions.
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))

	router := devapi.NewRouter(cfg, devapi.Deps{
		Auth:        authService,
		Users:       users,
		Types:       types,
		Catalogs:    catalogs,
		Tokens:      devapi.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL),
		Revocations: revocations,
		Sessions:    store,
		StartedAt:   time.Now(),
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
