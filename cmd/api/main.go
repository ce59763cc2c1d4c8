package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"carparts-api/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	codec := core.NewTokenCodec(cfg.JWTSecret, cfg.JWTTTLSeconds)

	policy := core.DefaultAccessPolicy()
	if cfg.AccessPolicyPath != "" {
		policy, err = core.LoadAccessPolicy(cfg.AccessPolicyPath)
		if err != nil {
			log.Fatalf("failed to load access policy: %v", err)
		}
	}

	repos := core.Repositories{
		Users:     core.NewPgUserRepository(db),
		Suppliers: core.NewPgSupplierRepository(db),
		Parts:     core.NewPgPartRepository(db),
		Orders:    core.NewPgOrderRepository(db),
	}

	authService := core.NewRepositoryAuthService(repos.Users, codec)
	limiter := core.NewLoginLimiter(redisClient, cfg.LoginRateLimit,
		time.Duration(cfg.LoginRateWindowSeconds)*time.Second)
	metrics := core.NewAuthMetrics(redisClient)

	if err := core.BootstrapAdmin(ctx, repos.Users, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	router := core.NewRouter(cfg, codec, authService, policy, repos, limiter, metrics, db, redisClient)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
