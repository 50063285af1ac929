package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-blog/pkg/blog/api"
	"github.com/tendant/simple-blog/pkg/blog/config"
)

func main() {
	help := flag.Bool("help", false, "print the environment variables and exit")
	flag.Parse()

	if *help {
		usage, err := config.EnvUsage()
		if err != nil {
			slog.Error("Failed to describe configuration", "err", err)
			os.Exit(1)
		}
		fmt.Println(usage)
		return
	}

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file loaded", "err", err)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	services, err := cfg.BuildService(ctx, logger)
	cancel()
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer services.Close()

	postHandler := api.NewPostHandler(services.Blog, cfg.BuildAuth(), cfg.BasePath)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", api.AuthTokenHeader},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(api.RequestLogger(logger))
		r.Use(api.Recovery(logger))
		r.Use(middleware.Timeout(60 * time.Second))

		r.Mount(cfg.BasePath, postHandler.Routes())

		// Memory and fs storage have no public endpoint of their own.
		if objects, ok := services.BlobStore.(api.ObjectReader); ok && cfg.StorageType != config.StorageS3 && strings.HasPrefix(cfg.UploadURLPrefix, "/") {
			r.Mount(strings.TrimSuffix(cfg.UploadURLPrefix, "/"), api.NewObjectHandler(objects).Routes())
		}
	})

	slog.Info("Blog server configured",
		"environment", cfg.Environment,
		"database", cfg.DatabaseType,
		"storage", cfg.StorageType,
		"base_path", cfg.BasePath,
		"ownership_check", cfg.OwnershipCheck,
	)

	server.Run()
}
