package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/blancocp/notex/internal/auth"
	"github.com/blancocp/notex/internal/category"
	"github.com/blancocp/notex/internal/config"
	"github.com/blancocp/notex/internal/database"
	"github.com/blancocp/notex/internal/note"
	"github.com/blancocp/notex/internal/server"
	"github.com/blancocp/notex/internal/tag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loadConfig() > %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database.Open() > %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	authProvider, err := auth.NewProvider(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth.NewProvider() > %w", err)
	}
	if authProvider.Mode() == auth.ModeDisabled {
		slog.Warn("authentication disabled, all requests use the fixed owner id")
	}

	noteRepo := note.NewDBNoteRepository(db)
	categoryRepo := category.NewDBCategoryRepository(db)
	tagRepo := tag.NewDBTagRepository(db)

	srv := server.New(
		note.NewService(noteRepo, tagRepo, categoryRepo),
		category.NewService(categoryRepo),
		tag.NewService(tagRepo),
		authProvider,
	)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("starting server", "addr", addr)
	handler := corsMiddleware(cfg.Server.CORS.AllowedOrigins, srv.Handler())
	return http.ListenAndServe(addr, h2c.NewHandler(handler, &http2.Server{}))
}

func loadConfig() (*config.Config, error) {
	configFile := os.Getenv("NOTEX_CONFIG")
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}

func corsMiddleware(allowedOrigins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && slices.Contains(allowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
