package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/safar/storefront-api/internal/config"
	"github.com/safar/storefront-api/internal/database"
	"github.com/safar/storefront-api/internal/logger"
)

func main() {
	log := logger.New(logger.Options{Service: "migrations", Level: "info"})

	if len(os.Args) < 2 || (os.Args[1] != "up" && os.Args[1] != "down") {
		log.Error("usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Error("connect to database", slog.Any("err", err))
		os.Exit(1)
	}
	defer db.Close()

	files, err := migrationFiles("migrations", direction)
	if err != nil {
		log.Error("list migrations", slog.Any("err", err))
		os.Exit(1)
	}

	ctx := context.Background()
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Error("read migration", slog.String("file", path), slog.Any("err", err))
			os.Exit(1)
		}

		log.Info("running migration", slog.String("file", filepath.Base(path)))
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			log.Error("execute migration", slog.String("file", path), slog.Any("err", err))
			os.Exit(1)
		}
	}

	log.Info("migrations applied", slog.Int("count", len(files)), slog.String("direction", direction))
}

// migrationFiles lists *.up.sql in order or *.down.sql in reverse order.
func migrationFiles(dir, direction string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), "."+direction+".sql") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	return files, nil
}
