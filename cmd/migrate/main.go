package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"battlefield/internal/config"
	"battlefield/internal/db"
)

// Applies every migrations/*.sql file in lexical order, tracking applied
// files in schema_migrations so reruns are safe.
func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer database.Close()

	if _, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	dir := "migrations"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("read migrations dir: %v", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, name := range files {
		var exists bool
		if err := database.Get(&exists,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, name); err != nil {
			log.Fatalf("check %s: %v", name, err)
		}
		if exists {
			continue
		}

		contents, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Fatalf("read %s: %v", name, err)
		}

		tx, err := database.Beginx()
		if err != nil {
			log.Fatalf("begin: %v", err)
		}
		if _, err := tx.Exec(string(contents)); err != nil {
			_ = tx.Rollback()
			log.Fatalf("apply %s: %v", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			log.Fatalf("record %s: %v", name, err)
		}
		if err := tx.Commit(); err != nil {
			log.Fatalf("commit %s: %v", name, err)
		}
		log.WithField("migration", name).Info("applied")
		applied++
	}

	fmt.Printf("applied %d migration(s)\n", applied)
}
