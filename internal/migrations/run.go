// Package migrations embeds and applies the grading schema: rubric
// documents, interview sessions and their message logs.
package migrations

import (
	"embed"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

//go:embed *.sql
var fs embed.FS

// Run applies every pending up migration against DATABASE_URL. The API
// binary calls it on startup, so a fresh database needs no manual step
// before sessions can be created.
func Run() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	d, err := iofs.New(fs, ".")
	if err != nil {
		log.Fatalf("load embedded migrations: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, dsn)
	if err != nil {
		log.Fatalf("open migration target: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("apply grading schema: %v", err)
	}
	log.Println("grading schema up to date")
}
