// Command migrate applies the versioned schema migrations in
// internal/database/migrations against DATABASE_URL. The marketplace
// binary runs the same migrations at startup; this CLI exists so
// operators can migrate ahead of a rollout or against a fresh database
// without starting the full process.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mandiflow/core/internal/database"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "database DSN (defaults to DATABASE_URL)")
	flag.Parse()

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "migrate: no DSN given; set DATABASE_URL or pass -dsn")
		os.Exit(2)
	}

	if err := database.RunMigrations(*dsn); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("migrations applied")
}
