// Command seed generates a synthetic two-column workload table: col0 is
// heavy-tailed (a few hot values carry most rows), col1 is uniform. The
// shape gives the frequency sketches both heavy hitters and noise.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/cardest/cardest/pkg/storage"
)

func main() {
	dbPath := os.Getenv("CARDEST_DB_PATH")
	if dbPath == "" {
		dbPath = "cardest.sqlite"
	}
	table := os.Getenv("CARDEST_TABLE")
	if table == "" {
		table = "workload"
	}
	n := 200000
	if env := os.Getenv("CARDEST_ROWS"); env != "" {
		parsed, err := strconv.Atoi(env)
		if err != nil || parsed < 1 {
			log.Fatalf("invalid CARDEST_ROWS %q", env)
		}
		n = parsed
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		log.Fatalf("drop: %v", err)
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE %s (
        id INTEGER PRIMARY KEY,
        col0 INTEGER,
        col1 INTEGER
    )`, table)); err != nil {
		log.Fatalf("create: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("begin: %v", err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s(col0,col1) VALUES (?,?)", table))
	if err != nil {
		log.Fatalf("prepare: %v", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		// col0 heavy tail: exponential over a small value range.
		hot := int64(rng.ExpFloat64() * 20)
		uniform := int64(rng.Intn(10000))
		if _, err := stmt.Exec(hot, uniform); err != nil {
			log.Fatalf("insert: %v", err)
		}
		if i%10000 == 0 && i > 0 {
			fmt.Printf("inserted %d\n", i)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("commit: %v", err)
	}

	if err := storage.EnsureMetaTables(context.Background(), db); err != nil {
		log.Fatalf("ensure meta tables: %v", err)
	}
	if err := storage.UpsertWorkload(context.Background(), db, table, 2, int64(n)); err != nil {
		log.Fatalf("record workload: %v", err)
	}

	fmt.Printf("seeded %d rows into %s\n", n, table)
}
