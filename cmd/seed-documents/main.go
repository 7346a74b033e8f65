package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// CLI flags
var (
	csvPath     = flag.String("csv", "", "Path to the source CSV (required)")
	dsn         = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	confirm     = flag.Bool("confirm", false, "Required to write to the database")
	replace     = flag.Bool("replace", false, "Delete existing chunks of every title in the CSV before inserting")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key. 0 = disabled")
)

// CSV contract
// title,url,content
// one row per chunk; rows sharing a title belong to the same document

type DocumentCSV struct {
	Title   string
	URL     string
	Content string
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *csvPath == "" {
		fatalf("--csv is required")
	}
	if *dsn == "" && !*dryRun {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	rows, err := loadCSV(*csvPath)
	if err != nil {
		fatalf("CSV error: %v", err)
	}
	if err := validateRows(rows); err != nil {
		fatalf("CSV validation failed: %v", err)
	}
	fmt.Printf("Loaded %d chunks from %s\n", len(rows), *csvPath)

	if *dryRun {
		printPlan(rows)
		fmt.Println("Dry run complete. No changes made.")
		return
	}
	if !*confirm {
		fatalf("Refusing to run without --confirm. Add --dry-run to preview.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	before, err := countDocuments(ctx, tx)
	if err != nil {
		fatalf("pre-count: %v", err)
	}
	fmt.Printf("Before: documents=%d\n", before)

	if *replace {
		n, err := deleteTitles(ctx, tx, distinctTitles(rows))
		if err != nil {
			fatalf("replace: %v", err)
		}
		fmt.Printf("Deleted %d existing chunks\n", n)
	}

	if err := insertAll(ctx, tx, rows); err != nil {
		fatalf("insert data: %v", err)
	}

	after, err := countDocuments(ctx, tx)
	if err != nil {
		fatalf("post-count: %v", err)
	}
	fmt.Printf("After:  documents=%d\n", after)

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("Seed complete ✅")
}

func loadCSV(path string) ([]DocumentCSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV(bufio.NewReader(f))
}

func parseCSV(in io.Reader) ([]DocumentCSV, error) {
	r := csv.NewReader(in)
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range headers {
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, k := range []string{"title", "url", "content"} {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("missing required column: %s", k)
		}
	}

	var out []DocumentCSV
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}
		out = append(out, DocumentCSV{
			Title:   strings.TrimSpace(rec[idx["title"]]),
			URL:     strings.TrimSpace(rec[idx["url"]]),
			Content: strings.TrimSpace(rec[idx["content"]]),
		})
	}
	return out, nil
}

func validateRows(rows []DocumentCSV) error {
	if len(rows) == 0 {
		return fmt.Errorf("CSV has no data rows")
	}
	urls := map[string]string{}
	for i, r := range rows {
		if r.Title == "" {
			return fmt.Errorf("row %d: title is empty", i+2)
		}
		if r.Content == "" {
			return fmt.Errorf("row %d: content is empty", i+2)
		}
		if prev, ok := urls[r.Title]; ok && prev != r.URL {
			return fmt.Errorf("row %d: title '%s' has conflicting urls", i+2, r.Title)
		}
		urls[r.Title] = r.URL
	}
	return nil
}

func distinctTitles(rows []DocumentCSV) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range rows {
		if _, ok := seen[r.Title]; ok {
			continue
		}
		seen[r.Title] = struct{}{}
		out = append(out, r.Title)
	}
	return out
}

func printPlan(rows []DocumentCSV) {
	fmt.Println("Plan preview:")
	fmt.Printf("  Chunks to insert: %d\n", len(rows))
	fmt.Printf("  Distinct titles: %d\n", len(distinctTitles(rows)))
	if *replace {
		fmt.Println("  Existing chunks with these titles will be deleted from opinion_map.documents")
	}
}

func countDocuments(ctx context.Context, tx *sql.Tx) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM opinion_map.documents`).Scan(&n)
	return n, err
}

func deleteTitles(ctx context.Context, tx *sql.Tx, titles []string) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM opinion_map.documents WHERE title = $1`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var total int64
	for _, t := range titles {
		res, err := stmt.ExecContext(ctx, t)
		if err != nil {
			return total, fmt.Errorf("delete '%s': %w", t, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, rows []DocumentCSV) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO opinion_map.documents (id, title, url, content, created_at) VALUES ($1,$2,$3,$4,now())`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, uuid.New(), r.Title, r.URL, r.Content); err != nil {
			return fmt.Errorf("insert chunk %d of '%s': %w", i+1, r.Title, err)
		}
	}
	return nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
