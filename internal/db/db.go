package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/xxxsen/ragbase/internal/pkg/dbutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	dimensionPlaceholder = "{{dimension}}"

	vectorIndexQuery = `CREATE INDEX IF NOT EXISTS idx_documents_embedding
		ON documents USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`
)

type Config struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"database"`
	SSLMode  string `json:"sslmode"`
}

func (c Config) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSN(c.Host), c.Port, quoteDSN(c.User), quoteDSN(c.Password), quoteDSN(c.DBName), sslmode)
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Open returns a connection pool without contacting the server.
func Open(cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.BuildDSN())
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ApplyMigrations creates the extension, table and title index. It is safe to
// run repeatedly and concurrently with another process doing the same.
func ApplyMigrations(ctx context.Context, db *sqlx.DB, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension: %d", dimension)
	}
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}
		rendered := strings.ReplaceAll(string(content), dimensionPlaceholder, strconv.Itoa(dimension))
		for _, q := range splitStatements(rendered) {
			if _, err := db.ExecContext(ctx, q); err != nil {
				if dbutil.IsAlreadyExists(err) {
					continue
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}
	return nil
}

// EnsureVectorIndex creates the approximate nearest-neighbour index. Callers
// treat failure as non-fatal since ivfflat refuses to build on some setups.
func EnsureVectorIndex(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, vectorIndexQuery); err != nil && !dbutil.IsAlreadyExists(err) {
		return err
	}
	return nil
}

func splitStatements(content string) []string {
	var out []string
	for _, q := range strings.Split(content, ";") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}
