package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strings"
)

var (
	sqlFileRe     = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	createTableRe = regexp.MustCompile(`(?i)CREATE TABLE IF NOT EXISTS\s+([a-z_]+)`)
)

// requiredTables are the tables the API, worker and cron rely on. The cart
// row must keep its version column: every cart write is a compare-and-swap
// on it.
var requiredTables = []string{
	"customers",
	"addresses",
	"products",
	"cart_rules",
	"carts",
	"orders",
	"order_line_items",
	"outbox_events",
	"outbox_dlq",
}

type migrationFile struct {
	name string
	body string
}

// ValidateDir checks migration filenames, version uniqueness and goose
// annotations in dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	_, err := readMigrations(os.DirFS(dir), ".")
	return err
}

// ValidateEmbedded runs the file checks on the compiled-in migrations and
// confirms they build the whole service schema.
func ValidateEmbedded() error {
	files, err := readMigrations(embedded, embeddedDir)
	if err != nil {
		return err
	}
	return checkSchema(files)
}

func readMigrations(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var files []migrationFile
	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read file %q: %w", name, err)
		}
		body := string(b)
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(body, marker) {
				return nil, fmt.Errorf("migration %q missing %q", name, marker)
			}
		}
		files = append(files, migrationFile{name: name, body: body})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations found in %q", dir)
	}
	return files, nil
}

func checkSchema(files []migrationFile) error {
	var created []string
	cartsHasVersion := false
	for _, f := range files {
		up, _, _ := strings.Cut(f.body, "-- +goose Down")
		for _, m := range createTableRe.FindAllStringSubmatch(up, -1) {
			table := strings.ToLower(m[1])
			created = append(created, table)
			if table == "carts" && strings.Contains(up, "version") {
				cartsHasVersion = true
			}
		}
	}

	var missing []string
	for _, table := range requiredTables {
		if !slices.Contains(created, table) {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("migrations never create %s", strings.Join(missing, ", "))
	}
	if !cartsHasVersion {
		return fmt.Errorf("carts migration lost the version column")
	}
	return nil
}
