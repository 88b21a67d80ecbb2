package database

import (
	"database/sql"
	"fmt"
	"sort"

	schemasql "trawler/pkg/database/sql"
	"trawler/pkg/logging"
)

// EnsureSchema applies the embedded schema files in lexical order. All
// statements are idempotent (IF NOT EXISTS), so this is safe to run on every
// startup.
func EnsureSchema(db *sql.DB, logger logging.Logger) error {
	entries, err := schemasql.Content.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("failed to read embedded schema: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := schemasql.Content.ReadFile("schema/" + name)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to apply schema file %s: %w", name, err)
		}
		logger.WithField("file", name).Debug("Applied schema file")
	}

	return nil
}
