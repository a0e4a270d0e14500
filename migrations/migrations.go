// Package migrations embeds the SQL schema for the station store.
package migrations

import (
	"embed"
	"fmt"
)

//go:embed *.sql
var files embed.FS

// Up returns the schema creation script
func Up() (string, error) {
	return read("001_create_schema.up.sql")
}

// Down returns the schema teardown script
func Down() (string, error) {
	return read("001_create_schema.down.sql")
}

func read(name string) (string, error) {
	content, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read migration %s: %w", name, err)
	}
	return string(content), nil
}
