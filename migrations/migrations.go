// Package migrations embeds the goose migrations for the core database.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed core/*.sql
var files embed.FS

// Core returns the core database migrations rooted at their directory.
func Core() fs.FS {
	sub, err := fs.Sub(files, "core")
	if err != nil {
		panic(err)
	}
	return sub
}
