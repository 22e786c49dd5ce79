// Package migrations embeds the schema so the binary can create it without
// depending on the working directory.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Migration is one ordered schema step.
type Migration struct {
	Name string
	SQL  string
}

// All returns the embedded migrations ordered by file name.
func All() ([]Migration, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, n := range names {
		b, err := files.ReadFile(n)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: strings.TrimSuffix(n, ".sql"), SQL: string(b)})
	}
	return out, nil
}

// DropStatements undo every migration, newest first.
var DropStatements = []string{
	"DROP TABLE IF EXISTS customers",
}
