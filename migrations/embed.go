// Package migrations embeds the SQL schema migrations into the binary.
//
// Importing this package (blank import from cmd/signaged) registers the
// embedded filesystem with the database package's migration runner.
package migrations

import (
	"embed"

	"github.com/linkitmedia/signage-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
