package signup

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	"github.com/pressly/goose/v3"
)

const migrationsDir = "data/sql/migrations"

//go:embed data/sql/migrations/*.sql
var migrationsFS embed.FS

//go:embed views/*.html
var viewsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// GetViewsFS returns the built-in views rooted at the views directory
func GetViewsFS() fs.FS {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewViewEngine returns a django engine serving the built-in views.
func NewViewEngine() *django.Engine {
	return django.NewFileSystem(http.FS(GetViewsFS()), ".html")
}

// Migrate applies the embedded migrations. dialect is a goose dialect
// name, "sqlite3" when empty.
func Migrate(ctx context.Context, db *sql.DB, dialect string) error {
	if dialect == "" {
		dialect = "sqlite3"
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, migrationsDir)
}
