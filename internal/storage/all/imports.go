// Package all registers every storage backend and database/sql driver the
// binary supports. Import it for side effects.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "sensoretl/internal/storage/duckdb"
	_ "sensoretl/internal/storage/mssql"
	_ "sensoretl/internal/storage/postgres"
	_ "sensoretl/internal/storage/sqlite"
)
