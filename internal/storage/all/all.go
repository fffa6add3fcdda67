// Package all registers every storage backend. Import it for side effects
// from the binary that needs backend selection by config:
//
//	import _ "retailetl/internal/storage/all"
package all

import (
	_ "retailetl/internal/storage/mssql"
	_ "retailetl/internal/storage/postgres"
	_ "retailetl/internal/storage/sqlite"
)
