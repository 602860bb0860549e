// Package all registers every warehouse backend. Import it blank from main
// packages to make all backends selectable by configuration.
package all

import (
	_ "ecomdw/internal/warehouse/mssql"
	_ "ecomdw/internal/warehouse/postgres"
	_ "ecomdw/internal/warehouse/sqlite"
)
