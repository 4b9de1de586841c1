// Package migrations applies the embedded schema files for both storage
// backends: Postgres holds alerts and health verdicts, ClickHouse holds
// bars, indicator values, trades and walk-forward windows.
package migrations

import "embed"

// PostgresFS holds the Postgres schema files, applied in lexical order.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema files, applied in lexical order.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
