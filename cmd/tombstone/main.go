// Command tombstone inspects soft-delete filtering for a PostgreSQL schema.
//
// The CLI supports:
//   - explain: Show how a query described in YAML is rewritten
//   - catalog: List the entities of a catalog file
//   - doctor: Check a catalog against a live database
//   - config show: Print the effective configuration
//   - version: Print version information
//
// Usage:
//
//	tombstone [flags] <command>
package main

func main() {
	Execute()
}
