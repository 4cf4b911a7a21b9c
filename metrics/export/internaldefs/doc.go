// Package internaldefs holds the metric names and bucket bounds shared by the
// exporters.
//
// Both the Prometheus and OTel exporters read these tables, so renaming a
// metric here renames it everywhere.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
