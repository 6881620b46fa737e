// Package snapshots records periodic statistics about the object graph in a
// SQLite database and mirrors the latest values into metrics gauges.
package snapshots
