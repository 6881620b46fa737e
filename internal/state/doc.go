// Package state persists the three aggregates of the object graph (servers,
// files and searches) crash-safely.
//
// Key components:
//   - FileBackend: JSON snapshots written through a .new file and rotated
//     into place with a .bak copy of the previous good snapshot
//   - Store: owns the loaded graphs, saves immediately on structural events,
//     coalesces progress updates behind a one-slot dirty signal, and runs the
//     periodic save loop
package state
