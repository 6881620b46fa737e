// Package model holds the observable domain graph: the server hierarchy
// (ServerSet > Server > Channel > Bot > Packet), the file set
// (FileSet > File > FilePart) and the saved searches (SearchSet > Search).
//
// Each root set owns one aggregate lock that every attached descendant
// shares. Mutations take the write lock, reads take the read lock, and
// observers are called after the lock is released so they may read or
// snapshot the graph they were notified about.
package model
