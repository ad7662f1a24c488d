// Package stores provides the deployment history persistence layer.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for deployment records: which daemon was started
// where, with which descriptor, and how it ended up.
package stores
