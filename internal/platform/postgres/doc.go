// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package: plans and
// their generated structure, the append-only generation attempt ledger,
// the durable job queue, and the resource search cache. It handles query
// execution, claim locking, and data mapping between domain entities and
// database records.
package postgres
