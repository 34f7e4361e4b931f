// Package repository implements a generic, soft-delete-aware data access
// layer over bun. A Repository[T] serves one entity type: predicate-based
// reads, audit-stamped writes, batched bulk operations and paged queries
// whose counting strategy is delegated to the pagination policy.
//
// Soft deletion is the default read contract. Every read merges an
// is_deleted = false clause into the caller's predicate unless
// IncludeDeleted is passed, and removing a record twice with markAsDeleted
// escalates from flagging the row to removing it.
//
// When a cache service is attached, the *Cached read variants populate
// through it and every successful write sweeps the entity's cached entries.
package repository
