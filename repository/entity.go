package repository

import (
	"time"
)

// Entity is the minimal contract every persisted record satisfies. Domain
// models implement it by embedding Model and declaring their table name.
type Entity interface {
	// TableName returns the database table name for this entity. It also
	// namespaces the entity's cache keys, so it must be stable.
	TableName() string

	// GetID returns the primary key value; zero means not yet persisted.
	GetID() int64

	// SetID assigns the primary key after insert.
	SetID(id int64)

	// Deleted reports the soft-delete flag.
	Deleted() bool

	// SetDeleted flips the soft-delete flag.
	SetDeleted(deleted bool)

	// StampCreated records the creation audit fields.
	StampCreated(by string, at time.Time)

	// StampModified records the modification audit fields.
	StampModified(by string, at time.Time)
}

// Model is the embeddable base for all persisted records: numeric identity,
// soft-delete flag and audit fields.
type Model struct {
	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	IsDeleted  bool      `bun:"is_deleted,notnull,default:false" json:"is_deleted"`
	CreatedOn  time.Time `bun:"created_on,nullzero" json:"created_on"`
	CreatedBy  string    `bun:"created_by,nullzero" json:"created_by"`
	ModifiedOn time.Time `bun:"modified_on,nullzero" json:"modified_on"`
	ModifiedBy string    `bun:"modified_by,nullzero" json:"modified_by"`
}

// GetID implements Entity.
func (m *Model) GetID() int64 { return m.ID }

// SetID implements Entity.
func (m *Model) SetID(id int64) { m.ID = id }

// Deleted implements Entity.
func (m *Model) Deleted() bool { return m.IsDeleted }

// SetDeleted implements Entity.
func (m *Model) SetDeleted(deleted bool) { m.IsDeleted = deleted }

// StampCreated implements Entity.
func (m *Model) StampCreated(by string, at time.Time) {
	m.CreatedOn = at
	m.CreatedBy = by
}

// StampModified implements Entity.
func (m *Model) StampModified(by string, at time.Time) {
	m.ModifiedOn = at
	m.ModifiedBy = by
}

// SameEntity reports identity-based equality: two persisted records with the
// same non-default id are the same entity. An unsaved record (zero id) is
// never equal to anything through this method.
func (m *Model) SameEntity(other Entity) bool {
	if other == nil || m.ID == 0 {
		return false
	}
	return m.ID == other.GetID()
}
