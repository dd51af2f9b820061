package entity

import (
	"context"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseEntity contains the fields shared by every company-owned entity.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// CompanyID is the owning tenant. Cross-company access is invalid.
	CompanyID id.ID `db:"company_id" json:"companyId"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity(companyID id.ID) BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		CompanyID: companyID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp and increments version.
func (b *BaseEntity) Touch() {
	b.UpdatedAt = time.Now().UTC()
	b.Version++
}

// SetVersion updates the version number (used by repository after sync).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}

// BelongsTo reports whether the entity is owned by companyID.
func (b *BaseEntity) BelongsTo(companyID id.ID) bool {
	return b.CompanyID == companyID
}

// ValidateBase checks the fields every entity must carry.
func (b *BaseEntity) ValidateBase() error {
	if id.IsNil(b.ID) {
		return apperror.NewValidation("id is required").WithDetail("field", "id")
	}
	if id.IsNil(b.CompanyID) {
		return apperror.NewValidation("company is required").WithDetail("field", "companyId")
	}
	return nil
}
