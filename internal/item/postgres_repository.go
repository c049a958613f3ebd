package item

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ItemRecord mirrors the items table owned by the item management service.
type ItemRecord struct {
	ID            string        `gorm:"type:varchar(64);primaryKey"`
	FinderAddress string        `gorm:"type:varchar(64);not null;index"`
	Status        string        `gorm:"type:varchar(32);not null;default:available"`
	Claims        []ClaimRecord `gorm:"foreignKey:ItemID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ItemRecord) TableName() string {
	return "items"
}

// ClaimRecord mirrors the claims table. Insertion order is submission order.
type ClaimRecord struct {
	ID             uint   `gorm:"primaryKey"`
	ItemID         string `gorm:"type:varchar(64);not null;index"`
	ApplierAddress string `gorm:"type:varchar(64);not null"`
	SecretMessage  string `gorm:"type:text;not null"`
	Status         string `gorm:"type:varchar(32);not null;default:pending"`
	CreatedAt      time.Time
}

func (ClaimRecord) TableName() string {
	return "claims"
}

// PostgresRepository reads items via GORM. It never writes.
type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Item, error) {
	var rec ItemRecord
	err := r.db.WithContext(ctx).
		Preload("Claims", func(db *gorm.DB) *gorm.DB {
			return db.Order("claims.created_at ASC, claims.id ASC")
		}).
		First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find item %s: %w", id, err)
	}
	return rec.toDomain(), nil
}

func (rec ItemRecord) toDomain() *Item {
	it := &Item{
		ID:            rec.ID,
		FinderAddress: rec.FinderAddress,
		Status:        Status(rec.Status),
		Claims:        make([]Claim, 0, len(rec.Claims)),
	}
	for _, c := range rec.Claims {
		it.Claims = append(it.Claims, Claim{
			ApplierAddress: c.ApplierAddress,
			SecretMessage:  c.SecretMessage,
			Status:         ClaimStatus(c.Status),
			CreatedAt:      c.CreatedAt,
		})
	}
	return it
}
