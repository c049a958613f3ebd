package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// MessageRecord models the persisted representation of a chat message.
type MessageRecord struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	ConversationID  string    `gorm:"type:varchar(64);not null;index:idx_messages_conversation_created,priority:1"`
	SenderAddress   string    `gorm:"type:varchar(64);not null"`
	ReceiverAddress string    `gorm:"type:varchar(64);not null"`
	Content         string    `gorm:"type:text;not null"`
	CreatedAt       time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (MessageRecord) TableName() string {
	return "messages"
}

// PostgresStore persists messages via PostgreSQL using GORM.
type PostgresStore struct {
	db    *gorm.DB
	clock *Clock
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: NewClock()}
}

// AutoMigrate creates or updates the messages table.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&MessageRecord{}); err != nil {
		return fmt.Errorf("migrate messages: %w", err)
	}
	log.Debug().Msg("messages table migrated")
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, conversationID, senderAddress, receiverAddress, content string) (*Message, error) {
	now := s.clock.Now()
	rec := MessageRecord{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		SenderAddress:   senderAddress,
		ReceiverAddress: receiverAddress,
		Content:         content,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, wrapPersistence(err)
	}
	msg := rec.toDomain()
	return &msg, nil
}

func (s *PostgresStore) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	var records []MessageRecord
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, wrapPersistence(err)
	}
	out := make([]Message, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (rec MessageRecord) toDomain() Message {
	return Message{
		ID:              rec.ID,
		ConversationID:  rec.ConversationID,
		SenderAddress:   rec.SenderAddress,
		ReceiverAddress: rec.ReceiverAddress,
		Content:         rec.Content,
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
	}
}

func wrapPersistence(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
