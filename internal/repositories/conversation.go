package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentleague/league/internal/db"
	"gorm.io/gorm"
)

type gormConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository returns a ConversationRepository backed by the
// provided *gorm.DB.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

// UpsertSeq reads the conversation's current message_seq, creates the row
// if absent, and stores the new seq when it advances the high-water mark
// (a seq behind or equal to what's recorded leaves the row untouched, so a
// rejected or replayed message can never lower it), all within one
// transaction so concurrent requests on the same conversation_id cannot
// interleave.
func (r *gormConversationRepository) UpsertSeq(ctx context.Context, conversationID string, seq int) (int, error) {
	previous := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv db.Conversation
		err := tx.First(&conv, "conversation_id = ?", conversationID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			conv = db.Conversation{ConversationID: conversationID, LastMessageSeq: seq}
			return tx.Create(&conv).Error
		case err != nil:
			return err
		default:
			previous = conv.LastMessageSeq
			if seq <= previous {
				return nil
			}
			return tx.Model(&conv).Update("last_message_seq", seq).Error
		}
	})
	if err != nil {
		return 0, fmt.Errorf("conversations: upsert seq: %w", err)
	}
	return previous, nil
}

// GetReplay looks up a cached registration reply by conversation_id.
func (r *gormConversationRepository) GetReplay(ctx context.Context, conversationID string) (string, []byte, bool, error) {
	var conv db.Conversation
	err := r.db.WithContext(ctx).First(&conv, "conversation_id = ?", conversationID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", nil, false, nil
	case err != nil:
		return "", nil, false, fmt.Errorf("conversations: get replay: %w", err)
	case conv.RequestHash == "":
		return "", nil, false, nil
	default:
		return conv.RequestHash, []byte(conv.ResponsePayload), true, nil
	}
}

// SaveReplay caches requestHash/responsePayload against conversationID,
// creating the row if this conversation has not been seen before.
func (r *gormConversationRepository) SaveReplay(ctx context.Context, conversationID, requestHash string, responsePayload []byte) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv db.Conversation
		err := tx.First(&conv, "conversation_id = ?", conversationID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			conv = db.Conversation{ConversationID: conversationID, RequestHash: requestHash, ResponsePayload: string(responsePayload)}
			return tx.Create(&conv).Error
		case err != nil:
			return err
		default:
			return tx.Model(&conv).Updates(map[string]any{
				"request_hash":     requestHash,
				"response_payload": string(responsePayload),
			}).Error
		}
	})
	if err != nil {
		return fmt.Errorf("conversations: save replay: %w", err)
	}
	return nil
}
