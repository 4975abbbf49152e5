package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrNotFound
	}
	return err
}

func (r *Repo) UserExists(ctx context.Context, userID string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *Repo) CreateChat(ctx context.Context, c *Chat) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).First(&c, "id = ?", chatID).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListChatsByUser returns the user's chats, most recently active first.
func (r *Repo) ListChatsByUser(ctx context.Context, userID string) ([]Chat, error) {
	var chats []Chat
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id ASC").
		Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

// TouchChat moves updated_at forward to at. An older at is a no-op.
func (r *Repo) TouchChat(ctx context.Context, chatID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Chat{}).
		Where("id = ? AND updated_at < ?", chatID, at.UTC()).
		UpdateColumn("updated_at", at.UTC()).Error
}

// AppendMessages stores msgs in one transaction, in submission order. Every
// message gets the same server timestamp and a strictly increasing ULID, so
// ListChronological returns them in the order given.
func (r *Repo) AppendMessages(ctx context.Context, chatID string, msgs ...Message) ([]Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	out := make([]Message, len(msgs))
	records := make([]MessageRecord, len(msgs))
	for i, m := range msgs {
		id, err := common.NewULIDAt(now)
		if err != nil {
			return nil, fmt.Errorf("new message id: %w", err)
		}
		body, err := encodePayload(m)
		if err != nil {
			return nil, err
		}
		records[i] = MessageRecord{ID: id, SessionID: chatID, CreatedAt: now, Message: body}

		m.ID = id
		m.ChatID = chatID
		m.CreatedAt = now
		out[i] = m
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListChronological returns every message of the chat, oldest first.
func (r *Repo) ListChronological(ctx context.Context, chatID string) ([]Message, error) {
	var records []MessageRecord
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(records))
	for _, rec := range records {
		m, err := decodeRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &j, nil
}

// MarkJobRunning reports whether the job moved from queued to running.
func (r *Repo) MarkJobRunning(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID string, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id, idempotency_key) already exists,
// it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.CreateJob(ctx, job); err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.CreateJob(ctx, job)
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, common.ErrNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
