package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/suPer8Hu/travel-assistant/internal/models"
)

type Chat struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`

	User *models.User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Chat) TableName() string { return "chats" }

// MessageRecord is the stored row. The JSON payload is
// {"type": "human"|"ai", "content": ..., "metadata": {...}}.
type MessageRecord struct {
	ID        string         `gorm:"type:varchar(26);primaryKey"`
	SessionID string         `gorm:"type:varchar(36);not null;index:idx_messages_session_created,priority:1"`
	CreatedAt time.Time      `gorm:"not null;index:idx_messages_session_created,priority:2"`
	Message   datatypes.JSON `gorm:"not null"`

	Chat *Chat `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (MessageRecord) TableName() string { return "messages" }

type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Metadata is either HumanMetadata or AssistantMetadata.
type Metadata interface {
	role() Role
}

type HumanMetadata struct {
	UserID string `json:"user_id"`
}

func (HumanMetadata) role() Role { return RoleHuman }

type AssistantMetadata struct {
	Sources string `json:"sources"`
}

func (AssistantMetadata) role() Role { return RoleAI }

type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

func NewHumanMessage(content, userID string) Message {
	return Message{Role: RoleHuman, Content: content, Metadata: HumanMetadata{UserID: userID}}
}

func NewAIMessage(content, sources string) Message {
	return Message{Role: RoleAI, Content: content, Metadata: AssistantMetadata{Sources: sources}}
}

type payload struct {
	Type     Role            `json:"type"`
	Content  string          `json:"content"`
	Metadata json.RawMessage `json:"metadata"`
}

func encodePayload(m Message) (datatypes.JSON, error) {
	if m.Metadata == nil {
		return nil, fmt.Errorf("message without metadata (role=%s)", m.Role)
	}
	if m.Metadata.role() != m.Role {
		return nil, fmt.Errorf("metadata for %s attached to %s message", m.Metadata.role(), m.Role)
	}
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(payload{Type: m.Role, Content: m.Content, Metadata: meta})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeRecord(r MessageRecord) (Message, error) {
	var p payload
	if err := json.Unmarshal(r.Message, &p); err != nil {
		return Message{}, fmt.Errorf("decode message %s: %w", r.ID, err)
	}

	m := Message{ID: r.ID, ChatID: r.SessionID, Role: p.Type, Content: p.Content, CreatedAt: r.CreatedAt.UTC()}
	switch p.Type {
	case RoleHuman:
		var md HumanMetadata
		if err := unmarshalMetadata(p.Metadata, &md); err != nil {
			return Message{}, fmt.Errorf("decode message %s metadata: %w", r.ID, err)
		}
		m.Metadata = md
	case RoleAI:
		var md AssistantMetadata
		if err := unmarshalMetadata(p.Metadata, &md); err != nil {
			return Message{}, fmt.Errorf("decode message %s metadata: %w", r.ID, err)
		}
		m.Metadata = md
	default:
		return Message{}, fmt.Errorf("decode message %s: unknown type %q", r.ID, p.Type)
	}
	return m, nil
}

func unmarshalMetadata(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
