package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/suPer8Hu/travel-assistant/internal/ai"
	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/vectorstore"
)

const (
	svcRelational = "relational store"
	svcVector     = "vector store"
	svcCompletion = "completion service"

	jobRecordTimeout = 5 * time.Second
)

// Retriever is the similarity-search half of vectorstore.Store.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]vectorstore.ScoredDocument, error)
}

type Options struct {
	HistoryWindow int
	TopK          int
	LLMTimeout    time.Duration
}

type Service struct {
	repo      *Repo
	retriever Retriever
	provider  ai.Provider
	opts      Options
}

func NewService(repo *Repo, retriever Retriever, provider ai.Provider, opts Options) *Service {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 3
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 60 * time.Second
	}
	return &Service{repo: repo, retriever: retriever, provider: provider, opts: opts}
}

// Reply is the outcome of one turn.
type Reply struct {
	Message   string
	Sources   string
	ChatID    string
	MessageID string
}

func (s *Service) CreateChat(ctx context.Context, userID string) (*Chat, error) {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, common.Upstream(svcRelational, err)
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
	}

	c := &Chat{ID: uuid.NewString(), UserID: userID}
	if err := s.repo.CreateChat(ctx, c); err != nil {
		return nil, common.Upstream(svcRelational, err)
	}
	return c, nil
}

// GetOrCreateSession returns chatID when it names a chat owned by userID.
// Otherwise, including when the chat belongs to someone else, a new chat is
// created for userID.
func (s *Service) GetOrCreateSession(ctx context.Context, chatID, userID string) (string, error) {
	if chatID != "" {
		c, err := s.repo.GetChat(ctx, chatID)
		switch {
		case err == nil && c.UserID == userID:
			return c.ID, nil
		case err == nil:
			log.Printf("[ChatService.GetOrCreateSession] chat_id=%s not owned by user_id=%s, creating new chat", chatID, userID)
		case errors.Is(err, common.ErrNotFound):
			log.Printf("[ChatService.GetOrCreateSession] chat_id=%s not found, creating new chat", chatID)
		default:
			return "", common.Upstream(svcRelational, err)
		}
	}

	c, err := s.CreateChat(ctx, userID)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// GenerateResponse runs one turn against an existing chat owned by userID.
// A failure after the human message is stored leaves it in place.
func (s *Service) GenerateResponse(ctx context.Context, prompt, chatID, userID string) (*Reply, error) {
	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("chat %s: %w", chatID, common.ErrNotFound)
		}
		return nil, common.Upstream(svcRelational, err)
	}
	if c.UserID != userID {
		return nil, fmt.Errorf("chat %s: %w", chatID, common.ErrNotFound)
	}

	// 1) persist the question
	if _, err := s.repo.AppendMessages(ctx, chatID, NewHumanMessage(prompt, userID)); err != nil {
		return nil, common.Upstream(svcRelational, err)
	}

	// 2) history window, current question included
	history, err := s.repo.ListChronological(ctx, chatID)
	if err != nil {
		return nil, common.Upstream(svcRelational, err)
	}
	if len(history) > s.opts.HistoryWindow {
		history = history[len(history)-s.opts.HistoryWindow:]
	}

	// 3) retrieval
	hits, err := s.retriever.SimilaritySearch(ctx, prompt, s.opts.TopK)
	if err != nil {
		return nil, common.Upstream(svcVector, err)
	}
	docs := relevant(hits)

	// 4-5) compose and generate
	llmCtx, cancel := context.WithTimeout(ctx, s.opts.LLMTimeout)
	defer cancel()

	start := time.Now()
	answer, err := s.provider.Chat(llmCtx, []ai.Message{{Role: ai.RoleUser, Content: ComposePrompt(prompt, docs, history)}})
	if err != nil {
		log.Printf("[ChatService.GenerateResponse] completion failed chat_id=%s cost=%s err=%v", chatID, time.Since(start), err)
		return nil, common.Upstream(svcCompletion, err)
	}

	// 6) persist the answer with its citations
	sources := FormatSources(docs)
	saved, err := s.repo.AppendMessages(ctx, chatID, NewAIMessage(answer, sources))
	if err != nil {
		return nil, common.Upstream(svcRelational, err)
	}

	// 7) bump activity
	if err := s.repo.TouchChat(ctx, chatID, time.Now().UTC()); err != nil {
		return nil, common.Upstream(svcRelational, err)
	}

	return &Reply{Message: answer, Sources: sources, ChatID: chatID, MessageID: saved[0].ID}, nil
}

// RetrieveHistory returns nil when the chat has no messages, whether or not
// the chat exists.
func (s *Service) RetrieveHistory(ctx context.Context, chatID string) ([]Message, error) {
	msgs, err := s.repo.ListChronological(ctx, chatID)
	if err != nil {
		return nil, common.Upstream(svcRelational, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs, nil
}

func (s *Service) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.Upstream(svcRelational, err)
	}
	return c, nil
}

func (s *Service) ListUserChats(ctx context.Context, userID string) ([]Chat, error) {
	chats, err := s.repo.ListChatsByUser(ctx, userID)
	if err != nil {
		return nil, common.Upstream(svcRelational, err)
	}
	return chats, nil
}

// CreateJob queues a turn. A repeated idempotency key returns the original job
// with created=false.
func (s *Service) CreateJob(ctx context.Context, userID, chatID, prompt, idempotencyKey string) (*Job, bool, error) {
	if idempotencyKey != "" {
		existing, err := s.repo.GetJobByUserAndIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, false, common.Upstream(svcRelational, err)
		}
	}

	resolved, err := s.GetOrCreateSession(ctx, chatID, userID)
	if err != nil {
		return nil, false, err
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	j := &Job{
		ID:     jobID,
		UserID: userID,
		ChatID: resolved,
		Prompt: prompt,
		Status: JobQueued,
	}
	if idempotencyKey != "" {
		j.IdempotencyKey = &idempotencyKey
	}

	job, created, err := s.repo.CreateJobOrGetExisting(ctx, j)
	if err != nil {
		return nil, false, common.Upstream(svcRelational, err)
	}
	return job, created, nil
}

// GetJob hides jobs owned by other users.
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (*Job, error) {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.Upstream(svcRelational, err)
	}
	if j.UserID != userID {
		return nil, common.ErrNotFound
	}
	return j, nil
}

// RunJob executes a queued job. Jobs that are not queued are skipped, so a
// redelivered message does not produce a second answer.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	started, err := s.repo.MarkJobRunning(ctx, jobID)
	if err != nil {
		return common.Upstream(svcRelational, err)
	}
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !started {
		if j.Done() {
			log.Printf("[ChatService.RunJob] skip finished job_id=%s status=%s", jobID, j.Status)
		} else {
			log.Printf("[ChatService.RunJob] skip job_id=%s status=%s", jobID, j.Status)
		}
		return nil
	}

	reply, genErr := s.GenerateResponse(ctx, j.Prompt, j.ChatID, j.UserID)

	// the outcome is recorded even when ctx was cancelled by a shutdown
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobRecordTimeout)
	defer cancel()

	if genErr != nil {
		if err := s.repo.MarkJobFailed(recordCtx, jobID, genErr.Error()); err != nil {
			log.Printf("[ChatService.RunJob] mark failed job_id=%s err=%v", jobID, err)
		}
		return genErr
	}
	if err := s.repo.MarkJobSucceeded(recordCtx, jobID, reply.MessageID); err != nil {
		return common.Upstream(svcRelational, err)
	}
	return nil
}
