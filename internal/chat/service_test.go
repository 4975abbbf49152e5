package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/suPer8Hu/travel-assistant/internal/ai"
	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/models"
	"github.com/suPer8Hu/travel-assistant/internal/vectorstore"
)

type recordingProvider struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(messages) > 0 {
		p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	}
	if p.err != nil {
		return "", p.err
	}
	if p.reply == "" {
		return "ok", nil
	}
	return p.reply, nil
}

func (p *recordingProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

type fakeRetriever struct {
	docs []vectorstore.ScoredDocument
	err  error
}

func (r *fakeRetriever) SimilaritySearch(ctx context.Context, query string, k int) ([]vectorstore.ScoredDocument, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.docs) > k {
		return r.docs[:k], nil
	}
	return r.docs, nil
}

func doc(id, file, content string, score float64) vectorstore.ScoredDocument {
	return vectorstore.ScoredDocument{
		Document: vectorstore.Document{
			ID:       id,
			Content:  content,
			Metadata: map[string]string{vectorstore.MetaSourceFile: file, vectorstore.MetaID: id},
		},
		Score: score,
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&models.User{}, &Chat{}, &MessageRecord{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	u := models.User{ID: id, Username: "u-" + id, Email: id + "@example.com", PasswordHash: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func newTestService(t *testing.T, prov *recordingProvider, ret *fakeRetriever) (*Service, *Repo, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo, ret, prov, Options{HistoryWindow: 3, TopK: 3, LLMTimeout: time.Second})
	return svc, repo, db
}

func TestComposePrompt_EmptySections(t *testing.T) {
	got := ComposePrompt("Q", nil, nil)
	want := "You are a helpful assistant. Use the conversation history and reference context to answer:\n" +
		"Conversation History:\n\n\nContext from docs:\n\n\nQuestion:\nQ"
	if got != want {
		t.Fatalf("unexpected prompt:\n%q\nwant\n%q", got, want)
	}
}

func TestComposePrompt_HistoryAndDocs(t *testing.T) {
	history := []Message{NewHumanMessage("hi", "u1"), NewAIMessage("hello", "")}
	docs := []vectorstore.ScoredDocument{doc("1", "a.txt", "Alpha", 0.9), doc("2", "b.txt", "Beta", 0.5)}

	got := ComposePrompt("Where?", docs, history)
	if !strings.Contains(got, "Human: hi\nAI: hello") {
		t.Fatalf("history not rendered: %q", got)
	}
	if !strings.Contains(got, "Alpha\n---\nBeta") {
		t.Fatalf("docs not joined: %q", got)
	}
	if !strings.HasSuffix(got, "Question:\nWhere?") {
		t.Fatalf("question not last: %q", got)
	}
}

func TestFormatSources_MissingMetadata(t *testing.T) {
	docs := []vectorstore.ScoredDocument{
		doc("abc", "doc1.txt", "x", 1),
		{Document: vectorstore.Document{Content: "y"}, Score: 1},
	}
	if got := FormatSources(docs); got != "doc1.txt (id=abc)\nN/A (id=N/A)" {
		t.Fatalf("unexpected sources: %q", got)
	}
}

func TestRepo_RoundTripPreservesOrderAndPayload(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	if _, err := repo.AppendMessages(ctx, "c1", NewHumanMessage("question", "u1"), NewAIMessage("answer", "a.txt (id=1)")); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := repo.ListChronological(ctx, "c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleHuman || msgs[0].Content != "question" {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if md, ok := msgs[0].Metadata.(HumanMetadata); !ok || md.UserID != "u1" {
		t.Fatalf("unexpected human metadata: %#v", msgs[0].Metadata)
	}
	if msgs[1].Role != RoleAI || msgs[1].Content != "answer" {
		t.Fatalf("unexpected second message: %+v", msgs[1])
	}
	if md, ok := msgs[1].Metadata.(AssistantMetadata); !ok || md.Sources != "a.txt (id=1)" {
		t.Fatalf("unexpected assistant metadata: %#v", msgs[1].Metadata)
	}
}

func TestRepo_ListChronologicalIsNonDecreasing(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := repo.AppendMessages(ctx, "c1", NewHumanMessage(fmt.Sprintf("m%d", i), "u1")); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := repo.ListChronological(ctx, "c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := range msgs {
		if msgs[i].Content != fmt.Sprintf("m%d", i) {
			t.Fatalf("position %d holds %q", i, msgs[i].Content)
		}
		if i > 0 && msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("created_at decreased at %d", i)
		}
	}
}

func TestRepo_ConcurrentAppendsAcrossChats(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	const chats, perChat = 4, 5
	var wg sync.WaitGroup
	errs := make(chan error, chats)
	for c := 0; c < chats; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			chatID := fmt.Sprintf("chat-%d", c)
			for i := 0; i < perChat; i++ {
				if _, err := repo.AppendMessages(ctx, chatID, NewHumanMessage(fmt.Sprintf("%d", i), "u")); err != nil {
					errs <- err
					return
				}
			}
		}(c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}

	for c := 0; c < chats; c++ {
		msgs, err := repo.ListChronological(ctx, fmt.Sprintf("chat-%d", c))
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(msgs) != perChat {
			t.Fatalf("chat-%d: expected %d messages, got %d", c, perChat, len(msgs))
		}
		for i, m := range msgs {
			if m.Content != fmt.Sprintf("%d", i) {
				t.Fatalf("chat-%d: position %d holds %q", c, i, m.Content)
			}
		}
	}
}

func TestRepo_ConcurrentAppendsToOneChat(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	const writers, perWriter = 5, 6
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := repo.AppendMessages(ctx, "shared", NewHumanMessage(fmt.Sprintf("w%d-%d", w, i), "u")); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}

	msgs, err := repo.ListChronological(ctx, "shared")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != writers*perWriter {
		t.Fatalf("expected %d messages, got %d", writers*perWriter, len(msgs))
	}

	seen := map[string]bool{}
	next := make([]int, writers)
	for i, m := range msgs {
		if seen[m.Content] {
			t.Fatalf("message %q stored twice", m.Content)
		}
		seen[m.Content] = true

		if i > 0 {
			prev := msgs[i-1]
			if m.CreatedAt.Before(prev.CreatedAt) || (m.CreatedAt.Equal(prev.CreatedAt) && m.ID < prev.ID) {
				t.Fatalf("order broken at %d: %s/%s after %s/%s", i, m.CreatedAt, m.ID, prev.CreatedAt, prev.ID)
			}
		}

		var w, n int
		if _, err := fmt.Sscanf(m.Content, "w%d-%d", &w, &n); err != nil {
			t.Fatalf("unexpected content %q", m.Content)
		}
		if n != next[w] {
			t.Fatalf("writer %d: expected message %d next, got %d", w, next[w], n)
		}
		next[w]++
	}
}

func TestRepo_TouchChatOnlyMovesForward(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := &Chat{ID: "c1", UserID: "u1", CreatedAt: base, UpdatedAt: base}
	if err := repo.CreateChat(ctx, c); err != nil {
		t.Fatalf("create chat: %v", err)
	}

	later := base.Add(time.Hour)
	if err := repo.TouchChat(ctx, "c1", later); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := repo.TouchChat(ctx, "c1", base.Add(time.Minute)); err != nil {
		t.Fatalf("touch older: %v", err)
	}

	got, err := repo.GetChat(ctx, "c1")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %s, got %s", later, got.UpdatedAt)
	}
}

func TestCreateChat_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t, &recordingProvider{}, &fakeRetriever{})

	_, err := svc.CreateChat(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetOrCreateSession(t *testing.T) {
	svc, _, db := newTestService(t, &recordingProvider{}, &fakeRetriever{})
	seedUser(t, db, "alice")
	seedUser(t, db, "bob")
	ctx := context.Background()

	fresh, err := svc.GetOrCreateSession(ctx, "", "alice")
	if err != nil || fresh == "" {
		t.Fatalf("create from empty id: id=%q err=%v", fresh, err)
	}
	c, err := svc.GetChat(ctx, fresh)
	if err != nil || c.UserID != "alice" {
		t.Fatalf("new chat not owned by alice: %+v err=%v", c, err)
	}

	same, err := svc.GetOrCreateSession(ctx, fresh, "alice")
	if err != nil || same != fresh {
		t.Fatalf("expected existing chat %s, got %s err=%v", fresh, same, err)
	}

	other, err := svc.GetOrCreateSession(ctx, fresh, "bob")
	if err != nil {
		t.Fatalf("ownership fallback: %v", err)
	}
	if other == fresh {
		t.Fatalf("expected a new chat for bob, got alice's")
	}

	unknown, err := svc.GetOrCreateSession(ctx, "does-not-exist", "bob")
	if err != nil || unknown == "does-not-exist" || unknown == "" {
		t.Fatalf("unknown chat id: got %q err=%v", unknown, err)
	}
}

func TestGenerateResponse_ExampleScenario(t *testing.T) {
	prov := &recordingProvider{reply: "Try Naxos."}
	ret := &fakeRetriever{docs: []vectorstore.ScoredDocument{
		doc("abc", "doc1.txt", "Naxos has long sandy beaches.", 0.82),
		doc("def", "doc2.txt", "Paros is lively in summer.", 0.61),
		doc("ghi", "doc3.txt", "Unrelated.", 0),
	}}
	svc, _, db := newTestService(t, prov, ret)
	seedUser(t, db, "alice")
	ctx := context.Background()

	chatID, err := svc.GetOrCreateSession(ctx, "", "alice")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	reply, err := svc.GenerateResponse(ctx, "Best beach town in Greece?", chatID, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.Message != "Try Naxos." {
		t.Fatalf("unexpected reply: %q", reply.Message)
	}
	if reply.Sources != "doc1.txt (id=abc)\ndoc2.txt (id=def)" {
		t.Fatalf("unexpected sources: %q", reply.Sources)
	}
	if strings.Contains(prov.lastPrompt(), "Unrelated.") {
		t.Fatalf("zero-score doc leaked into prompt")
	}
	if !strings.Contains(prov.lastPrompt(), "Human: Best beach town in Greece?") {
		t.Fatalf("current question missing from history section: %q", prov.lastPrompt())
	}

	history, err := svc.RetrieveHistory(ctx, chatID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Role != RoleHuman || history[1].Role != RoleAI {
		t.Fatalf("unexpected history: %+v", history)
	}
	if history[1].ID != reply.MessageID {
		t.Fatalf("reply message id %s does not match stored %s", reply.MessageID, history[1].ID)
	}

	c, _ := svc.GetChat(ctx, chatID)
	if c.UpdatedAt.Before(history[1].CreatedAt) {
		t.Fatalf("updated_at %s older than newest message %s", c.UpdatedAt, history[1].CreatedAt)
	}
}

func TestGenerateResponse_SecondTurnSeesFirst(t *testing.T) {
	prov := &recordingProvider{reply: "first answer"}
	svc, _, db := newTestService(t, prov, &fakeRetriever{})
	seedUser(t, db, "alice")
	ctx := context.Background()

	chatID, _ := svc.GetOrCreateSession(ctx, "", "alice")
	if _, err := svc.GenerateResponse(ctx, "first question", chatID, "alice"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if _, err := svc.GenerateResponse(ctx, "second question", chatID, "alice"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	p := prov.lastPrompt()
	if !strings.Contains(p, "Human: first question\nAI: first answer\nHuman: second question") {
		t.Fatalf("second prompt lacks first turn: %q", p)
	}
}

func TestGenerateResponse_WindowKeepsLastThree(t *testing.T) {
	prov := &recordingProvider{}
	svc, _, db := newTestService(t, prov, &fakeRetriever{})
	seedUser(t, db, "alice")
	ctx := context.Background()

	chatID, _ := svc.GetOrCreateSession(ctx, "", "alice")
	for _, q := range []string{"q1", "q2", "q3"} {
		if _, err := svc.GenerateResponse(ctx, q, chatID, "alice"); err != nil {
			t.Fatalf("turn %s: %v", q, err)
		}
	}
	p := prov.lastPrompt()
	if strings.Contains(p, "q1") {
		t.Fatalf("window not trimmed: %q", p)
	}
	if !strings.Contains(p, "Human: q2\nAI: ok\nHuman: q3") {
		t.Fatalf("expected last three messages: %q", p)
	}
}

func TestGenerateResponse_CompletionFailureLeavesHumanMessage(t *testing.T) {
	prov := &recordingProvider{err: errors.New("503 from model")}
	svc, _, db := newTestService(t, prov, &fakeRetriever{})
	seedUser(t, db, "alice")
	ctx := context.Background()

	chatID, _ := svc.GetOrCreateSession(ctx, "", "alice")
	_, err := svc.GenerateResponse(ctx, "hello?", chatID, "alice")
	if !errors.Is(err, common.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	history, _ := svc.RetrieveHistory(ctx, chatID)
	if len(history) != 1 || history[0].Role != RoleHuman {
		t.Fatalf("expected orphan human message, got %+v", history)
	}

	prov.err = nil
	if _, err := svc.GenerateResponse(ctx, "again", chatID, "alice"); err != nil {
		t.Fatalf("retry turn: %v", err)
	}
	if !strings.Contains(prov.lastPrompt(), "Human: hello?\nHuman: again") {
		t.Fatalf("orphan turn missing from next prompt: %q", prov.lastPrompt())
	}
}

func TestGenerateResponse_RetrievalFailure(t *testing.T) {
	prov := &recordingProvider{}
	svc, _, db := newTestService(t, prov, &fakeRetriever{err: errors.New("connection refused")})
	seedUser(t, db, "alice")
	ctx := context.Background()

	chatID, _ := svc.GetOrCreateSession(ctx, "", "alice")
	_, err := svc.GenerateResponse(ctx, "hi", chatID, "alice")
	var ue *common.UpstreamError
	if !errors.As(err, &ue) || ue.Service != "vector store" {
		t.Fatalf("expected vector store upstream error, got %v", err)
	}
	if len(prov.prompts) != 0 {
		t.Fatalf("completion service should not be called")
	}
}

func TestRetrieveHistory_EmptyChat(t *testing.T) {
	svc, _, _ := newTestService(t, &recordingProvider{}, &fakeRetriever{})

	msgs, err := svc.RetrieveHistory(context.Background(), "nothing-here")
	if err != nil || msgs != nil {
		t.Fatalf("expected nil history, got %v err=%v", msgs, err)
	}
}

func TestListUserChats_MostRecentFirst(t *testing.T) {
	svc, _, db := newTestService(t, &recordingProvider{}, &fakeRetriever{})
	seedUser(t, db, "alice")
	ctx := context.Background()

	first, _ := svc.CreateChat(ctx, "alice")
	second, _ := svc.CreateChat(ctx, "alice")
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.GenerateResponse(ctx, "bump", first.ID, "alice"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	chats, err := svc.ListUserChats(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 2 || chats[0].ID != first.ID || chats[1].ID != second.ID {
		t.Fatalf("unexpected order: %+v", chats)
	}
}

func TestJobs_IdempotentCreateAndRun(t *testing.T) {
	prov := &recordingProvider{reply: "async answer"}
	svc, _, db := newTestService(t, prov, &fakeRetriever{})
	seedUser(t, db, "alice")
	seedUser(t, db, "bob")
	ctx := context.Background()

	job, created, err := svc.CreateJob(ctx, "alice", "", "where to?", "key-1")
	if err != nil || !created {
		t.Fatalf("create job: created=%v err=%v", created, err)
	}
	again, created, err := svc.CreateJob(ctx, "alice", "", "where to?", "key-1")
	if err != nil || created || again.ID != job.ID {
		t.Fatalf("expected existing job %s, got %+v created=%v err=%v", job.ID, again, created, err)
	}

	if _, err := svc.GetJob(ctx, "bob", job.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("bob should not see alice's job, err=%v", err)
	}

	if err := svc.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("run job: %v", err)
	}
	if err := svc.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("second run should be a no-op: %v", err)
	}

	done, err := svc.GetJob(ctx, "alice", job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if done.Status != JobSucceeded || done.ResultMessageID == nil || !done.Done() {
		t.Fatalf("unexpected job state: %+v", done)
	}
	history, _ := svc.RetrieveHistory(ctx, done.ChatID)
	if len(history) != 2 || history[1].Content != "async answer" {
		t.Fatalf("expected one turn in history, got %+v", history)
	}
}

func TestJobs_FailureIsRecorded(t *testing.T) {
	prov := &recordingProvider{err: errors.New("model down")}
	svc, _, db := newTestService(t, prov, &fakeRetriever{})
	seedUser(t, db, "alice")
	ctx := context.Background()

	job, _, err := svc.CreateJob(ctx, "alice", "", "hi", "")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := svc.RunJob(ctx, job.ID); err == nil {
		t.Fatalf("expected run error")
	}
	got, _ := svc.GetJob(ctx, "alice", job.ID)
	if got.Status != JobFailed || got.Error == nil || !strings.Contains(*got.Error, "model down") {
		t.Fatalf("unexpected job state: %+v", got)
	}
}

// cancelingProvider cancels the caller's context mid-call, like a worker
// shutting down while a completion is in flight.
type cancelingProvider struct {
	cancel context.CancelFunc
}

func (p *cancelingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.cancel()
	<-ctx.Done()
	return "", ctx.Err()
}

func TestJobs_FailureRecordedAfterCancellation(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice")
	repo := NewRepo(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewService(repo, &fakeRetriever{}, &cancelingProvider{cancel: cancel}, Options{LLMTimeout: time.Second})

	job, _, err := svc.CreateJob(ctx, "alice", "", "hi", "")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := svc.RunJob(ctx, job.ID); err == nil {
		t.Fatalf("expected run error")
	}
	if ctx.Err() == nil {
		t.Fatalf("context should have been cancelled")
	}

	got, err := svc.GetJob(context.Background(), "alice", job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != JobFailed || !got.Done() {
		t.Fatalf("job should be recorded as failed, got %+v", got)
	}
}
