package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/cv-index/internal/contextengine"
	"github.com/docker/cv-index/internal/domain"
	"github.com/docker/cv-index/internal/fileops"
	"github.com/docker/cv-index/internal/llm"
	"github.com/docker/cv-index/internal/session"
)

type fakeChatProvider struct {
	response string
	err      error
	tokens   []string
}

func (f *fakeChatProvider) StreamChat(ctx context.Context, systemPrompt string, history []llm.Message, onToken func(string)) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if onToken != nil {
		for _, tok := range f.tokens {
			onToken(tok)
		}
	}
	return f.response, nil
}

type repoFileReader struct{ root string }

func (r repoFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.root, path))
}

func newTestOrchestrator(t *testing.T, chat llm.ChatProvider) (*Orchestrator, string, session.Store) {
	t.Helper()
	repoRoot := t.TempDir()
	store := session.NewInMemoryStore()
	engine := contextengine.New(nil, nil, nil, repoFileReader{root: repoRoot}, contextengine.DefaultOptions(), nil)
	ops := fileops.New(repoRoot, filepath.Join(repoRoot, ".cv"))
	return New(store, engine, ops, chat), repoRoot, store
}

func TestRunTurn_PersistsMessagesEditsAndTokenCount(t *testing.T) {
	chat := &fakeChatProvider{
		response: "Here you go:\n\n```new.go\npackage main\n```\n",
		tokens:   []string{"Here ", "you ", "go"},
	}
	orch, _, store := newTestOrchestrator(t, chat)

	sess, err := orch.StartSession(context.Background(), "main", "abc")
	require.NoError(t, err)

	var streamed string
	result, err := orch.RunTurn(context.Background(), sess.ID, "add a new file", func(tok string) { streamed += tok })
	require.NoError(t, err)
	assert.Equal(t, chat.response, result.Response)
	require.Len(t, result.Edits, 1)
	assert.Equal(t, domain.EditCreate, result.Edits[0].Type)
	assert.Equal(t, "Here you go", streamed)

	resumed, err := store.Resume(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, resumed.Messages, 2)
	assert.Equal(t, domain.RoleUser, resumed.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, resumed.Messages[1].Role)
	assert.NotNil(t, resumed.Messages[0].ContextSnapshot)
	assert.Equal(t, []string{result.Edits[0].ID}, resumed.Messages[1].ExtractedEdits)
	require.Len(t, resumed.PendingEdits, 1)
}

func TestRunTurn_NoEditsLeavesPendingEmpty(t *testing.T) {
	chat := &fakeChatProvider{response: "Just an explanation, no changes needed."}
	orch, _, store := newTestOrchestrator(t, chat)

	sess, err := orch.StartSession(context.Background(), "main", "abc")
	require.NoError(t, err)

	_, err = orch.RunTurn(context.Background(), sess.ID, "what does this do?", nil)
	require.NoError(t, err)

	resumed, err := store.Resume(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, resumed.PendingEdits)
}

func TestRunTurn_CancelledStreamIsNotPersisted(t *testing.T) {
	orch, _, store := newTestOrchestrator(t, &fakeChatProvider{response: "partial"})

	sess, err := orch.StartSession(context.Background(), "main", "abc")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = orch.RunTurn(ctx, sess.ID, "do something", nil)
	assert.Error(t, err)

	resumed, err := store.Resume(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, resumed.Messages)
}

func TestApproveEditAndApplyEdits(t *testing.T) {
	chat := &fakeChatProvider{response: "```new.go\npackage main\n```\n"}
	orch, repoRoot, store := newTestOrchestrator(t, chat)

	sess, err := orch.StartSession(context.Background(), "main", "abc")
	require.NoError(t, err)
	result, err := orch.RunTurn(context.Background(), sess.ID, "create new.go", nil)
	require.NoError(t, err)
	editID := result.Edits[0].ID

	require.NoError(t, orch.ApproveEdit(context.Background(), sess.ID, editID))

	results, err := orch.ApplyEdits(context.Background(), sess.ID, ApplyOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	content, err := os.ReadFile(filepath.Join(repoRoot, "new.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main", string(content))

	resumed, err := store.Resume(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, resumed.PendingEdits)
	require.Len(t, resumed.AppliedEdits, 1)
	assert.Equal(t, 1, resumed.Metadata.TotalEdits)
}

func TestApplyEdits_AutoApproveAppliesWithoutExplicitApproval(t *testing.T) {
	chat := &fakeChatProvider{response: "```new.go\npackage main\n```\n"}
	orch, _, _ := newTestOrchestrator(t, chat)

	sess, err := orch.StartSession(context.Background(), "main", "abc")
	require.NoError(t, err)
	_, err = orch.RunTurn(context.Background(), sess.ID, "create new.go", nil)
	require.NoError(t, err)

	results, err := orch.ApplyEdits(context.Background(), sess.ID, ApplyOptions{AutoApprove: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestApplyEdits_SkipsRejectedEdits(t *testing.T) {
	chat := &fakeChatProvider{response: "```new.go\npackage main\n```\n"}
	orch, _, _ := newTestOrchestrator(t, chat)

	sess, err := orch.StartSession(context.Background(), "main", "abc")
	require.NoError(t, err)
	result, err := orch.RunTurn(context.Background(), sess.ID, "create new.go", nil)
	require.NoError(t, err)

	require.NoError(t, orch.RejectEdit(context.Background(), sess.ID, result.Edits[0].ID))

	results, err := orch.ApplyEdits(context.Background(), sess.ID, ApplyOptions{AutoApprove: true})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUndoLastEdit_RevertsFile(t *testing.T) {
	response := "```existing.go\n" +
		"<<<<<<< SEARCH\n" +
		"package main\n" +
		"=======\n" +
		"package main // changed\n" +
		">>>>>>> REPLACE\n" +
		"```\n"
	chat := &fakeChatProvider{response: response}
	orch, repoRoot, _ := newTestOrchestrator(t, chat)
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "existing.go"), []byte("package main\n"), 0o644))

	sess, err := orch.StartSession(context.Background(), "main", "abc")
	require.NoError(t, err)
	_, err = orch.RunTurn(context.Background(), sess.ID, "annotate existing.go", nil)
	require.NoError(t, err)
	_, err = orch.ApplyEdits(context.Background(), sess.ID, ApplyOptions{AutoApprove: true})
	require.NoError(t, err)

	changed, err := os.ReadFile(filepath.Join(repoRoot, "existing.go"))
	require.NoError(t, err)
	assert.Contains(t, string(changed), "changed")

	_, err = orch.UndoLastEdit(context.Background(), sess.ID)
	require.NoError(t, err)

	restored, err := os.ReadFile(filepath.Join(repoRoot, "existing.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(restored))
}

func TestLastMessages_CapsToLimit(t *testing.T) {
	messages := make([]domain.CodeMessage, 15)
	for i := range messages {
		messages[i] = domain.CodeMessage{ID: string(rune('a' + i))}
	}
	trimmed := lastMessages(messages, 10)
	assert.Len(t, trimmed, 10)
	assert.Equal(t, messages[5:], trimmed)
}
