// Package orchestrator is the Assistant Orchestrator (spec.md §4.10):
// drives one turn end-to-end (context build, provider stream, edit
// extraction, session update) and the approval/apply/undo flow over
// Edits it has extracted. The turn sequencing and the fixed-system-prompt
// + trimmed-history composition are grounded on pkg/session/session.go's
// history trimming and pkg/model/provider/provider.go's Provider
// construction.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docker/cv-index/internal/contextengine"
	"github.com/docker/cv-index/internal/domain"
	"github.com/docker/cv-index/internal/edit"
	"github.com/docker/cv-index/internal/fileops"
	"github.com/docker/cv-index/internal/llm"
	"github.com/docker/cv-index/internal/session"
)

// historyLimit is spec.md §4.10 step 3's "last 10 messages".
const historyLimit = 10

// TurnResult is RunTurn's spec.md §4.10 step 7 return shape.
type TurnResult struct {
	Response string
	Edits    []domain.Edit
	Snapshot domain.ContextSnapshot
}

// Orchestrator wires the Context Engine, a chat provider, the Edit
// Parser, File Operations, and the Session Store into one turn-driving
// loop.
type Orchestrator struct {
	sessions session.Store
	context  *contextengine.Engine
	files    *fileops.Ops
	chat     llm.ChatProvider
}

// New builds an Orchestrator.
func New(sessions session.Store, contextEngine *contextengine.Engine, files *fileops.Ops, chat llm.ChatProvider) *Orchestrator {
	return &Orchestrator{sessions: sessions, context: contextEngine, files: files, chat: chat}
}

// StartSession confirms an active session (spec.md §4.10 step 1): it
// creates a new one for the given branch/commit.
func (o *Orchestrator) StartSession(ctx context.Context, branch, commitAtStart string) (domain.CodeSession, error) {
	return o.sessions.Create(ctx, branch, commitAtStart)
}

// RunTurn drives one turn end-to-end (spec.md §4.10 steps 2-6). onToken,
// if non-nil, receives streamed text as it arrives. On cancellation
// (ctx.Err() != nil once the stream ends) the partial response is
// discarded: no edits are parsed and nothing is persisted.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID, userMessage string, onToken func(string)) (TurnResult, error) {
	sess, err := o.sessions.Resume(ctx, sessionID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: resume session: %w", err)
	}

	snapshot, err := o.context.Build(ctx, userMessage, sess.ActiveContext)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: build context: %w", err)
	}

	history := lastMessages(sess.Messages, historyLimit)
	llmHistory := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		llmHistory = append(llmHistory, llm.Message{Role: m.Role, Content: m.Content})
	}
	llmHistory = append(llmHistory, llm.Message{Role: domain.RoleUser, Content: userMessage})

	fullSystemPrompt := systemPrompt + "\n\n" + contextengine.Render(snapshot)

	response, err := o.chat.StreamChat(ctx, fullSystemPrompt, llmHistory, onToken)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: stream chat: %w", err)
	}
	if ctx.Err() != nil {
		// Cancelled mid-stream: discard, don't parse or persist (spec.md §5).
		return TurnResult{}, ctx.Err()
	}

	now := time.Now().UTC()
	assistantID := uuid.NewString()
	edits := edit.ParseResponse(response, assistantID)

	userMsg := domain.CodeMessage{
		ID: uuid.NewString(), Role: domain.RoleUser, Content: userMessage,
		Timestamp: now, ContextSnapshot: &snapshot,
	}
	assistantMsg := domain.CodeMessage{
		ID: assistantID, Role: domain.RoleAssistant, Content: response,
		Timestamp: now, ExtractedEdits: editIDs(edits),
	}

	if err := o.sessions.AddMessage(ctx, sessionID, userMsg); err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: save user message: %w", err)
	}
	if err := o.sessions.AddMessage(ctx, sessionID, assistantMsg); err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: save assistant message: %w", err)
	}
	if len(edits) > 0 {
		if err := o.sessions.AddPendingEdits(ctx, sessionID, edits); err != nil {
			return TurnResult{}, fmt.Errorf("orchestrator: save pending edits: %w", err)
		}
	}
	if err := o.sessions.UpdateTokenCount(ctx, sessionID, snapshot.TokenCount); err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: update token count: %w", err)
	}

	return TurnResult{Response: response, Edits: edits, Snapshot: snapshot}, nil
}

// ApproveEdit flips a single pending edit to approved.
func (o *Orchestrator) ApproveEdit(ctx context.Context, sessionID, editID string) error {
	return o.sessions.SetPendingEditStatus(ctx, sessionID, editID, domain.StatusApproved)
}

// RejectEdit flips a single pending edit to rejected; it is never applied
// and stays in PendingEdits (spec.md §4.10).
func (o *Orchestrator) RejectEdit(ctx context.Context, sessionID, editID string) error {
	return o.sessions.SetPendingEditStatus(ctx, sessionID, editID, domain.StatusRejected)
}

// ApproveAllEdits bulk-approves every still-pending (non-rejected) edit.
func (o *Orchestrator) ApproveAllEdits(ctx context.Context, sessionID string) error {
	sess, err := o.sessions.Resume(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("orchestrator: resume session: %w", err)
	}
	for _, e := range sess.PendingEdits {
		if e.Status == domain.StatusRejected {
			continue
		}
		if err := o.sessions.SetPendingEditStatus(ctx, sessionID, e.ID, domain.StatusApproved); err != nil {
			return fmt.Errorf("orchestrator: approve %s: %w", e.ID, err)
		}
	}
	return nil
}

// ApplyOptions configures ApplyEdits.
type ApplyOptions struct {
	// AutoApprove treats every non-rejected pending edit as approved
	// before applying (spec.md §4.10: "applyEdits({autoApprove?})").
	AutoApprove bool
}

// ApplyEdits asks File Operations to apply every approved pending edit.
// Each success moves the Edit into AppliedEdits; each failure is
// returned in results with Success=false and the Edit stays pending
// (spec.md §4.10).
func (o *Orchestrator) ApplyEdits(ctx context.Context, sessionID string, opts ApplyOptions) ([]domain.EditResult, error) {
	if opts.AutoApprove {
		if err := o.ApproveAllEdits(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	sess, err := o.sessions.Resume(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resume session: %w", err)
	}

	var results []domain.EditResult
	for _, e := range sess.PendingEdits {
		if e.Status != domain.StatusApproved {
			continue
		}
		result := o.files.Apply(e)
		results = append(results, result)
		if result.Success {
			if err := o.sessions.MarkEditApplied(ctx, sessionID, result); err != nil {
				return results, fmt.Errorf("orchestrator: mark applied %s: %w", e.ID, err)
			}
		}
	}
	return results, nil
}

// UndoLastEdit pops the most recently applied edit and reverts it on disk
// (spec.md §4.10). The index is not rolled back.
func (o *Orchestrator) UndoLastEdit(ctx context.Context, sessionID string) (domain.EditResult, error) {
	result, err := o.sessions.PopAppliedEdit(ctx, sessionID)
	if err != nil {
		return domain.EditResult{}, err
	}
	if err := o.files.Revert(result); err != nil {
		return result, fmt.Errorf("orchestrator: revert %s: %w", result.Edit.ID, err)
	}
	return result, nil
}

// lastMessages returns the last n messages, oldest first.
func lastMessages(messages []domain.CodeMessage, n int) []domain.CodeMessage {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

func editIDs(edits []domain.Edit) []string {
	if len(edits) == 0 {
		return nil
	}
	ids := make([]string, len(edits))
	for i, e := range edits {
		ids[i] = e.ID
	}
	return ids
}
