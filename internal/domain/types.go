// Package domain holds the entity types shared by every core component:
// the indexer (File, Symbol, Import, Chunk, Edge), the context engine
// (ActiveContext, ContextSnapshot), the edit engine (Edit, EditResult) and
// the session coordinator (CodeSession, CodeMessage). See spec.md §3.
package domain

import "time"

// SymbolKind enumerates the declaration kinds the Parser Registry can
// produce (spec.md §3).
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindClass     SymbolKind = "class"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindEnum      SymbolKind = "enum"
	KindVariable  SymbolKind = "variable"
)

// Visibility mirrors spec.md §4.1's per-language visibility inference.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
)

// File is a single source file tracked by the index (spec.md §3).
type File struct {
	Path          string    `json:"path"`
	Language      string    `json:"language"`
	ContentHash   string    `json:"contentHash"`
	LastParsedAt  time.Time `json:"lastParsedAt"`
}

// Symbol is a named declaration extracted from a File.
type Symbol struct {
	QualifiedName string     `json:"qualifiedName"`
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	File          string     `json:"file"`
	StartLine     int        `json:"startLine"`
	EndLine       int        `json:"endLine"`
	Signature     string     `json:"signature"`
	Docstring     string     `json:"docstring,omitempty"`
	Visibility    Visibility `json:"visibility"`
	IsAsync       bool       `json:"isAsync"`
	Complexity    int        `json:"complexity"`
}

// Call is a callee reference found inside a Symbol's body, before edge
// resolution against the graph (spec.md §4.1).
type Call struct {
	Caller        string `json:"caller"` // qualifiedName of the enclosing Symbol
	Callee        string `json:"callee"` // unqualified textual name
	IsConditional bool   `json:"isConditional"`
}

// Import is owned by a File (spec.md §3).
type Import struct {
	File          string   `json:"file"`
	Source        string   `json:"source"`
	ImportedNames []string `json:"importedNames"`
	IsExternal    bool     `json:"isExternal"`
}

// ParsedFile is the Parser Registry's per-file output contract (spec.md §4.1).
type ParsedFile struct {
	Path     string
	Language string
	Symbols  []Symbol
	Imports  []Import
	Exports  []string
	Calls    []Call
}

// Chunk is an embedding-sized unit of file text (spec.md §3, §4.2).
type Chunk struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	SymbolName string `json:"symbolName,omitempty"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	Text       string `json:"text"`
	Language   string `json:"language"`
	Docstring  string `json:"docstring,omitempty"`
}

// EdgeType enumerates the graph edge relations (spec.md §3). The on-disk
// label carries a CV_ namespace prefix so the graph database can be shared
// with an unrelated PRD feature without edge-type collisions (spec.md §9).
type EdgeType string

const (
	EdgeDefines   EdgeType = "CV_DEFINES"
	EdgeCalls     EdgeType = "CV_CALLS"
	EdgeImports   EdgeType = "CV_IMPORTS"
	EdgeImplements EdgeType = "CV_IMPLEMENTS"
	EdgeExtends   EdgeType = "CV_EXTENDS"
)

// Edge is a directed, typed graph relation.
type Edge struct {
	Type string `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`
}

// SyncState is the single per-repo record persisted after each sync run
// (spec.md §3, §6).
type SyncState struct {
	LastCommitSynced  string            `json:"lastCommitSynced"`
	LastSyncAt        time.Time         `json:"lastSyncAt"`
	FileCount         int               `json:"fileCount"`
	SymbolCount       int               `json:"symbolCount"`
	EdgeCount         int               `json:"edgeCount"`
	VectorCount       int               `json:"vectorCount"`
	LanguageHistogram map[string]int    `json:"languageHistogram"`
	// FileHashes maps repo-relative path to its last-indexed content hash,
	// the input to the Sync Engine's content-hash short-circuit: a file git
	// reports modified whose hash is unchanged is skipped.
	FileHashes map[string]string `json:"fileHashes"`
}

// ActiveContext is the user's and system's current working set for one
// session (spec.md §3).
type ActiveContext struct {
	ExplicitFiles   []string `json:"explicitFiles"`
	DiscoveredFiles []string `json:"discoveredFiles"`
	ActiveSymbols   []string `json:"activeSymbols"`
	TokenCount      int      `json:"tokenCount"`
	TokenLimit      int      `json:"tokenLimit"`
}

// AddExplicitFile adds path to ExplicitFiles, preserving set semantics (no
// duplicates, insertion order kept) per spec.md §3's invariant.
func (a *ActiveContext) AddExplicitFile(path string) {
	for _, p := range a.ExplicitFiles {
		if p == path {
			return
		}
	}
	a.ExplicitFiles = append(a.ExplicitFiles, path)
}

// MessageRole enumerates CodeMessage.Role (spec.md §3).
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// CodeMessage is one turn of conversation, tagged by role. Only assistant
// messages carry ExtractedEdits; only user messages typically carry a
// ContextSnapshot, but the field is shared rather than split into a
// per-role struct so Session JSON stays a flat array (spec.md §9 calls for
// a tagged variant conceptually; this is its Go-idiomatic rendering: one
// struct, role-gated optional fields, same as the teacher's own
// chat.Message shape).
type CodeMessage struct {
	ID              string           `json:"id"`
	Role            MessageRole      `json:"role"`
	Content         string           `json:"content"`
	Timestamp       time.Time        `json:"timestamp"`
	ContextSnapshot *ContextSnapshot `json:"contextSnapshot,omitempty"`
	ExtractedEdits  []string         `json:"extractedEdits,omitempty"` // Edit IDs
}

// EditType enumerates the Edit variants (spec.md §3, §4.7).
type EditType string

const (
	EditCreate EditType = "create"
	EditModify EditType = "modify"
	EditDelete EditType = "delete"
	EditRename EditType = "rename"
)

// EditStatus tracks an Edit through the approval/apply lifecycle (spec.md §3).
type EditStatus string

const (
	StatusPending  EditStatus = "pending"
	StatusApproved EditStatus = "approved"
	StatusApplied  EditStatus = "applied"
	StatusRejected EditStatus = "rejected"
)

// SearchReplaceBlock is one SEARCH/REPLACE pair within a modify Edit.
type SearchReplaceBlock struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

// Edit is a typed, reversible file-system change proposed by the LLM
// (spec.md §3, §4.7). It is a tagged variant over Type: NewContent is only
// meaningful for create/modify-as-create, SearchReplaceBlocks only for
// modify, NewPath only for rename.
type Edit struct {
	ID                 string               `json:"id"`
	File               string               `json:"file"`
	Type               EditType             `json:"type"`
	NewContent         string               `json:"newContent,omitempty"`
	SearchReplaceBlocks []SearchReplaceBlock `json:"searchReplaceBlocks,omitempty"`
	NewPath            string               `json:"newPath,omitempty"`
	Status             EditStatus           `json:"status"`
	MessageID          string               `json:"messageId"`
	CreatedAt          time.Time            `json:"createdAt"`
}

// EditResult is the outcome of applying or reverting an Edit (spec.md §3).
type EditResult struct {
	Edit       Edit       `json:"edit"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	BackupPath string     `json:"backupPath,omitempty"`
	AppliedAt  *time.Time `json:"appliedAt,omitempty"`
}

// FileContext is one entry of a ContextSnapshot's Files (spec.md §4.6).
type FileContext struct {
	Path           string  `json:"path"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevanceScore"`
	Source         string  `json:"source"` // "explicit" | "vector" | "keyword"
}

// SymbolContext is one entry of a ContextSnapshot's Symbols (spec.md §4.6).
type SymbolContext struct {
	Symbol         Symbol  `json:"symbol"`
	RelevanceScore float64 `json:"relevanceScore"`
	Centrality     float64 `json:"centrality"`
	// Code is the symbol's exact source text, sliced from its owning
	// file's current content by StartLine/EndLine so edits can reference
	// it verbatim (spec.md §4.6 phase 3).
	Code   string `json:"code,omitempty"`
	Source string `json:"source"` // "vector" | "keyword" | "graph"
}

// Relationship is one rendered CALLS (or other) edge included in a
// ContextSnapshot (spec.md §4.6 phase 4).
type Relationship struct {
	From string `json:"from"`
	Type string `json:"type"`
	To   string `json:"to"`
}

// ContextSnapshot is the materialized, token-bounded context for one LLM
// turn (spec.md §3, §4.6).
type ContextSnapshot struct {
	Files         []FileContext   `json:"files"`
	Symbols       []SymbolContext `json:"symbols"`
	Relationships []Relationship  `json:"relationships"`
	TokenCount    int             `json:"tokenCount"`
}

// CodeSession is the durable record of one conversation (spec.md §3).
type CodeSession struct {
	ID            string        `json:"id"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Branch        string        `json:"branch"`
	CommitAtStart string        `json:"commitAtStart"`
	Messages      []CodeMessage `json:"messages"`
	ActiveContext ActiveContext `json:"activeContext"`
	PendingEdits  []Edit        `json:"pendingEdits"`
	AppliedEdits  []EditResult  `json:"appliedEdits"`
	Metadata      SessionMeta   `json:"metadata"`
}

// SessionMeta tracks derived/denormalized session counters (spec.md §4.9).
type SessionMeta struct {
	FilesModified []string `json:"filesModified"`
	TotalEdits    int      `json:"totalEdits"`
}
