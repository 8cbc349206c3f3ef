package contextengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/cv-index/internal/domain"
)

func TestExtractKeywords_StripsPunctuationAndStopwords(t *testing.T) {
	got := extractKeywords("How do I fix the AuthMiddleware.Validate() function?")
	assert.Equal(t, []string{"authmiddleware", "validate"}, got)
}

func TestExtractKeywords_DedupesPreservingOrder(t *testing.T) {
	got := extractKeywords("retry retry logic for retry handler")
	assert.Equal(t, []string{"retry", "logic", "handler"}, got)
}

func TestPerKeywordLimit(t *testing.T) {
	assert.Equal(t, 2, perKeywordLimit(5, 5, 3))  // 5 vector hits: maxGraphResults=5, ceil(5/3)=2
	assert.Equal(t, 5, perKeywordLimit(5, 0, 3))  // sparse vector: maxGraphResults=15, ceil(15/3)=5
	assert.Equal(t, 15, perKeywordLimit(5, 0, 1)) // single keyword
}

func TestSyntheticQualifiedName(t *testing.T) {
	assert.Equal(t, "a.go#Foo", syntheticQualifiedName("a.go", "Foo", 10))
	assert.Equal(t, "a.go:10", syntheticQualifiedName("a.go", "", 10))
}

func TestEstimateTokens_CharsOverFourRoundedUp(t *testing.T) {
	snapshot := domain.ContextSnapshot{
		Files: []domain.FileContext{{Content: "1234567"}}, // 7 chars -> ceil(7/4) = 2
	}
	assert.Equal(t, 2, estimateTokens(snapshot))
}

func TestEstimateTokens_RelationshipFlatCost(t *testing.T) {
	snapshot := domain.ContextSnapshot{
		Relationships: []domain.Relationship{{From: "a", Type: "CALLS", To: "b"}},
	}
	assert.Equal(t, ceilDiv(50, 4), estimateTokens(snapshot))
}

type fakeFileReader struct {
	files map[string][]byte
}

func (f *fakeFileReader) ReadFile(path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, assert.AnError
	}
	return content, nil
}

func TestBuild_ExplicitFilesAlwaysIncluded(t *testing.T) {
	reader := &fakeFileReader{files: map[string][]byte{
		"main.go": []byte("package main\n\nfunc main() {}\n"),
	}}
	engine := New(nil, nil, nil, reader, DefaultOptions(), nil)

	snapshot, err := engine.Build(context.Background(), "", domain.ActiveContext{ExplicitFiles: []string{"main.go"}})
	require.NoError(t, err)
	require.Len(t, snapshot.Files, 1)
	assert.Equal(t, "explicit", snapshot.Files[0].Source)
	assert.Equal(t, 1.0, snapshot.Files[0].RelevanceScore)
}

func TestBuild_MissingExplicitFileIsDropped(t *testing.T) {
	reader := &fakeFileReader{files: map[string][]byte{}}
	engine := New(nil, nil, nil, reader, DefaultOptions(), nil)

	snapshot, err := engine.Build(context.Background(), "", domain.ActiveContext{ExplicitFiles: []string{"missing.go"}})
	require.NoError(t, err)
	assert.Empty(t, snapshot.Files)
}

func TestBuild_EmptySnapshotWhenEverySourceUnavailable(t *testing.T) {
	engine := New(nil, nil, nil, nil, DefaultOptions(), nil)
	snapshot, err := engine.Build(context.Background(), "find the parser", domain.ActiveContext{})
	require.NoError(t, err)
	assert.Empty(t, snapshot.Files)
	assert.Empty(t, snapshot.Symbols)
	assert.Equal(t, noRelevantCodeStanza, Render(snapshot))
}

func TestCombinedScore(t *testing.T) {
	assert.InDelta(t, 0.7, combinedScore(1.0, 0.0), 0.0001)
	assert.InDelta(t, 0.3, combinedScore(0.0, 1.0), 0.0001)
}

func TestRender_FormatsSections(t *testing.T) {
	snapshot := domain.ContextSnapshot{
		Files: []domain.FileContext{{Path: "a.go", Content: "package a", Source: "explicit"}},
		Symbols: []domain.SymbolContext{{
			Symbol: domain.Symbol{QualifiedName: "a.go#Foo", Kind: domain.KindFunction, File: "a.go", StartLine: 3},
			Code:   "func Foo() {}",
		}},
		Relationships: []domain.Relationship{{From: "a.go#Foo", Type: "CALLS", To: "a.go#Bar"}},
		TokenCount:    42,
	}
	out := Render(snapshot)
	assert.Contains(t, out, "## Context Summary")
	assert.Contains(t, out, "## Files in Context")
	assert.Contains(t, out, "## Relevant Code")
	assert.Contains(t, out, "## Code Relationships")
	assert.Contains(t, out, "a.go#Foo (function) — a.go:3")
	assert.Contains(t, out, "a.go#Foo --[CALLS]--> a.go#Bar")
}
