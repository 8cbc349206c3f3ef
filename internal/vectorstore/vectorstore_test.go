package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docker/cv-index/internal/domain"
)

func TestEmbeddingInput_PrependsDocstring(t *testing.T) {
	c := domain.Chunk{Text: "func Foo() {}", Docstring: "Foo does a thing"}
	assert.Equal(t, "Foo does a thing\n\nfunc Foo() {}", embeddingInput(c))

	plain := domain.Chunk{Text: "func Foo() {}"}
	assert.Equal(t, "func Foo() {}", embeddingInput(plain))
}

func TestPointFor_PayloadShape(t *testing.T) {
	c := domain.Chunk{
		ID:         "abc123",
		File:       "a.go",
		SymbolName: "Foo",
		StartLine:  1,
		EndLine:    3,
		Language:   "go",
		Docstring:  "does foo",
		Text:       "func Foo() {}",
	}

	p := pointFor(c, []float32{0.1, 0.2})
	assert.NotNil(t, p.Id)
	assert.NotNil(t, p.Vectors)
	assert.NotNil(t, p.Payload)
	assert.Equal(t, "a.go", p.Payload["path"].GetStringValue())
	assert.Equal(t, int64(1), p.Payload["startLine"].GetIntegerValue())
	assert.Equal(t, int64(3), p.Payload["endLine"].GetIntegerValue())
	assert.Equal(t, "Foo", p.Payload["symbolName"].GetStringValue())
	assert.Equal(t, "go", p.Payload["language"].GetStringValue())
	assert.Equal(t, "does foo", p.Payload["docstring"].GetStringValue())
	assert.Equal(t, "func Foo() {}", p.Payload["text"].GetStringValue())
}

func TestDefaultOptions_NamesThreeCollections(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 32, opts.BatchSize)
	assert.Equal(t, "code_chunks", opts.Collections["code"])
	assert.Equal(t, "docstrings", opts.Collections["docstring"])
	assert.Equal(t, "prd_chunks", opts.Collections["prd"])
}
