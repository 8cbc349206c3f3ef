package graphstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNew_UnreachableURL exercises the wrapped-error path (spec.md §7:
// StoreUnavailable) without requiring a live Neo4j instance.
func TestNew_UnreachableURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := New(ctx, "bolt://127.0.0.1:1", "", "", "test-repo")
	assert.Error(t, err)
}
