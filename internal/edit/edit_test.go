package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/cv-index/internal/domain"
)

func TestParseResponse_Create(t *testing.T) {
	response := "Here's the new file:\n\n```internal/foo/bar.go\npackage foo\n\nfunc Bar() {}\n```\n\nDone."
	edits := ParseResponse(response, "msg-1")
	require.Len(t, edits, 1)
	assert.Equal(t, domain.EditCreate, edits[0].Type)
	assert.Equal(t, "internal/foo/bar.go", edits[0].File)
	assert.Equal(t, "package foo\n\nfunc Bar() {}", edits[0].NewContent)
	assert.Equal(t, domain.StatusPending, edits[0].Status)
	assert.Equal(t, "msg-1", edits[0].MessageID)
	assert.NotEmpty(t, edits[0].ID)
}

func TestParseResponse_Modify(t *testing.T) {
	response := "```main.go\n" +
		"<<<<<<< SEARCH\n" +
		"func main() {\n" +
		"\tfmt.Println(\"hi\")\n" +
		"}\n" +
		"=======\n" +
		"func main() {\n" +
		"\tfmt.Println(\"hello\")\n" +
		"}\n" +
		">>>>>>> REPLACE\n" +
		"```\n"
	edits := ParseResponse(response, "msg-2")
	require.Len(t, edits, 1)
	assert.Equal(t, domain.EditModify, edits[0].Type)
	require.Len(t, edits[0].SearchReplaceBlocks, 1)
	assert.Contains(t, edits[0].SearchReplaceBlocks[0].Search, "hi")
	assert.Contains(t, edits[0].SearchReplaceBlocks[0].Replace, "hello")
}

func TestParseResponse_MultipleSearchReplaceBlocksInOneFile(t *testing.T) {
	response := "```a.go\n" +
		"<<<<<<< SEARCH\n" +
		"one\n" +
		"=======\n" +
		"uno\n" +
		">>>>>>> REPLACE\n" +
		"<<<<<<< SEARCH\n" +
		"two\n" +
		"=======\n" +
		"dos\n" +
		">>>>>>> REPLACE\n" +
		"```\n"
	edits := ParseResponse(response, "msg-3")
	require.Len(t, edits, 1)
	require.Len(t, edits[0].SearchReplaceBlocks, 2)
	assert.Equal(t, "one", edits[0].SearchReplaceBlocks[0].Search)
	assert.Equal(t, "two", edits[0].SearchReplaceBlocks[1].Search)
}

func TestParseResponse_Delete(t *testing.T) {
	response := "```old/unused.go\n<<<<<<< DELETE\n>>>>>>> DELETE\n```\n"
	edits := ParseResponse(response, "msg-4")
	require.Len(t, edits, 1)
	assert.Equal(t, domain.EditDelete, edits[0].Type)
	assert.Equal(t, "old/unused.go", edits[0].File)
}

func TestParseResponse_RenameArrow(t *testing.T) {
	for _, arrow := range []string{"->", "→"} {
		response := "```old/name.go " + arrow + " new/name.go\n```\n"
		edits := ParseResponse(response, "msg-5")
		require.Len(t, edits, 1, arrow)
		assert.Equal(t, domain.EditRename, edits[0].Type)
		assert.Equal(t, "old/name.go", edits[0].File)
		assert.Equal(t, "new/name.go", edits[0].NewPath)
	}
}

func TestParseResponse_IgnoresUnlabeledBlocks(t *testing.T) {
	response := "```\nsome example shell output\n```\n```go\nfunc unrelated() {}\n```\n"
	edits := ParseResponse(response, "msg-6")
	assert.Empty(t, edits)
}

func TestParseResponse_IgnoresProseFences(t *testing.T) {
	response := "```bash\necho hi\n```\n"
	edits := ParseResponse(response, "msg-7")
	assert.Empty(t, edits)
}

func TestParseResponse_MultipleBlocksInOneResponse(t *testing.T) {
	response := "```a.go\nnew a\n```\n\nand also\n\n```b.go\nnew b\n```\n"
	edits := ParseResponse(response, "msg-8")
	require.Len(t, edits, 2)
	assert.Equal(t, "a.go", edits[0].File)
	assert.Equal(t, "b.go", edits[1].File)
}

func TestIsPathLabel(t *testing.T) {
	assert.True(t, isPathLabel("internal/foo/bar.go"))
	assert.True(t, isPathLabel("main.go"))
	assert.False(t, isPathLabel("go"))
	assert.False(t, isPathLabel("some label"))
	assert.False(t, isPathLabel(""))
}

func TestRenderCreate(t *testing.T) {
	hunks := RenderCreate("a.go", "line1\nline2")
	require.Len(t, hunks, 1)
	assert.Equal(t, 1, hunks[0].StartLine)
	require.Len(t, hunks[0].Lines, 2)
	for _, l := range hunks[0].Lines {
		assert.Equal(t, DiffAdd, l.Kind)
	}
}

func TestRenderDelete(t *testing.T) {
	hunks := RenderDelete("a.go", "line1\nline2\nline3")
	require.Len(t, hunks, 1)
	require.Len(t, hunks[0].Lines, 3)
	for _, l := range hunks[0].Lines {
		assert.Equal(t, DiffRemove, l.Kind)
	}
}

func TestRenderModify_ComputesStartLineAndContext(t *testing.T) {
	current := "package a\n\nfunc one() {}\n\nfunc two() {}\n"
	blocks := []domain.SearchReplaceBlock{{Search: "func two() {}", Replace: "func two() { return }"}}
	hunks := RenderModify("a.go", current, blocks)
	require.Len(t, hunks, 1)
	assert.Equal(t, 5, hunks[0].StartLine)

	var kinds []DiffLineKind
	for _, l := range hunks[0].Lines {
		kinds = append(kinds, l.Kind)
	}
	assert.Contains(t, kinds, DiffContext)
	assert.Contains(t, kinds, DiffRemove)
	assert.Contains(t, kinds, DiffAdd)
}

func TestRender_DispatchesOnEditType(t *testing.T) {
	create := domain.Edit{Type: domain.EditCreate, File: "a.go", NewContent: "x"}
	assert.Len(t, Render(create, ""), 1)

	del := domain.Edit{Type: domain.EditDelete, File: "a.go"}
	assert.Len(t, Render(del, "x\ny"), 1)

	rename := domain.Edit{Type: domain.EditRename, File: "a.go", NewPath: "b.go"}
	assert.Nil(t, Render(rename, ""))
}
