package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const chunkJSON = `{"id":"ktp-1","text":"syarat ktp","source_document_id":"doc-1","title":"KTP",` +
	`"category":"identitas","sparse_term_weights":{"ktp":2.5},"dense_embedding":[0.1,0.2]}`

func TestLoadFile_JSONArray(t *testing.T) {
	path := writeFile(t, "corpus.json", "["+chunkJSON+"]")

	snap, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())
	ch, ok := snap.Get("ktp-1")
	require.True(t, ok)
	assert.Equal(t, "syarat ktp", ch.Text)
	assert.Equal(t, "KTP", ch.Title)
	assert.Equal(t, 2.5, ch.SparseTermWeights["ktp"])
	assert.Equal(t, []float32{0.1, 0.2}, ch.DenseEmbedding)
}

func TestLoadFile_WrappedObject(t *testing.T) {
	path := writeFile(t, "corpus.json", `{"chunks":[`+chunkJSON+`]}`)

	snap, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestLoadFile_JSONL(t *testing.T) {
	second := `{"id":"ktp-2","text":"perekaman","source_document_id":"doc-1","sparse_term_weights":{"perekaman":1},"dense_embedding":[0.3,0.4]}`
	path := writeFile(t, "corpus.jsonl", chunkJSON+"\n\n"+second+"\n")

	snap, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, 0, snap.Position("ktp-1"))
	assert.Equal(t, 1, snap.Position("ktp-2"), "file order is insertion order")
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := writeFile(t, "corpus.json", "not json")
	_, err = LoadFile(bad)
	assert.Error(t, err)

	badLine := writeFile(t, "corpus.jsonl", chunkJSON+"\n{broken\n")
	_, err = LoadFile(badLine)
	assert.Error(t, err)

	dup := writeFile(t, "corpus.json", "["+chunkJSON+","+chunkJSON+"]")
	_, err = LoadFile(dup)
	assert.Error(t, err, "duplicate ids are rejected at load")
}
