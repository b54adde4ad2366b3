package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tanyalayanan/ragcore/schema"
)

// LoadFile reads ingestion output into a snapshot. Supported formats:
// a JSON array of chunks, a JSON object {"chunks": [...]}, or JSONL with one
// chunk per line (extension .jsonl).
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	var chunks []*schema.Chunk
	if strings.HasSuffix(path, ".jsonl") {
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 1<<20), 1<<24)
		line := 0
		for sc.Scan() {
			line++
			raw := strings.TrimSpace(sc.Text())
			if raw == "" {
				continue
			}
			ch := &schema.Chunk{}
			if err := json.Unmarshal([]byte(raw), ch); err != nil {
				return nil, fmt.Errorf("corpus line %d: %w", line, err)
			}
			chunks = append(chunks, ch)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read corpus: %w", err)
		}
	} else {
		// Accept either a bare array or a {"chunks": [...]} wrapper.
		var wrapper struct {
			Chunks []*schema.Chunk `json:"chunks"`
		}
		var arr []*schema.Chunk
		bs, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read corpus: %w", err)
		}
		if err := json.Unmarshal(bs, &arr); err == nil {
			chunks = arr
		} else if err := json.Unmarshal(bs, &wrapper); err == nil {
			chunks = wrapper.Chunks
		} else {
			return nil, fmt.Errorf("parse corpus %s: %w", path, err)
		}
	}
	return NewSnapshot(chunks)
}
