package corpus

import (
	"fmt"
	"sync"

	"github.com/tanyalayanan/ragcore/schema"
)

// Snapshot is an immutable view of the loaded corpus. Chunk order is the
// ingestion insertion order; retrieval tie-breaking relies on it being stable.
type Snapshot struct {
	chunks []*schema.Chunk
	byID   map[string]*schema.Chunk
	// position is the insertion index per chunk ID, used for deterministic
	// tie-breaking in fusion.
	position map[string]int

	// Sparse corpus statistics, computed once at load.
	docFreq   map[string]int
	docLen    map[string]float64
	avgDocLen float64
	dims      int
}

// NewSnapshot builds a snapshot from ingestion-supplied chunks.
func NewSnapshot(chunks []*schema.Chunk) (*Snapshot, error) {
	s := &Snapshot{
		chunks:   chunks,
		byID:     make(map[string]*schema.Chunk, len(chunks)),
		position: make(map[string]int, len(chunks)),
		docFreq:  make(map[string]int),
		docLen:   make(map[string]float64, len(chunks)),
	}
	var totalLen float64
	for i, ch := range chunks {
		if ch.ID == "" {
			return nil, fmt.Errorf("chunk %d: empty id", i)
		}
		if _, dup := s.byID[ch.ID]; dup {
			return nil, fmt.Errorf("chunk %d: duplicate id %q", i, ch.ID)
		}
		if s.dims == 0 {
			s.dims = len(ch.DenseEmbedding)
		} else if len(ch.DenseEmbedding) != 0 && len(ch.DenseEmbedding) != s.dims {
			return nil, fmt.Errorf("chunk %q: embedding dims %d, want %d", ch.ID, len(ch.DenseEmbedding), s.dims)
		}
		s.byID[ch.ID] = ch
		s.position[ch.ID] = i
		var dl float64
		for term, w := range ch.SparseTermWeights {
			if w <= 0 {
				continue
			}
			s.docFreq[term]++
			dl += w
		}
		s.docLen[ch.ID] = dl
		totalLen += dl
	}
	if len(chunks) > 0 {
		s.avgDocLen = totalLen / float64(len(chunks))
	}
	return s, nil
}

// Chunks returns all chunks in insertion order. Callers must not mutate.
func (s *Snapshot) Chunks() []*schema.Chunk { return s.chunks }

// Get returns a chunk by ID.
func (s *Snapshot) Get(id string) (*schema.Chunk, bool) {
	ch, ok := s.byID[id]
	return ch, ok
}

// Position returns the insertion index for a chunk ID, or a large sentinel
// when unknown.
func (s *Snapshot) Position(id string) int {
	if p, ok := s.position[id]; ok {
		return p
	}
	return int(^uint(0) >> 1)
}

// Len returns the chunk count.
func (s *Snapshot) Len() int { return len(s.chunks) }

// DocFreq returns the number of chunks containing the term.
func (s *Snapshot) DocFreq(term string) int { return s.docFreq[term] }

// DocLen returns the sparse weight mass of a chunk.
func (s *Snapshot) DocLen(id string) float64 { return s.docLen[id] }

// AvgDocLen returns the corpus-wide average sparse weight mass.
func (s *Snapshot) AvgDocLen() float64 { return s.avgDocLen }

// Dims returns the dense embedding dimensionality, 0 for an empty corpus.
func (s *Snapshot) Dims() int { return s.dims }

// Store holds the current corpus snapshot. Reads are lock-free apart from a
// pointer load; Replace swaps the whole snapshot atomically (full reload is
// the only mutation the core supports).
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewStore creates a store around an initial snapshot. A nil snapshot is
// treated as an empty corpus.
func NewStore(snap *Snapshot) *Store {
	if snap == nil {
		snap, _ = NewSnapshot(nil)
	}
	return &Store{snap: snap}
}

// Snapshot returns the current snapshot.
func (st *Store) Snapshot() *Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snap
}

// Replace swaps in a new snapshot.
func (st *Store) Replace(snap *Snapshot) {
	st.mu.Lock()
	st.snap = snap
	st.mu.Unlock()
}
