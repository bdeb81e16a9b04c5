package stitch

import (
	"fmt"
	"sync"
)

// Session resolves chunks as their diarization completes. Chunks may arrive
// in any order; a chunk is folded in only once every earlier chunk has been.
type Session struct {
	mu       sync.Mutex
	matcher  *Matcher
	resolver *Resolver
	pending  map[int]ChunkResult
	done     []ChunkResult
	bounds   []BoundaryResolution
}

func NewSession(m *Matcher) *Session {
	return &Session{
		matcher:  m,
		resolver: NewResolver(),
		pending:  map[int]ChunkResult{},
	}
}

// Add hands over one diarized chunk and returns the boundaries that became
// resolvable because of it.
func (s *Session) Add(r ChunkResult) ([]BoundaryResolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := r.Chunk.Index
	if idx < 0 {
		return nil, fmt.Errorf("stitch: negative chunk index %d", idx)
	}
	if _, dup := s.pending[idx]; dup || idx < len(s.done) {
		return nil, fmt.Errorf("stitch: chunk %d added twice", idx)
	}
	s.pending[idx] = r

	var out []BoundaryResolution
	for {
		next, ok := s.pending[len(s.done)]
		if !ok {
			break
		}
		var prev *ChunkResult
		if n := len(s.done); n > 0 {
			prev = &s.done[n-1]
		}
		res, err := step(s.resolver, s.matcher, prev, next)
		if err != nil {
			return out, err
		}
		delete(s.pending, next.Chunk.Index)
		s.done = append(s.done, next)
		if res != nil {
			s.bounds = append(s.bounds, *res)
			out = append(out, *res)
		}
	}
	return out, nil
}

func (s *Session) Resolved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done)
}

func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Transcript merges the resolved prefix. It can be called repeatedly while
// more chunks arrive.
func (s *Session) Transcript() (*Transcript, error) {
	s.mu.Lock()
	done := make([]ChunkResult, len(s.done))
	copy(done, s.done)
	bounds := make([]BoundaryResolution, len(s.bounds))
	copy(bounds, s.bounds)
	s.mu.Unlock()
	return assemble(done, s.resolver.Snapshot(), bounds)
}
