package stitch

import (
	"fmt"
	"sort"
	"sync"
)

// Key addresses one chunk-local speaker.
type Key struct {
	ChunkIndex int    `json:"chunk_index"`
	LocalID    string `json:"local_id"`
}

// Assignment is the canonical identity given to a Key.
type Assignment struct {
	CanonicalID string `json:"canonical_id"`
	// NewSpeaker is set when this key introduced CanonicalID.
	NewSpeaker bool    `json:"new_speaker,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	// Degraded is set when the predecessor key was missing and the local id
	// was used as its canonical id.
	Degraded bool `json:"degraded,omitempty"`
}

type MapEntry struct {
	Key
	Assignment
}

// CanonicalMap is an append-only table from chunk-local speakers to
// canonical ids.
type CanonicalMap struct {
	entries map[Key]Assignment
	issued  map[string]struct{}
}

func newCanonicalMap() *CanonicalMap {
	return &CanonicalMap{entries: map[Key]Assignment{}, issued: map[string]struct{}{}}
}

func (m *CanonicalMap) Lookup(chunk int, local string) (Assignment, bool) {
	a, ok := m.entries[Key{ChunkIndex: chunk, LocalID: local}]
	return a, ok
}

func (m *CanonicalMap) Len() int { return len(m.entries) }

// Entries lists the map ordered by chunk then local id.
func (m *CanonicalMap) Entries() []MapEntry {
	out := make([]MapEntry, 0, len(m.entries))
	for k, a := range m.entries {
		out = append(out, MapEntry{Key: k, Assignment: a})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChunkIndex != out[j].ChunkIndex {
			return out[i].ChunkIndex < out[j].ChunkIndex
		}
		return out[i].LocalID < out[j].LocalID
	})
	return out
}

// CanonicalIDs returns the distinct canonical ids, sorted.
func (m *CanonicalMap) CanonicalIDs() []string {
	out := make([]string, 0, len(m.issued))
	for id := range m.issued {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *CanonicalMap) clone() *CanonicalMap {
	c := newCanonicalMap()
	for k, a := range m.entries {
		c.entries[k] = a
	}
	for id := range m.issued {
		c.issued[id] = struct{}{}
	}
	return c
}

// set stores a only when k is absent. It reports whether it stored.
func (m *CanonicalMap) set(k Key, a Assignment) bool {
	if _, ok := m.entries[k]; ok {
		return false
	}
	m.entries[k] = a
	m.issued[a.CanonicalID] = struct{}{}
	return true
}

// mint returns a canonical id for a speaker first seen at k that no other
// speaker holds yet.
func (m *CanonicalMap) mint(k Key) string {
	id := fmt.Sprintf("%d_%s", k.ChunkIndex, k.LocalID)
	if _, taken := m.issued[id]; !taken {
		return id
	}
	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s_%d", id, n)
		if _, taken := m.issued[cand]; !taken {
			return cand
		}
	}
}

// Boundary is the input to one fold step: the matches between chunk From and
// chunk From+1 and every local speaker that occurs in chunk From+1.
type Boundary struct {
	From     int
	Matches  []MatchResult
	Speakers []string
}

type BoundaryResolution struct {
	From    int           `json:"from"`
	To      int           `json:"to"`
	Matches []MatchResult `json:"matches"`
	// Linked lists the chunk To local ids that inherited an identity.
	Linked []string `json:"linked,omitempty"`
	// Minted lists the chunk To local ids that received a new identity.
	Minted []string `json:"minted,omitempty"`
}

// Resolver owns the CanonicalMap and extends it one boundary at a time in
// increasing chunk order. It is safe for concurrent use.
type Resolver struct {
	mu sync.Mutex
	m  *CanonicalMap
	// next is the lowest chunk index not yet resolved.
	next int
}

// NewResolver returns an empty resolver. Seed must be called before any
// boundary is resolved.
func NewResolver() *Resolver {
	return &Resolver{m: newCanonicalMap()}
}

// Seed registers chunk 0's speakers under their own ids. Chunk 0 defines the
// canonical namespace. Seeding twice only adds missing speakers.
func (r *Resolver) Seed(speakers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range speakers {
		r.m.set(Key{ChunkIndex: 0, LocalID: s}, Assignment{CanonicalID: s, NewSpeaker: true, Confidence: 1})
	}
	if r.next == 0 {
		r.next = 1
	}
}

func (r *Resolver) Resolved() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Resolve applies boundary b.From -> b.From+1. Chunk b.From must already be
// resolved; otherwise ErrOutOfOrder is returned and nothing changes.
// Replaying a boundary never changes an existing assignment.
func (r *Resolver) Resolve(b Boundary) (BoundaryResolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	to := b.From + 1
	if b.From < 0 || to > r.next {
		return BoundaryResolution{}, fmt.Errorf("%w: boundary %d->%d with %d chunk(s) resolved", ErrOutOfOrder, b.From, to, r.next)
	}
	res := BoundaryResolution{From: b.From, To: to, Matches: b.Matches}

	matched := make(map[string]struct{}, len(b.Matches))
	for _, mr := range b.Matches {
		if mr.Rejected {
			continue
		}
		prev, ok := r.m.Lookup(b.From, mr.FromLocalID)
		a := Assignment{CanonicalID: prev.CanonicalID, Confidence: mr.Confidence}
		if !ok {
			a = Assignment{CanonicalID: mr.FromLocalID, Confidence: mr.Confidence, Degraded: true}
		}
		matched[mr.ToLocalID] = struct{}{}
		if r.m.set(Key{ChunkIndex: to, LocalID: mr.ToLocalID}, a) {
			res.Linked = append(res.Linked, mr.ToLocalID)
		}
	}

	// Match targets may be missing from Speakers when stats and segments
	// disagree; every speaker in the chunk still needs an identity.
	for _, s := range b.Speakers {
		if _, ok := matched[s]; ok {
			continue
		}
		k := Key{ChunkIndex: to, LocalID: s}
		if _, ok := r.m.entries[k]; ok {
			continue
		}
		r.m.set(k, Assignment{CanonicalID: r.m.mint(k), NewSpeaker: true})
		res.Minted = append(res.Minted, s)
	}
	if to == r.next {
		r.next = to + 1
	}
	return res, nil
}

func (r *Resolver) Snapshot() *CanonicalMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.clone()
}
