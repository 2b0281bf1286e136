// Package graphstore persists analysed transcripts: the compacted chunks
// together with the conversation graph built from them.
//
// Two implementations are provided: [MemStore] for tests and embedders that
// keep results in process, and the PostgreSQL store in the postgres
// sub-package. Both store the
// graph in its exported shape (speakers in node order plus the edge list),
// so a loaded graph answers every analytics query exactly like the one that
// was saved.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/parley/pkg/caption"
	"github.com/MrWong99/parley/pkg/convgraph"
)

var (
	// ErrNotFound is returned when no transcript has the requested ID.
	ErrNotFound = errors.New("graphstore: transcript not found")

	// ErrInvalidID is returned for IDs that are not UUIDs.
	ErrInvalidID = errors.New("graphstore: invalid transcript id")
)

// Transcript is one analysed caption file.
type Transcript struct {
	// ID is a UUID. SaveTranscript assigns one when empty.
	ID string

	// Name identifies the source, usually the caption file's base name.
	Name string

	// CreatedAt is set by the store when zero.
	CreatedAt time.Time

	Chunks []caption.Chunk
	Graph  *convgraph.Graph
}

// Info is a stored transcript's metadata and graph summary.
type Info struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Chunks    int
	convgraph.Summary
}

// Store persists transcripts. Implementations must be safe for concurrent
// use.
type Store interface {
	// SaveTranscript stores t, replacing any transcript with the same ID, and
	// returns its ID.
	SaveTranscript(ctx context.Context, t Transcript) (string, error)

	// LoadGraph rebuilds the conversation graph of transcript id.
	LoadGraph(ctx context.Context, id string) (*convgraph.Graph, error)

	// LoadChunks returns the compacted chunks of transcript id in order.
	LoadChunks(ctx context.Context, id string) ([]caption.Chunk, error)

	// ListTranscripts returns all stored transcripts, newest first.
	ListTranscripts(ctx context.Context) ([]Info, error)

	// DeleteTranscript removes transcript id. Deleting an unknown ID is not
	// an error.
	DeleteTranscript(ctx context.Context, id string) error
}

// NewID returns a fresh transcript ID.
func NewID() string {
	return uuid.NewString()
}

// ValidateID reports whether id is a UUID and returns it in canonical form.
func ValidateID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return u.String(), nil
}

// Prepare fills in the ID and creation time of t when they are unset and
// validates the rest. Store implementations call it at the start of
// SaveTranscript.
func Prepare(t *Transcript, now time.Time) error {
	if t.ID == "" {
		t.ID = NewID()
	} else {
		id, err := ValidateID(t.ID)
		if err != nil {
			return err
		}
		t.ID = id
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.Graph == nil {
		t.Graph = convgraph.NewGraph()
	}
	return nil
}

// Rebuild reconstructs a graph from its stored shape.
func Rebuild(speakers []string, edges []convgraph.Edge) (*convgraph.Graph, error) {
	g := convgraph.NewGraph()
	for _, s := range speakers {
		g.AddSpeaker(s)
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("graphstore: rebuild: %w", err)
		}
	}
	return g, nil
}
