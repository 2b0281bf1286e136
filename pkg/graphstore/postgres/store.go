package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/parley/pkg/caption"
	"github.com/MrWong99/parley/pkg/convgraph"
	"github.com/MrWong99/parley/pkg/graphstore"
)

var _ graphstore.Store = (*Store)(nil)

// Store is a PostgreSQL-backed [graphstore.Store]. All operations are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveTranscript implements [graphstore.Store]. The transcript and all of its
// rows are written in one transaction; an existing transcript with the same
// ID is replaced.
func (s *Store) SaveTranscript(ctx context.Context, t graphstore.Transcript) (id string, err error) {
	if err := graphstore.Prepare(&t, time.Now()); err != nil {
		return "", err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("graphstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM transcripts WHERE id = $1`, t.ID); err != nil {
		return "", fmt.Errorf("graphstore: replace transcript: %w", err)
	}
	if _, err = tx.Exec(ctx,
		`INSERT INTO transcripts (id, name, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.CreatedAt,
	); err != nil {
		return "", fmt.Errorf("graphstore: insert transcript: %w", err)
	}

	nodes := t.Graph.Nodes()
	speakerRows := make([][]any, len(nodes))
	for i, n := range nodes {
		speakerRows[i] = []any{t.ID, i, n}
	}
	if _, err = tx.CopyFrom(ctx,
		pgx.Identifier{"speakers"},
		[]string{"transcript_id", "position", "name"},
		pgx.CopyFromRows(speakerRows),
	); err != nil {
		return "", fmt.Errorf("graphstore: copy speakers: %w", err)
	}

	edges := t.Graph.Edges()
	edgeRows := make([][]any, len(edges))
	for i, e := range edges {
		edgeRows[i] = []any{t.ID, i, e.From, e.To, string(e.Kind), e.Question, e.Turn}
	}
	if _, err = tx.CopyFrom(ctx,
		pgx.Identifier{"interactions"},
		[]string{"transcript_id", "position", "from_speaker", "to_speaker", "kind", "question", "turn"},
		pgx.CopyFromRows(edgeRows),
	); err != nil {
		return "", fmt.Errorf("graphstore: copy interactions: %w", err)
	}

	chunkRows := make([][]any, len(t.Chunks))
	for i, c := range t.Chunks {
		chunkRows[i] = []any{t.ID, i, c.Seq, c.Speaker, int64(c.Start), int64(c.End), c.Text}
	}
	if _, err = tx.CopyFrom(ctx,
		pgx.Identifier{"transcript_chunks"},
		[]string{"transcript_id", "position", "seq", "speaker", "start_ns", "end_ns", "text"},
		pgx.CopyFromRows(chunkRows),
	); err != nil {
		return "", fmt.Errorf("graphstore: copy chunks: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("graphstore: commit: %w", err)
	}
	return t.ID, nil
}

// exists returns ErrNotFound if no transcript has the given ID.
func (s *Store) exists(ctx context.Context, id string) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM transcripts WHERE id = $1`, id).Scan(&one)
	if isNoRows(err) {
		return graphstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("graphstore: lookup transcript: %w", err)
	}
	return nil
}

// LoadGraph implements [graphstore.Store].
func (s *Store) LoadGraph(ctx context.Context, id string) (*convgraph.Graph, error) {
	id, err := graphstore.ValidateID(id)
	if err != nil {
		return nil, err
	}
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT name FROM speakers WHERE transcript_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("graphstore: load speakers: %w", err)
	}
	speakers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("graphstore: load speakers: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT from_speaker, to_speaker, kind, question, turn
		FROM   interactions
		WHERE  transcript_id = $1
		ORDER  BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("graphstore: load interactions: %w", err)
	}
	edges, err := collectEdges(rows)
	if err != nil {
		return nil, fmt.Errorf("graphstore: load interactions: %w", err)
	}

	return graphstore.Rebuild(speakers, edges)
}

// LoadChunks implements [graphstore.Store].
func (s *Store) LoadChunks(ctx context.Context, id string) ([]caption.Chunk, error) {
	id, err := graphstore.ValidateID(id)
	if err != nil {
		return nil, err
	}
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT seq, speaker, start_ns, end_ns, text
		FROM   transcript_chunks
		WHERE  transcript_id = $1
		ORDER  BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("graphstore: load chunks: %w", err)
	}
	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, fmt.Errorf("graphstore: load chunks: %w", err)
	}
	return chunks, nil
}

// ListTranscripts implements [graphstore.Store].
func (s *Store) ListTranscripts(ctx context.Context) ([]graphstore.Info, error) {
	const q = `
		SELECT t.id::text, t.name, t.created_at,
		       (SELECT count(*) FROM transcript_chunks c WHERE c.transcript_id = t.id),
		       (SELECT count(*) FROM speakers sp WHERE sp.transcript_id = t.id),
		       (SELECT count(*) FROM interactions i WHERE i.transcript_id = t.id AND i.kind = 'asked'),
		       (SELECT count(*) FROM interactions i WHERE i.transcript_id = t.id AND i.kind = 'answered')
		FROM   transcripts t
		ORDER  BY t.created_at DESC, t.id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("graphstore: list transcripts: %w", err)
	}
	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graphstore.Info, error) {
		var (
			info                              graphstore.Info
			chunks, speakers, asked, answered int64
		)
		if err := row.Scan(&info.ID, &info.Name, &info.CreatedAt, &chunks, &speakers, &asked, &answered); err != nil {
			return graphstore.Info{}, err
		}
		info.Chunks = int(chunks)
		info.Speakers = int(speakers)
		info.Asked = int(asked)
		info.Answered = int(answered)
		return info, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: list transcripts: %w", err)
	}
	return infos, nil
}

// DeleteTranscript implements [graphstore.Store].
func (s *Store) DeleteTranscript(ctx context.Context, id string) error {
	id, err := graphstore.ValidateID(id)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM transcripts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("graphstore: delete transcript: %w", err)
	}
	return nil
}

func collectEdges(rows pgx.Rows) ([]convgraph.Edge, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (convgraph.Edge, error) {
		var (
			e    convgraph.Edge
			kind string
		)
		if err := row.Scan(&e.From, &e.To, &kind, &e.Question, &e.Turn); err != nil {
			return convgraph.Edge{}, err
		}
		e.Kind = convgraph.EdgeKind(kind)
		return e, nil
	})
}

func collectChunks(rows pgx.Rows) ([]caption.Chunk, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (caption.Chunk, error) {
		var (
			c            caption.Chunk
			startNS, end int64
		)
		if err := row.Scan(&c.Seq, &c.Speaker, &startNS, &end, &c.Text); err != nil {
			return caption.Chunk{}, err
		}
		c.Start = time.Duration(startNS)
		c.End = time.Duration(end)
		return c, nil
	})
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
