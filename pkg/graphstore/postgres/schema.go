// Package postgres provides a PostgreSQL-backed graphstore.Store.
//
// A transcript is stored across four tables: transcripts (metadata),
// speakers (graph nodes in order), interactions (graph edges in order) and
// transcript_chunks (the compacted turns). Child rows cascade on delete.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	id, _ := store.SaveTranscript(ctx, graphstore.Transcript{Name: "standup", Chunks: chunks, Graph: g})
//	g2, _ := store.LoadGraph(ctx, id)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS transcripts (
    id          UUID         PRIMARY KEY,
    name        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcripts_created_at
    ON transcripts (created_at DESC);

CREATE INDEX IF NOT EXISTS idx_transcripts_name
    ON transcripts (name);
`

const ddlGraph = `
CREATE TABLE IF NOT EXISTS speakers (
    transcript_id  UUID     NOT NULL REFERENCES transcripts (id) ON DELETE CASCADE,
    position       INTEGER  NOT NULL,
    name           TEXT     NOT NULL,
    PRIMARY KEY (transcript_id, position),
    UNIQUE (transcript_id, name)
);

CREATE TABLE IF NOT EXISTS interactions (
    transcript_id  UUID     NOT NULL REFERENCES transcripts (id) ON DELETE CASCADE,
    position       INTEGER  NOT NULL,
    from_speaker   TEXT     NOT NULL,
    to_speaker     TEXT     NOT NULL,
    kind           TEXT     NOT NULL CHECK (kind IN ('asked', 'answered')),
    question       TEXT     NOT NULL DEFAULT '',
    turn           INTEGER  NOT NULL,
    PRIMARY KEY (transcript_id, position)
);

CREATE INDEX IF NOT EXISTS idx_interactions_pair
    ON interactions (transcript_id, from_speaker, to_speaker);

CREATE INDEX IF NOT EXISTS idx_interactions_kind
    ON interactions (kind);
`

const ddlChunks = `
CREATE TABLE IF NOT EXISTS transcript_chunks (
    transcript_id  UUID     NOT NULL REFERENCES transcripts (id) ON DELETE CASCADE,
    position       INTEGER  NOT NULL,
    seq            INTEGER  NOT NULL,
    speaker        TEXT     NOT NULL,
    start_ns       BIGINT   NOT NULL,
    end_ns         BIGINT   NOT NULL,
    text           TEXT     NOT NULL,
    PRIMARY KEY (transcript_id, position)
);

CREATE INDEX IF NOT EXISTS idx_transcript_chunks_speaker
    ON transcript_chunks (transcript_id, speaker);
`

// Migrate creates all tables and indexes used by the store. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlTranscripts, ddlGraph, ddlChunks} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
