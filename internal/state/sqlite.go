package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rankboard/internal/constants"
	"rankboard/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// SQLiteStore keeps state blobs in a local SQLite table, for
// deployments where the bot lacks pin permissions or for local runs.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSQLiteStore(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) Read(ctx context.Context, game domain.Game) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM game_state WHERE game = ?`, string(game)).Scan(&blob)
	if err == sql.ErrNoRows {
		s.logger.Debug().Str("game", string(game)).Msg("no stored state")
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state for %s: %w", game, err)
	}
	return blob, true, nil
}

func (s *SQLiteStore) Write(ctx context.Context, game domain.Game, blob string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate nanoid: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_state (id, game, blob, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(game) DO UPDATE SET
			blob = excluded.blob,
			updated_at = excluded.updated_at`,
		id, string(game), blob, time.Now())
	if err != nil {
		return fmt.Errorf("failed to write state for %s: %w", game, err)
	}

	s.logger.Debug().Str("game", string(game)).Int("bytes", len(blob)).Msg("state blob written")
	return nil
}
