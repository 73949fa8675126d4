package state

import (
	"context"

	"rankboard/internal/domain"
)

// BlobStore is the narrow persistence boundary for state blobs. The
// backend (pinned Discord message, SQLite, flat file) is swappable;
// the codec and reconciler never see it.
type BlobStore interface {
	// Read returns the stored blob for a game. found=false with a nil
	// error means no state yet.
	Read(ctx context.Context, game domain.Game) (blob string, found bool, err error)

	Write(ctx context.Context, game domain.Game, blob string) error
}
