package discord

import (
	"context"
	"fmt"
	"strings"

	"rankboard/internal/domain"
	"rankboard/internal/state"

	"github.com/rs/zerolog"
)

// PinStore keeps each game's state blob as a pinned message in the
// private update channel: small, namespaced, durable key-value state
// with no external database.
type PinStore struct {
	client    *Client
	channelID string
	logger    zerolog.Logger

	// message ids located during Read, reused by Write to edit in place
	ids map[domain.Game]string
}

func NewPinStore(client *Client, channelID string, logger zerolog.Logger) *PinStore {
	return &PinStore{
		client:    client,
		channelID: channelID,
		logger:    logger,
		ids:       make(map[domain.Game]string),
	}
}

func (s *PinStore) Read(ctx context.Context, game domain.Game) (string, bool, error) {
	pinned, err := s.client.PinnedMessages(ctx, s.channelID)
	if err != nil {
		return "", false, fmt.Errorf("failed to read pinned state: %w", err)
	}

	marker := state.Marker(game)
	for _, msg := range pinned {
		if strings.HasPrefix(msg.Content, marker) {
			s.ids[game] = msg.ID
			s.logger.Debug().Str("game", string(game)).Str("message_id", msg.ID).Msg("found pinned state")
			return msg.Content, true, nil
		}
	}

	s.logger.Info().Str("game", string(game)).Msg("no pinned state, will create one")
	return "", false, nil
}

func (s *PinStore) Write(ctx context.Context, game domain.Game, blob string) error {
	if id, ok := s.ids[game]; ok {
		return s.client.EditMessage(ctx, s.channelID, id, blob)
	}

	id, err := s.client.SendMessage(ctx, s.channelID, blob)
	if err != nil {
		return fmt.Errorf("failed to create state message: %w", err)
	}
	s.ids[game] = id

	// The blob survives unpinned; the pin only keeps it out of the
	// fetch window's way and easy to find for operators.
	if err := s.client.PinMessage(ctx, s.channelID, id); err != nil {
		s.logger.Warn().Err(err).Str("game", string(game)).Str("message_id", id).
			Msg("failed to pin state message, bot may lack Manage Messages")
	}
	return nil
}
