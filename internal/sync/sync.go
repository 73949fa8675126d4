package sync

import (
	"context"
	"fmt"
	"time"

	"rankboard/internal/config"
	"rankboard/internal/domain"
	"rankboard/internal/parser"
	"rankboard/internal/render"
	"rankboard/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ChannelClient is the inbound side of the chat transport.
type ChannelClient interface {
	Me(ctx context.Context) (string, error)
	FetchMessages(ctx context.Context, channelID string, limit int) ([]domain.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Publisher is the outbound webhook transport.
type Publisher interface {
	FetchWebhookMessage(ctx context.Context, webhookURL, messageID string) (bool, error)
	PostWebhookMessage(ctx context.Context, webhookURL string, payload any) (string, error)
	EditWebhookMessage(ctx context.Context, webhookURL, messageID string, payload any) error
}

// GameStats accumulates one game's cycle outcome.
type GameStats struct {
	Inserted int
	Updated  int
	Deleted  int
	Cleaned  int
	Errors   int
}

// sourced ties a parsed command to the message it came from, so the
// source can be deleted right after the command is applied.
type sourced struct {
	msg domain.Message
	cmd domain.Command
}

// Orchestrator drives one full sync pass: fetch, parse, reconcile,
// clean up, publish, persist. Games are processed strictly
// sequentially; a failure in one record or one game never stops the
// rest.
type Orchestrator struct {
	cfg     *config.Config
	parser  *parser.Parser
	store   state.BlobStore
	channel ChannelClient
	webhook Publisher
	logger  zerolog.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

func NewOrchestrator(
	cfg *config.Config,
	p *parser.Parser,
	store state.BlobStore,
	channel ChannelClient,
	webhook Publisher,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		parser:  p,
		store:   store,
		channel: channel,
		webhook: webhook,
		logger:  logger,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Run executes one sync pass. Only a failed login or message fetch
// returns an error; everything downstream degrades per game and per
// record.
func (o *Orchestrator) Run(ctx context.Context) error {
	start := o.now()
	logger := o.logger.With().Str("run_id", uuid.New().String()).Logger()
	logger.Info().Time("started_at", start).Msg("sync starting")

	tag, err := o.channel.Me(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	logger.Info().Str("bot", tag).Msg("session validated")

	o.preflight(ctx, logger)

	msgs, err := o.channel.FetchMessages(ctx, o.cfg.ListenChannelID, o.cfg.FetchLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch source messages: %w", err)
	}
	if len(msgs) == 0 {
		logger.Info().Msg("no messages found, nothing to do")
		return nil
	}

	updates, deletes, skipped := o.group(logger, msgs)
	for _, spec := range domain.Specs() {
		logger.Info().
			Str("game", string(spec.Game)).
			Int("updates", len(updates[spec.Game])).
			Int("deletes", len(deletes[spec.Game])).
			Msg("grouped commands")
	}
	logger.Info().Int("skipped", skipped).Msg("grouping complete")

	results := make(map[domain.Game]GameStats)
	for _, spec := range domain.Specs() {
		ups, dels := updates[spec.Game], deletes[spec.Game]
		if len(ups) == 0 && len(dels) == 0 {
			logger.Debug().Str("game", string(spec.Game)).Msg("no commands, skipping game")
			continue
		}
		results[spec.Game] = o.processGame(ctx, logger, spec, ups, dels)
		// cooperative throttle between games
		o.sleep(o.cfg.APIDelay)
	}

	elapsed := o.now().Sub(start)
	summary := logger.Info().Dur("elapsed", elapsed)
	for game, stats := range results {
		summary = summary.Interface(string(game), stats)
	}
	summary.Msg("sync complete")
	return nil
}

// preflight verifies each game's stored leaderboard message still
// exists. Checks are read-only, so they run concurrently; the
// mutating pass stays sequential.
func (o *Orchestrator) preflight(ctx context.Context, logger zerolog.Logger) {
	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range domain.Specs() {
		out := o.cfg.Outputs[spec.Game]
		if out == nil || out.MessageID == "" {
			continue
		}
		game := spec.Game
		g.Go(func() error {
			exists, err := o.webhook.FetchWebhookMessage(gctx, out.WebhookURL, out.MessageID)
			if err != nil {
				logger.Warn().Err(err).Str("game", string(game)).Msg("preflight webhook check failed")
				return nil
			}
			if !exists {
				logger.Warn().
					Str("game", string(game)).
					Str("message_id", out.MessageID).
					Msg("published message missing, a new one will be created")
				out.MessageID = ""
			}
			return nil
		})
	}
	_ = g.Wait()
}

// group parses the batch and splits commands per game, preserving
// original posting order within each group.
func (o *Orchestrator) group(logger zerolog.Logger, msgs []domain.Message) (map[domain.Game][]sourced, map[domain.Game][]sourced, int) {
	updates := make(map[domain.Game][]sourced)
	deletes := make(map[domain.Game][]sourced)
	skipped := 0

	for _, msg := range msgs {
		cmd := o.parser.Parse(msg.Content, msg.AuthorID)
		if cmd == nil {
			skipped++
			if o.parser.HasCommandPrefix(msg.Content) {
				logger.Warn().
					Str("message_id", msg.ID).
					Str("content", preview(msg.Content)).
					Msg("command prefix present but validation failed")
			} else {
				logger.Debug().Str("message_id", msg.ID).Msg("skipping non-command message")
			}
			continue
		}

		game := cmd.CommandGame()
		switch cmd.(type) {
		case *domain.UpdateCommand:
			updates[game] = append(updates[game], sourced{msg: msg, cmd: cmd})
		case *domain.DeleteCommand:
			deletes[game] = append(deletes[game], sourced{msg: msg, cmd: cmd})
		}
	}
	return updates, deletes, skipped
}

// processGame runs one game's full cycle:
// load state, apply updates, apply deletes, publish, persist.
func (o *Orchestrator) processGame(ctx context.Context, logger zerolog.Logger, spec *domain.GameSpec, updates, deletes []sourced) GameStats {
	logger = logger.With().Str("game", string(spec.Game)).Logger()
	var stats GameStats

	// LOAD_STATE: a broken or missing blob means starting from empty,
	// never aborting the game.
	var st state.State
	blob, found, err := o.store.Read(ctx, spec.Game)
	if err != nil {
		logger.Warn().Err(err).Msg("could not load state, starting from empty")
		st = state.State{Players: []domain.PlayerRecord{}}
	} else if !found {
		st = state.State{Players: []domain.PlayerRecord{}}
	} else {
		st = state.Decode(blob)
	}
	logger.Info().Int("players", len(st.Players)).Msg("state loaded")

	// APPLY_UPDATES
	for _, u := range updates {
		rec := u.cmd.(*domain.UpdateCommand).Record
		switch state.Upsert(&st.Players, rec) {
		case state.UpsertInserted:
			stats.Inserted++
			logger.Info().Str("player", rec.PlayerName).Msg("inserted player")
		case state.UpsertUpdated:
			stats.Updated++
			logger.Info().Str("player", rec.PlayerName).Msg("updated player")
		case state.UpsertStale:
			logger.Warn().
				Str("player", rec.PlayerName).
				Time("incoming", rec.Date).
				Msg("skipping stale update")
		}
		o.cleanup(ctx, logger, u.msg, &stats)
	}

	// APPLY_DELETES
	for _, d := range deletes {
		cmd := d.cmd.(*domain.DeleteCommand)
		removed := state.Delete(&st.Players, cmd.PlayerName, cmd.DiscordID)
		if removed != nil {
			stats.Deleted++
			logger.Info().
				Str("player", removed.PlayerName).
				Str("issuer_id", cmd.IssuerID).
				Msg("removed player")
		} else {
			stats.Errors++
			logger.Warn().
				Str("target", cmd.PlayerName).
				Str("issuer_id", cmd.IssuerID).
				Msg("delete target not found")
		}
		o.cleanup(ctx, logger, d.msg, &stats)
	}

	// PUBLISH
	sorted := render.Sort(st.Players, spec)
	payload := render.Leaderboard(sorted, spec, o.now())
	out := o.cfg.Outputs[spec.Game]
	if out.MessageID != "" {
		if err := o.webhook.EditWebhookMessage(ctx, out.WebhookURL, out.MessageID, payload); err != nil {
			stats.Errors++
			logger.Error().Err(err).Msg("failed to update leaderboard message")
		} else {
			logger.Info().Str("message_id", out.MessageID).Msg("leaderboard message updated")
		}
	} else {
		id, err := o.webhook.PostWebhookMessage(ctx, out.WebhookURL, payload)
		if err != nil {
			stats.Errors++
			logger.Error().Err(err).Msg("failed to post leaderboard message")
		} else {
			out.MessageID = id
			logger.Warn().
				Str("env_key", config.MessageIDKey(spec.Game)).
				Str("message_id", id).
				Msg("new leaderboard message created, add its id to the environment")
		}
	}

	// PERSIST
	newBlob, err := state.Encode(spec.Game, st)
	if err != nil {
		stats.Errors++
		logger.Error().Err(err).Msg("failed to encode state")
	} else if err := o.store.Write(ctx, spec.Game, newBlob); err != nil {
		stats.Errors++
		logger.Error().Err(err).Msg("failed to save state")
	}

	logger.Info().
		Int("inserted", stats.Inserted).
		Int("updated", stats.Updated).
		Int("deleted", stats.Deleted).
		Int("cleaned", stats.Cleaned).
		Int("errors", stats.Errors).
		Msg("game cycle done")
	return stats
}

// cleanup deletes a consumed source message immediately after its
// command is applied. Failures count but never stop the batch; a
// leftover message is reprocessed harmlessly on the next run.
func (o *Orchestrator) cleanup(ctx context.Context, logger zerolog.Logger, msg domain.Message, stats *GameStats) {
	o.sleep(o.cfg.APIDelay)
	if err := o.channel.DeleteMessage(ctx, o.cfg.ListenChannelID, msg.ID); err != nil {
		stats.Errors++
		logger.Error().Err(err).Str("message_id", msg.ID).Msg("could not delete source message")
		return
	}
	stats.Cleaned++
	logger.Debug().Str("message_id", msg.ID).Msg("deleted source message")
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:100]
	}
	return s
}
