package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rankboard/internal/config"
	"rankboard/internal/domain"
	"rankboard/internal/parser"
	"rankboard/internal/render"
	"rankboard/internal/state"

	"github.com/rs/zerolog"
)

type fakeChannel struct {
	messages  []domain.Message
	deleted   []string
	fetchErr  error
	loginErr  error
	deleteErr error
}

func (c *fakeChannel) Me(ctx context.Context) (string, error) {
	if c.loginErr != nil {
		return "", c.loginErr
	}
	return "testbot#0001", nil
}

func (c *fakeChannel) FetchMessages(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.messages, nil
}

func (c *fakeChannel) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, messageID)
	return nil
}

type fakePublisher struct {
	existing map[string]bool
	posted   map[string]any
	edited   map[string]any
	nextID   string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		existing: make(map[string]bool),
		posted:   make(map[string]any),
		edited:   make(map[string]any),
		nextID:   "900001",
	}
}

func (p *fakePublisher) FetchWebhookMessage(ctx context.Context, webhookURL, messageID string) (bool, error) {
	return p.existing[messageID], nil
}

func (p *fakePublisher) PostWebhookMessage(ctx context.Context, webhookURL string, payload any) (string, error) {
	p.posted[webhookURL] = payload
	return p.nextID, nil
}

func (p *fakePublisher) EditWebhookMessage(ctx context.Context, webhookURL, messageID string, payload any) error {
	p.edited[messageID] = payload
	return nil
}

type memStore struct {
	blobs map[domain.Game]string
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[domain.Game]string)}
}

func (s *memStore) Read(ctx context.Context, game domain.Game) (string, bool, error) {
	blob, ok := s.blobs[game]
	return blob, ok, nil
}

func (s *memStore) Write(ctx context.Context, game domain.Game, blob string) error {
	s.blobs[game] = blob
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{
		DiscordToken:    "token",
		ListenChannelID: "555",
		FetchLimit:      50,
		Outputs:         make(map[domain.Game]*config.GameOutput),
	}
	for _, spec := range domain.Specs() {
		cfg.Outputs[spec.Game] = &config.GameOutput{
			WebhookURL: "https://discord.com/api/webhooks/1/" + string(spec.Game),
		}
	}
	return cfg
}

func newTestOrchestrator(cfg *config.Config, channel *fakeChannel, webhook *fakePublisher, store state.BlobStore) *Orchestrator {
	o := NewOrchestrator(cfg, parser.New(zerolog.Nop()), store, channel, webhook, zerolog.Nop())
	o.sleep = func(time.Duration) {}
	return o
}

func TestRunAppliesBatchEndToEnd(t *testing.T) {
	cfg := testConfig()
	store := newMemStore()

	// Beta is already on the board and gets deleted in this batch.
	seed, err := state.Encode(domain.GameMarvelRivals, state.State{Players: []domain.PlayerRecord{
		{PlayerName: "Beta", Role: "Vanguard", RankCurrent: "Gold", TierCurrent: 3, Date: time.Now().Add(-48 * time.Hour)},
	}})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}
	store.blobs[domain.GameMarvelRivals] = seed

	channel := &fakeChannel{messages: []domain.Message{
		{ID: "m1", Content: "LB_UPDATE_MR: @Alpha Duelist Diamond 2 Grandmaster 1 today", AuthorID: "100"},
		{ID: "m2", Content: "LB_DELETE_MR: @Beta", AuthorID: "101"},
		{ID: "m3", Content: "anyone up for comp tonight?", AuthorID: "102"},
	}}
	webhook := newFakePublisher()

	o := newTestOrchestrator(cfg, channel, webhook, store)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// both command messages consumed, chatter left alone
	if len(channel.deleted) != 2 {
		t.Fatalf("expected 2 deleted messages, got %v", channel.deleted)
	}
	for _, id := range channel.deleted {
		if id == "m3" {
			t.Fatal("chatter message must not be deleted")
		}
	}

	blob, found, _ := store.Read(context.Background(), domain.GameMarvelRivals)
	if !found {
		t.Fatal("expected persisted state")
	}
	st := state.Decode(blob)
	if len(st.Players) != 1 || st.Players[0].PlayerName != "Alpha" {
		t.Fatalf("expected only Alpha to survive, got %+v", st.Players)
	}

	// no stored message id, so a fresh webhook message was posted
	mrURL := cfg.Outputs[domain.GameMarvelRivals].WebhookURL
	raw, ok := webhook.posted[mrURL]
	if !ok {
		t.Fatal("expected a posted leaderboard message")
	}
	payload, ok := raw.(render.WebhookPayload)
	if !ok {
		t.Fatalf("expected webhook payload, got %T", raw)
	}
	if len(payload.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(payload.Embeds))
	}
	desc := payload.Embeds[0].Description
	if !strings.Contains(desc, "Alpha") {
		t.Fatalf("expected Alpha on the board, got %q", desc)
	}
	if strings.Contains(desc, "Beta") {
		t.Fatalf("expected Beta off the board, got %q", desc)
	}
	if cfg.Outputs[domain.GameMarvelRivals].MessageID != webhook.nextID {
		t.Fatalf("expected new message id remembered, got %q", cfg.Outputs[domain.GameMarvelRivals].MessageID)
	}
}

func TestRunEditsExistingMessage(t *testing.T) {
	cfg := testConfig()
	cfg.Outputs[domain.GameDeadlock].MessageID = "700100"

	channel := &fakeChannel{messages: []domain.Message{
		{ID: "m1", Content: "LB_UPDATE_DL: @Player2 Haze Archon 4 1200 today", AuthorID: "100"},
	}}
	webhook := newFakePublisher()
	webhook.existing["700100"] = true

	o := newTestOrchestrator(cfg, channel, webhook, newMemStore())
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, ok := webhook.edited["700100"]; !ok {
		t.Fatal("expected existing message to be edited")
	}
	if len(webhook.posted) != 0 {
		t.Fatalf("expected no new posts, got %d", len(webhook.posted))
	}
	if cfg.Outputs[domain.GameDeadlock].MessageID != "700100" {
		t.Fatalf("expected message id unchanged, got %q", cfg.Outputs[domain.GameDeadlock].MessageID)
	}
}

func TestRunPreflightClearsMissingMessage(t *testing.T) {
	cfg := testConfig()
	cfg.Outputs[domain.GameOverwatch].MessageID = "700200"

	channel := &fakeChannel{messages: []domain.Message{
		{ID: "m1", Content: "LB_UPDATE_OW: @Alpha Tank Diamond 3 3200 Master 2 3400 today", AuthorID: "100"},
	}}
	webhook := newFakePublisher() // 700200 does not exist

	o := newTestOrchestrator(cfg, channel, webhook, newMemStore())
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(webhook.edited) != 0 {
		t.Fatal("expected no edit against a missing message")
	}
	owURL := cfg.Outputs[domain.GameOverwatch].WebhookURL
	if _, ok := webhook.posted[owURL]; !ok {
		t.Fatal("expected a replacement message to be posted")
	}
}

func TestRunStaleUpdateIgnored(t *testing.T) {
	cfg := testConfig()
	store := newMemStore()

	seed, err := state.Encode(domain.GameMarvelRivals, state.State{Players: []domain.PlayerRecord{
		{PlayerName: "Alpha", Role: "Duelist", RankCurrent: "Celestial", TierCurrent: 1, Date: time.Now()},
	}})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}
	store.blobs[domain.GameMarvelRivals] = seed

	channel := &fakeChannel{messages: []domain.Message{
		{ID: "m1", Content: "LB_UPDATE_MR: @Alpha Duelist Bronze 3 Silver 2 yesterday", AuthorID: "100"},
	}}

	o := newTestOrchestrator(cfg, channel, newFakePublisher(), store)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	blob, _, _ := store.Read(context.Background(), domain.GameMarvelRivals)
	st := state.Decode(blob)
	if len(st.Players) != 1 || st.Players[0].RankCurrent != "Celestial" {
		t.Fatalf("expected stale update ignored, got %+v", st.Players)
	}
	// the consumed source message is still cleaned up
	if len(channel.deleted) != 1 || channel.deleted[0] != "m1" {
		t.Fatalf("expected source message deleted, got %v", channel.deleted)
	}
}

func TestRunDeleteTargetMissingCountsError(t *testing.T) {
	cfg := testConfig()
	channel := &fakeChannel{messages: []domain.Message{
		{ID: "m1", Content: "LB_DELETE_MR: @Nobody", AuthorID: "100"},
	}}

	o := newTestOrchestrator(cfg, channel, newFakePublisher(), newMemStore())
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	// the command is consumed even when the target is unknown
	if len(channel.deleted) != 1 {
		t.Fatalf("expected source message deleted, got %v", channel.deleted)
	}
}

func TestRunLoginFailureIsFatal(t *testing.T) {
	channel := &fakeChannel{loginErr: errors.New("401 unauthorized")}
	o := newTestOrchestrator(testConfig(), channel, newFakePublisher(), newMemStore())
	if err := o.Run(context.Background()); err == nil {
		t.Fatal("expected login error")
	}
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	channel := &fakeChannel{fetchErr: errors.New("500 server error")}
	o := newTestOrchestrator(testConfig(), channel, newFakePublisher(), newMemStore())
	if err := o.Run(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestRunEmptyChannelIsNoop(t *testing.T) {
	channel := &fakeChannel{}
	webhook := newFakePublisher()
	store := newMemStore()

	o := newTestOrchestrator(testConfig(), channel, webhook, store)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(webhook.posted) != 0 || len(webhook.edited) != 0 {
		t.Fatal("expected no publishes with no messages")
	}
	if len(store.blobs) != 0 {
		t.Fatal("expected no state writes with no messages")
	}
}

func TestRunMessageDeleteFailureDoesNotAbort(t *testing.T) {
	cfg := testConfig()
	store := newMemStore()
	channel := &fakeChannel{
		messages: []domain.Message{
			{ID: "m1", Content: "LB_UPDATE_MR: @Alpha Duelist Diamond 2 Grandmaster 1 today", AuthorID: "100"},
		},
		deleteErr: errors.New("403 missing permissions"),
	}

	o := newTestOrchestrator(cfg, channel, newFakePublisher(), store)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	blob, found, _ := store.Read(context.Background(), domain.GameMarvelRivals)
	if !found {
		t.Fatal("expected state persisted despite cleanup failure")
	}
	st := state.Decode(blob)
	if len(st.Players) != 1 || st.Players[0].PlayerName != "Alpha" {
		t.Fatalf("expected Alpha recorded, got %+v", st.Players)
	}
}
