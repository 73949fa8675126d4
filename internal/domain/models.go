package domain

import (
	"strings"
	"time"
)

type Game string

const (
	GameMarvelRivals Game = "MARVEL_RIVALS"
	GameOverwatch    Game = "OVERWATCH"
	GameDeadlock     Game = "DEADLOCK"
)

// PlayerRecord is one player's latest reported standing in one game.
// JSON field names match the state blob format, so an existing pinned
// state message decodes without migration.
type PlayerRecord struct {
	PlayerName   string    `json:"playerName"`
	DiscordID    string    `json:"discordId,omitempty"`
	Role         string    `json:"role,omitempty"`
	Hero         string    `json:"hero,omitempty"`
	RankCurrent  string    `json:"rankCurrent"`
	TierCurrent  int       `json:"tierCurrent"`
	CurrentValue int       `json:"currentValue,omitempty"`
	RankPeak     string    `json:"rankPeak,omitempty"`
	TierPeak     int       `json:"tierPeak,omitempty"`
	PeakValue    int       `json:"peakValue,omitempty"`
	Date         time.Time `json:"date"`
}

// Identity returns the dedup key: the Discord account id when the
// record came from a mention, else the sanitized free-text name.
func (p *PlayerRecord) Identity() string {
	if p.DiscordID != "" {
		return p.DiscordID
	}
	return p.PlayerName
}

// Message is one inbound message from the update channel.
type Message struct {
	ID        string
	Content   string
	AuthorID  string
	CreatedAt time.Time
}

type UpdateCommand struct {
	Game   Game
	Record PlayerRecord
}

type DeleteCommand struct {
	Game       Game
	PlayerName string
	DiscordID  string
	IssuerID   string
}

type Command interface {
	CommandGame() Game
}

func (c *UpdateCommand) CommandGame() Game { return c.Game }
func (c *DeleteCommand) CommandGame() Game { return c.Game }

// GameSpec is the declarative grammar and ordering descriptor for one
// game: rank vocabulary, field arity, tier bounds and which direction
// counts as "better". One generic parser and one generic comparator
// consume these instead of per-game pattern code.
type GameSpec struct {
	Game Game

	// Code is the command suffix: LB_UPDATE_<Code>: / LB_DELETE_<Code>:
	Code string

	// Ranks is ordered worst to best.
	Ranks []string

	TierMin int
	TierMax int

	// UncappedRank names the top bracket whose tier field is a standing
	// number with no upper bound (e.g. Overwatch "Top 500").
	UncappedRank string

	// HasValue: the grammar carries a numeric score after the tier.
	// HasPeak: the grammar carries a peak rank/tier (and peak value when
	// HasValue is also set).
	HasValue bool
	HasPeak  bool

	// TierHigherBetter preserves each game's own tiering convention.
	// Deadlock counts tiers upward; the other two count downward.
	TierHigherBetter bool

	// Subject is the game-specific attribute label: "role" or "hero".
	Subject string

	Color int
	Title string
}

// RankIndex returns the position of a rank name in the ordered list
// (higher = better), or -1. Comparison is case-insensitive.
func (s *GameSpec) RankIndex(name string) int {
	for i, r := range s.Ranks {
		if strings.EqualFold(r, name) {
			return i
		}
	}
	return -1
}

// NormalizeRank maps a raw capture onto the canonical rank name.
func (s *GameSpec) NormalizeRank(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, r := range s.Ranks {
		if strings.EqualFold(r, trimmed) {
			return r, true
		}
	}
	return "", false
}

// ValidTier checks the tier bounds for a given rank. The uncapped top
// bracket only requires a positive standing.
func (s *GameSpec) ValidTier(rank string, tier int) bool {
	if s.UncappedRank != "" && strings.EqualFold(rank, s.UncappedRank) {
		return tier >= 1
	}
	return tier >= s.TierMin && tier <= s.TierMax
}

var specs = []*GameSpec{
	{
		Game: GameMarvelRivals,
		Code: "MR",
		Ranks: []string{
			"Bronze", "Silver", "Gold", "Platinum", "Diamond",
			"Grandmaster", "Celestial", "Eternity", "One Above All",
		},
		TierMin: 1,
		TierMax: 3,
		HasPeak: true,
		Subject: "role",
		Color:   0xF5C400,
		Title:   "MARVEL RIVALS LEADERBOARD",
	},
	{
		Game: GameOverwatch,
		Code: "OW",
		Ranks: []string{
			"Bronze", "Silver", "Gold", "Platinum", "Diamond",
			"Master", "Grandmaster", "Champion", "Top 500",
		},
		TierMin:      1,
		TierMax:      5,
		UncappedRank: "Top 500",
		HasValue:     true,
		HasPeak:      true,
		Subject:      "role",
		Color:        0xD62828,
		Title:        "OVERWATCH LEADERBOARD",
	},
	{
		Game: GameDeadlock,
		Code: "DL",
		Ranks: []string{
			"Initiate", "Seeker", "Alchemist", "Arcanist",
			"Ritualist", "Emissary", "Archon", "Oracle",
			"Phantom", "Ascendant", "Eternus",
		},
		TierMin:          1,
		TierMax:          6,
		HasValue:         true,
		TierHigherBetter: true,
		Subject:          "hero",
		Color:            0x7B4F2E,
		Title:            "DEADLOCK LEADERBOARD",
	},
}

// Specs returns the registered games in processing order.
func Specs() []*GameSpec {
	return specs
}

func SpecFor(game Game) *GameSpec {
	for _, s := range specs {
		if s.Game == game {
			return s
		}
	}
	return nil
}
