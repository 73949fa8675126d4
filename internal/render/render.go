package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"rankboard/internal/constants"
	"rankboard/internal/domain"
)

type EmbedAuthor struct {
	Name string `json:"name"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type Embed struct {
	Color       int          `json:"color"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Description string       `json:"description"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// WebhookPayload is the body posted to the publish webhook.
type WebhookPayload struct {
	Embeds []Embed `json:"embeds"`
}

const footerLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Sort returns a new slice ordered best-first by the game's tie-break
// chain: rank position, then tier (each game's own direction), then
// peak rank/tier where tracked or score where not, then recency.
func Sort(players []domain.PlayerRecord, spec *domain.GameSpec) []domain.PlayerRecord {
	sorted := make([]domain.PlayerRecord, len(players))
	copy(sorted, players)

	sort.SliceStable(sorted, func(i, j int) bool {
		return less(&sorted[i], &sorted[j], spec)
	})
	return sorted
}

func less(a, b *domain.PlayerRecord, spec *domain.GameSpec) bool {
	if ra, rb := spec.RankIndex(a.RankCurrent), spec.RankIndex(b.RankCurrent); ra != rb {
		return ra > rb
	}
	if a.TierCurrent != b.TierCurrent {
		if spec.TierHigherBetter {
			return a.TierCurrent > b.TierCurrent
		}
		return a.TierCurrent < b.TierCurrent
	}
	if spec.HasPeak {
		if pa, pb := spec.RankIndex(a.RankPeak), spec.RankIndex(b.RankPeak); pa != pb {
			return pa > pb
		}
		if a.TierPeak != b.TierPeak {
			if spec.TierHigherBetter {
				return a.TierPeak > b.TierPeak
			}
			return a.TierPeak < b.TierPeak
		}
	} else if spec.HasValue {
		if a.CurrentValue != b.CurrentValue {
			return a.CurrentValue < b.CurrentValue
		}
	}
	return a.Date.After(b.Date)
}

// Leaderboard renders the sorted player set into the embed published
// to the public channel.
func Leaderboard(players []domain.PlayerRecord, spec *domain.GameSpec, now time.Time) WebhookPayload {
	embed := Embed{
		Color:     spec.Color,
		Author:    &EmbedAuthor{Name: spec.Title},
		Footer:    &EmbedFooter{Text: "Last updated: " + now.UTC().Format(footerLayout)},
		Timestamp: now.UTC().Format(time.RFC3339),
	}

	if len(players) == 0 {
		embed.Description = "*No players yet — post an update in the update channel to get started!*"
		return WebhookPayload{Embeds: []Embed{embed}}
	}

	header, rows := buildTable(players, spec, now)
	divider := strings.Repeat("─", len([]rune(header)))
	embed.Description = truncate("```\n" + header + "\n" + divider + "\n" + strings.Join(rows, "\n") + "\n```")

	return WebhookPayload{Embeds: []Embed{embed}}
}

func buildTable(players []domain.PlayerRecord, spec *domain.GameSpec, now time.Time) (string, []string) {
	var header string
	rows := make([]string, 0, len(players))

	switch spec.Game {
	case domain.GameOverwatch:
		header = fmt.Sprintf("%s  %s  %s  %s  %s  UPDATED",
			col("POS", 3), col("PLAYER", 14), col("ROLE", 7), col("RANK (SR)", 16), col("PEAK (SR)", 16))
		for i, p := range players {
			rank := fmt.Sprintf("%s %s %d", p.RankCurrent, owTier(spec, p.RankCurrent, p.TierCurrent), p.CurrentValue)
			peak := fmt.Sprintf("%s %s %d", p.RankPeak, owTier(spec, p.RankPeak, p.TierPeak), p.PeakValue)
			rows = append(rows, fmt.Sprintf("%s  %s  %s  %s  %s  %s",
				col(fmt.Sprint(i+1), 3), col(displayName(&p), 14), col(p.Role, 7),
				col(rank, 16), col(peak, 16), RelativeTime(p.Date, now)))
		}
	case domain.GameDeadlock:
		header = fmt.Sprintf("%s  %s  %s  %s  UPDATED",
			col("POS", 3), col("PLAYER", 14), col("HERO", 10), col("RANK (PTS)", 16))
		for i, p := range players {
			rank := fmt.Sprintf("%s %d %d", p.RankCurrent, p.TierCurrent, p.CurrentValue)
			rows = append(rows, fmt.Sprintf("%s  %s  %s  %s  %s",
				col(fmt.Sprint(i+1), 3), col(displayName(&p), 14), col(p.Hero, 10),
				col(rank, 16), RelativeTime(p.Date, now)))
		}
	default:
		header = fmt.Sprintf("%s  %s  %s  %s  %s  UPDATED",
			col("POS", 3), col("PLAYER", 14), col("ROLE", 11), col("RANK", 14), col("PEAK", 14))
		for i, p := range players {
			rank := fmt.Sprintf("%s %d", p.RankCurrent, p.TierCurrent)
			peak := fmt.Sprintf("%s %d", p.RankPeak, p.TierPeak)
			rows = append(rows, fmt.Sprintf("%s  %s  %s  %s  %s  %s",
				col(fmt.Sprint(i+1), 3), col(displayName(&p), 14), col(p.Role, 11),
				col(rank, 14), col(peak, 14), RelativeTime(p.Date, now)))
		}
	}
	return header, rows
}

// owTier formats the tier column: the uncapped top bracket shows its
// standing number as "#N".
func owTier(spec *domain.GameSpec, rank string, tier int) string {
	if spec.UncappedRank != "" && strings.EqualFold(rank, spec.UncappedRank) {
		return fmt.Sprintf("#%d", tier)
	}
	return fmt.Sprint(tier)
}

// col pads or truncates to an exact column width.
func col(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return s + strings.Repeat(" ", width-len(runes))
}

func displayName(p *domain.PlayerRecord) string {
	if p.DiscordID != "" && p.PlayerName == p.DiscordID {
		// Mention-keyed record: show a short handle, not the raw id.
		if len(p.DiscordID) > 5 {
			return "id:" + p.DiscordID[len(p.DiscordID)-5:]
		}
		return "id:" + p.DiscordID
	}
	return p.PlayerName
}

// RelativeTime renders how long ago a record was observed.
func RelativeTime(date, now time.Time) string {
	elapsed := now.Sub(date)
	if elapsed < 0 {
		return "just now"
	}

	s := int(elapsed.Seconds())
	m := s / 60
	h := m / 60
	d := h / 24
	w := d / 7
	mo := d / 30
	y := d / 365

	switch {
	case s < 10:
		return "just now"
	case s < 60:
		return fmt.Sprintf("%ds ago", s)
	case m < 60:
		return fmt.Sprintf("%dm ago", m)
	case h < 24:
		return fmt.Sprintf("%dh ago", h)
	case d < 7:
		return fmt.Sprintf("%dd ago", d)
	case w < 5:
		return fmt.Sprintf("%dw ago", w)
	case mo < 12:
		return fmt.Sprintf("%dmo ago", mo)
	default:
		return fmt.Sprintf("%dy ago", y)
	}
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= constants.MaxEmbedDescription {
		return s
	}
	// keep the code block closed after cutting
	return string(runes[:constants.TruncateAt]) + constants.TruncationMarker + "\n```"
}

// RankEmoji maps a rank name onto its channel emoji.
func RankEmoji(name string) string {
	emojis := map[string]string{
		"bronze": "🟫", "silver": "⚪", "gold": "🟡", "platinum": "🔵", "diamond": "💎",
		"master": "🎖️", "grandmaster": "👑", "champion": "🏆", "top 500": "⭐",
		"celestial": "✨", "eternity": "♾️", "one above all": "🌟",
		"initiate": "🔰", "seeker": "🔍", "alchemist": "⚗️", "arcanist": "🔮",
		"ritualist": "📿", "emissary": "💼", "archon": "👤", "oracle": "🧙",
		"phantom": "👻", "ascendant": "🎖️", "eternus": "♾️",
	}
	if e, ok := emojis[strings.ToLower(name)]; ok {
		return e
	}
	return "❓"
}
