package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rankboard/internal/domain"

	"github.com/rs/zerolog"
)

var (
	mentionRe      = regexp.MustCompile(`<@!?(\d{17,20})>`)
	anyMentionRe   = regexp.MustCompile(`<@!?\d+>`)
	customEmojiRe  = regexp.MustCompile(`<:(\w+):\d+>`)
	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
	mentionSplitRe = regexp.MustCompile(`^(\S+)\s+(.+)$`)
	plainSplitRe   = regexp.MustCompile(`^@?(.+?)\s+(\S+)\s+(.+)$`)

	// Characters that could be mis-rendered or injected into the
	// published output.
	sanitizer = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", ";", "", "(", "", ")", "")
)

// grammar is one game's compiled command grammar.
type grammar struct {
	spec         *domain.GameSpec
	updatePrefix *regexp.Regexp
	deletePrefix *regexp.Regexp
	fields       *regexp.Regexp
}

// Parser turns raw channel messages into typed commands. It is a total
// function over strings: anything unparsable yields nil plus a
// diagnostic log, never a partial record.
type Parser struct {
	logger   zerolog.Logger
	grammars []*grammar
	anyCmdRe *regexp.Regexp
	now      func() time.Time
}

func New(logger zerolog.Logger) *Parser {
	p := &Parser{logger: logger, now: time.Now}

	var codes []string
	for _, spec := range domain.Specs() {
		p.grammars = append(p.grammars, compileGrammar(spec))
		codes = append(codes, regexp.QuoteMeta(spec.Code))
	}
	p.anyCmdRe = regexp.MustCompile(`(?i)^\s*LB_(UPDATE|DELETE)_(` + strings.Join(codes, "|") + `):`)

	return p
}

func compileGrammar(spec *domain.GameSpec) *grammar {
	// Rank alternation is built best-first so multi-word ranks match
	// before their prefixes (e.g. "One Above All" before "One").
	alts := make([]string, 0, len(spec.Ranks))
	for i := len(spec.Ranks) - 1; i >= 0; i-- {
		alts = append(alts, regexp.QuoteMeta(spec.Ranks[i]))
	}
	rankAlt := strings.Join(alts, "|")

	pat := `(?i)^(` + rankAlt + `)\s+(\d+)`
	if spec.HasValue {
		pat += `\s+(\d+)`
	}
	if spec.HasPeak {
		pat += `\s+(` + rankAlt + `)\s+(\d+)`
		if spec.HasValue {
			pat += `\s+(\d+)`
		}
	}
	pat += `\s+(.+)$`

	return &grammar{
		spec:         spec,
		updatePrefix: regexp.MustCompile(`(?i)^\s*LB_UPDATE_` + regexp.QuoteMeta(spec.Code) + `:\s*`),
		deletePrefix: regexp.MustCompile(`(?i)^\s*LB_DELETE_` + regexp.QuoteMeta(spec.Code) + `:\s*`),
		fields:       regexp.MustCompile(pat),
	}
}

// HasCommandPrefix reports whether content starts with any known
// update/delete prefix. Used to tell "parse failed" from "not ours".
func (p *Parser) HasCommandPrefix(content string) bool {
	return p.anyCmdRe.MatchString(strings.TrimSpace(content))
}

// Parse dispatches on the command prefix. A nil return means the
// message is either not a command or failed validation (logged).
func (p *Parser) Parse(content, authorID string) domain.Command {
	trimmed := strings.TrimSpace(content)
	for _, g := range p.grammars {
		if g.updatePrefix.MatchString(trimmed) {
			if cmd := p.parseUpdate(g, trimmed); cmd != nil {
				return cmd
			}
			return nil
		}
		if g.deletePrefix.MatchString(trimmed) {
			if cmd := p.parseDelete(g, trimmed, authorID); cmd != nil {
				return cmd
			}
			return nil
		}
	}
	return nil
}

func (p *Parser) parseUpdate(g *grammar, content string) domain.Command {
	spec := g.spec
	raw := strings.TrimSpace(g.updatePrefix.ReplaceAllString(content, ""))
	discordID := extractMentionID(raw)
	body := cleanBody(raw)

	name, subject, rest, ok := splitNameSubjectRest(body, discordID)
	if !ok {
		p.logger.Warn().
			Str("game", string(spec.Game)).
			Str("body", preview(body)).
			Msgf("could not extract name/%s from update", spec.Subject)
		return nil
	}

	m := g.fields.FindStringSubmatch(rest)
	if m == nil {
		p.logger.Warn().
			Str("game", string(spec.Game)).
			Str("rest", preview(rest)).
			Str("valid_ranks", strings.Join(spec.Ranks, ", ")).
			Str("expected", expectedFields(spec)).
			Msg("rank pattern failed")
		return nil
	}

	rec := domain.PlayerRecord{
		PlayerName: name,
		DiscordID:  discordID,
	}
	if spec.Subject == "hero" {
		rec.Hero = subject
	} else {
		rec.Role = subject
	}

	i := 1
	rankCurrent, ok := spec.NormalizeRank(m[i])
	if !ok {
		p.logger.Warn().Str("game", string(spec.Game)).Str("rank", m[i]).Msg("unknown current rank")
		return nil
	}
	rec.RankCurrent = rankCurrent
	i++

	rec.TierCurrent, _ = strconv.Atoi(m[i])
	if !spec.ValidTier(rec.RankCurrent, rec.TierCurrent) {
		p.logger.Warn().
			Str("game", string(spec.Game)).
			Str("rank", rec.RankCurrent).
			Int("tier", rec.TierCurrent).
			Int("tier_min", spec.TierMin).
			Int("tier_max", spec.TierMax).
			Msg("current tier out of range")
		return nil
	}
	i++

	if spec.HasValue {
		rec.CurrentValue, _ = strconv.Atoi(m[i])
		i++
	}

	if spec.HasPeak {
		rankPeak, ok := spec.NormalizeRank(m[i])
		if !ok {
			p.logger.Warn().Str("game", string(spec.Game)).Str("rank", m[i]).Msg("unknown peak rank")
			return nil
		}
		rec.RankPeak = rankPeak
		i++

		rec.TierPeak, _ = strconv.Atoi(m[i])
		if !spec.ValidTier(rec.RankPeak, rec.TierPeak) {
			p.logger.Warn().
				Str("game", string(spec.Game)).
				Str("rank", rec.RankPeak).
				Int("tier", rec.TierPeak).
				Msg("peak tier out of range")
			return nil
		}
		i++

		if spec.HasValue {
			rec.PeakValue, _ = strconv.Atoi(m[i])
			i++
		}
	}

	rec.Date = p.parseDate(m[i])

	return &domain.UpdateCommand{Game: spec.Game, Record: rec}
}

func (p *Parser) parseDelete(g *grammar, content, issuerID string) domain.Command {
	spec := g.spec
	raw := strings.TrimSpace(g.deletePrefix.ReplaceAllString(content, ""))
	discordID := extractMentionID(raw)

	cmd := &domain.DeleteCommand{Game: spec.Game, IssuerID: issuerID}
	if discordID != "" {
		// Mention target: the account id is the dedup key.
		cmd.DiscordID = discordID
		cmd.PlayerName = discordID
		return cmd
	}

	target := sanitize(strings.TrimPrefix(cleanBody(raw), "@"))
	if target == "" {
		p.logger.Warn().Str("game", string(spec.Game)).Msg("delete command without target")
		return nil
	}
	cmd.PlayerName = target
	return cmd
}

// extractMentionID captures the first direct (<@id>) or nickname
// (<@!id>) mention's account id.
func extractMentionID(s string) string {
	m := mentionRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// cleanBody strips mention tokens, reduces custom emoji to their bare
// name, and collapses whitespace runs.
func cleanBody(s string) string {
	s = anyMentionRe.ReplaceAllString(s, "")
	s = customEmojiRe.ReplaceAllString(s, "$1")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// splitNameSubjectRest handles the two mutually exclusive body forms.
// With a mention the name field is absent (the id is the key); the
// plain form starts with "@Name".
func splitNameSubjectRest(body, discordID string) (name, subject, rest string, ok bool) {
	if discordID != "" {
		m := mentionSplitRe.FindStringSubmatch(body)
		if m == nil {
			return "", "", "", false
		}
		return discordID, sanitize(m[1]), m[2], true
	}
	m := plainSplitRe.FindStringSubmatch(body)
	if m == nil {
		return "", "", "", false
	}
	return sanitize(m[1]), sanitize(m[2]), m[3], true
}

func sanitize(s string) string {
	return strings.TrimSpace(sanitizer.Replace(s))
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:100]
	}
	return s
}

func expectedFields(spec *domain.GameSpec) string {
	fields := "Rank tier"
	if spec.HasValue {
		fields += " value"
	}
	if spec.HasPeak {
		fields += " PeakRank peakTier"
		if spec.HasValue {
			fields += " peakValue"
		}
	}
	return fmt.Sprintf("%s date", fields)
}
