package state

import (
	"strings"

	"rankboard/internal/domain"
)

type UpsertResult int

const (
	UpsertStale UpsertResult = iota
	UpsertInserted
	UpsertUpdated
)

// Upsert inserts or replaces a player record, keyed by
// case-insensitive player name. An incoming record strictly older
// than the stored one is discarded (UpsertStale); an equal timestamp
// overwrites, which makes reprocessing a consumed update a no-op in
// effect.
func Upsert(players *[]domain.PlayerRecord, rec domain.PlayerRecord) UpsertResult {
	for i := range *players {
		if !strings.EqualFold((*players)[i].PlayerName, rec.PlayerName) {
			continue
		}
		if rec.Date.Before((*players)[i].Date) {
			return UpsertStale
		}
		(*players)[i] = rec
		return UpsertUpdated
	}
	*players = append(*players, rec)
	return UpsertInserted
}

// Delete removes at most one record. A target with an account id
// matches on that id first; otherwise matching is by case-insensitive
// name. Returns the removed record, or nil when nothing matched.
func Delete(players *[]domain.PlayerRecord, name, discordID string) *domain.PlayerRecord {
	if discordID != "" {
		for i := range *players {
			if (*players)[i].DiscordID == discordID {
				return removeAt(players, i)
			}
		}
	}
	for i := range *players {
		if strings.EqualFold((*players)[i].PlayerName, name) {
			return removeAt(players, i)
		}
	}
	return nil
}

func removeAt(players *[]domain.PlayerRecord, i int) *domain.PlayerRecord {
	removed := (*players)[i]
	*players = append((*players)[:i], (*players)[i+1:]...)
	return &removed
}
