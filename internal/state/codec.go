package state

import (
	"encoding/json"
	"strings"

	"rankboard/internal/domain"
)

// State is one game's durable player set.
type State struct {
	Players []domain.PlayerRecord `json:"players"`
}

const markerPrefix = "LB_STATE:"

// Marker returns the namespace prefix for a game's state blob.
func Marker(game domain.Game) string {
	return markerPrefix + string(game) + ":"
}

// Encode serializes a state into its durable blob form:
// LB_STATE:<GAME>:<json>, timestamps as RFC 3339.
func Encode(game domain.Game, st State) (string, error) {
	if st.Players == nil {
		st.Players = []domain.PlayerRecord{}
	}
	data, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	return Marker(game) + string(data), nil
}

// Decode parses a state blob. Any failure (empty input, missing
// marker, malformed JSON) yields an empty player set: a corrupted or
// absent blob means starting over, never crashing.
func Decode(content string) State {
	empty := State{Players: []domain.PlayerRecord{}}

	first := strings.Index(content, ":")
	if first == -1 {
		return empty
	}
	second := strings.Index(content[first+1:], ":")
	if second == -1 {
		return empty
	}

	var st State
	if err := json.Unmarshal([]byte(content[first+1+second+1:]), &st); err != nil {
		return empty
	}
	if st.Players == nil {
		st.Players = []domain.PlayerRecord{}
	}
	return st
}
