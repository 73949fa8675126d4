package state

import (
	"strings"
	"testing"
	"time"

	"rankboard/internal/domain"
)

func TestMarker(t *testing.T) {
	tests := []struct {
		game domain.Game
		want string
	}{
		{domain.GameMarvelRivals, "LB_STATE:MARVEL_RIVALS:"},
		{domain.GameOverwatch, "LB_STATE:OVERWATCH:"},
		{domain.GameDeadlock, "LB_STATE:DEADLOCK:"},
	}
	for _, tt := range tests {
		if got := Marker(tt.game); got != tt.want {
			t.Fatalf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestEncodeHasMarkerPrefix(t *testing.T) {
	st := State{Players: []domain.PlayerRecord{{PlayerName: "Alpha", RankCurrent: "Diamond", Date: time.Now().UTC()}}}
	blob, err := Encode(domain.GameOverwatch, st)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(blob, "LB_STATE:OVERWATCH:") {
		t.Fatalf("expected marker prefix, got %q", blob[:30])
	}
	if !strings.Contains(blob, "Alpha") {
		t.Fatal("expected player name in blob")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	date := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	st := State{Players: []domain.PlayerRecord{
		{
			PlayerName:  "Turbostar",
			Role:        "Strategist",
			RankCurrent: "Diamond",
			TierCurrent: 2,
			RankPeak:    "Grandmaster",
			TierPeak:    1,
			Date:        date,
		},
		{
			PlayerName:   "244419214738194432",
			DiscordID:    "244419214738194432",
			Role:         "Tank",
			RankCurrent:  "Master",
			TierCurrent:  1,
			CurrentValue: 3500,
			RankPeak:     "Grandmaster",
			TierPeak:     5,
			PeakValue:    3800,
			Date:         date.Add(time.Hour),
		},
	}}

	blob, err := Encode(domain.GameMarvelRivals, st)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded := Decode(blob)

	if len(decoded.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(decoded.Players))
	}
	for i, p := range decoded.Players {
		want := st.Players[i]
		if !p.Date.Equal(want.Date) {
			t.Fatalf("player %d: expected date %v, got %v", i, want.Date, p.Date)
		}
		p.Date = want.Date
		if p != want {
			t.Fatalf("player %d: expected %+v, got %+v", i, want, p)
		}
	}
}

func TestDecodeGracefulFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty input", ""},
		{"no marker", "random text without marker"},
		{"one colon only", "LB_STATE:"},
		{"corrupted json", "LB_STATE:DEADLOCK:{broken!!!"},
		{"json without players", "LB_STATE:DEADLOCK:{}"},
		{"null players", `LB_STATE:DEADLOCK:{"players":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Decode(tt.content)
			if st.Players == nil {
				t.Fatal("expected non-nil player slice")
			}
			if len(st.Players) != 0 {
				t.Fatalf("expected empty player set, got %d", len(st.Players))
			}
		})
	}
}

func TestDecodeEmptyEncodedState(t *testing.T) {
	blob, err := Encode(domain.GameDeadlock, State{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	st := Decode(blob)
	if len(st.Players) != 0 {
		t.Fatalf("expected empty player set, got %d", len(st.Players))
	}
}
