package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/game"
)

func TestConstructorsCaptureValues(t *testing.T) {
	dice := []game.Die{{Color: game.Red, Value: 3}}
	pool := NewDraftPoolUpdate(dice)
	dice[0].Value = 6
	assert.Equal(t, 3, pool.Dice[0].Value)

	rounds := [][]game.Die{{{Color: game.Blue, Value: 1}}}
	track := NewRoundTrackUpdate(rounds)
	rounds[0][0].Color = game.Green
	assert.Equal(t, game.Blue, track.Rounds[0][0].Color)

	placed := game.Die{Color: game.Purple, Value: 2}
	pattern := &game.Pattern{Name: "Kaleidoscopic Dream", Difficulty: 4, Grid: [][]game.Cell{{{Die: &placed}}}}
	status := NewPlayerStatus("Pippo", 4, pattern)
	pattern.Name = "changed"
	placed.Value = 5
	assert.Equal(t, "Kaleidoscopic Dream", status.Pattern.Name)
	assert.Equal(t, 2, status.Pattern.Grid[0][0].Die.Value)

	scores := map[string]int{"Pippo": 10}
	end := NewGameEnd(scores)
	scores["Pippo"] = 0
	scores["Pluto"] = 1
	assert.Equal(t, map[string]int{"Pippo": 10}, end.Scores)

	players := []string{"Pippo", "Pluto"}
	objectives := map[string][]game.Card{"Pippo": {{ID: 1, Name: "Shades of Red"}}}
	setup := NewGameSetup(players, objectives, nil, nil)
	players[0] = "Paperino"
	objectives["Pippo"][0].Name = "changed"
	assert.Equal(t, []string{"Pippo", "Pluto"}, setup.Players)
	assert.Equal(t, "Shades of Red", setup.PrivateObjectives["Pippo"][0].Name)
	assert.NotNil(t, setup.ToolCards)
}

func TestNextTurnEquality(t *testing.T) {
	a := NextTurn{Player: "Pippo", Round: 1, FirstTurn: true}
	b := NextTurn{Player: "Pippo", Round: 1, FirstTurn: true}
	c := NextTurn{Player: "Pippo", Round: 1, FirstTurn: false}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, a, b)
}

func TestRanking(t *testing.T) {
	end := NewGameEnd(map[string]int{"Pluto": 12, "Pippo": 12, "Topolino": 20})
	assert.Equal(t, []Score{
		{Player: "Topolino", Points: 20},
		{Player: "Pippo", Points: 12},
		{Player: "Pluto", Points: 12},
	}, end.Ranking())
}

func TestCodecRoundTrip(t *testing.T) {
	pattern := game.Pattern{Name: "Virtus", Difficulty: 5}
	events := []Event{
		NewGameSetup([]string{"Pippo"}, map[string][]game.Card{"Pippo": {{ID: 2}}}, []game.Card{{ID: 7, Name: "Lens Cutter"}}, map[string][]game.Pattern{"Pippo": {pattern}}),
		NewPlayerStatus("Pippo", 3, &pattern),
		PlayerConnectionStatus{Player: "Pippo", Connected: true},
		NewDraftPoolUpdate([]game.Die{{Color: game.Yellow, Value: 4}}),
		NewRoundTrackUpdate([][]game.Die{{{Color: game.Red, Value: 1}}, {}}),
		NextTurn{Player: "Pippo", Round: 2, FirstTurn: false},
		NewGameEnd(map[string]int{"Pippo": 33}),
	}

	for _, e := range events {
		t.Run(string(e.Kind()), func(t *testing.T) {
			data, err := Marshal(e)
			require.NoError(t, err)
			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, e, got)
		})
	}
}

func TestUnmarshalNormalisesEmptyCollections(t *testing.T) {
	got, err := Unmarshal([]byte(`{"kind":"draft_pool","data":{"dice":null}}`))
	require.NoError(t, err)
	pool := got.(DraftPoolUpdate)
	assert.NotNil(t, pool.Dice)
	assert.Empty(t, pool.Dice)
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", `not json`},
		{"unknown kind", `{"kind":"weather","data":{}}`},
		{"missing data", `{"kind":"next_turn"}`},
		{"bad payload", `{"kind":"next_turn","data":{"round":"two"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
		})
	}

	_, err := Marshal(nil)
	assert.Error(t, err)
}
