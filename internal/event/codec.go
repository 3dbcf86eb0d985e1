package event

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
)

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Marshal encodes e with its kind tag.
func Marshal(e Event) ([]byte, error) {
	if e == nil {
		return nil, apperrors.InvalidInput("nil event")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.Kind(), err)
	}
	return json.Marshal(envelope{Kind: e.Kind(), Data: data})
}

// Unmarshal decodes an event produced by Marshal. Decoded events go through
// the constructors, so collections are never nil.
func Unmarshal(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed event envelope")
	}

	switch env.Kind {
	case KindGameSetup:
		var v GameSetup
		if err := decode(env, &v); err != nil {
			return nil, err
		}
		return NewGameSetup(v.Players, v.PrivateObjectives, v.ToolCards, v.PatternChoices), nil
	case KindPlayerStatus:
		var v PlayerStatus
		if err := decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindConnectionStatus:
		var v PlayerConnectionStatus
		if err := decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindDraftPool:
		var v DraftPoolUpdate
		if err := decode(env, &v); err != nil {
			return nil, err
		}
		return NewDraftPoolUpdate(v.Dice), nil
	case KindRoundTrack:
		var v RoundTrackUpdate
		if err := decode(env, &v); err != nil {
			return nil, err
		}
		return NewRoundTrackUpdate(v.Rounds), nil
	case KindNextTurn:
		var v NextTurn
		if err := decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindGameEnd:
		var v GameEnd
		if err := decode(env, &v); err != nil {
			return nil, err
		}
		return NewGameEnd(v.Scores), nil
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown event kind %q", env.Kind)).
			WithDetail("kind", string(env.Kind))
	}
}

func decode(env envelope, v any) error {
	if len(env.Data) == 0 {
		return apperrors.InvalidInput(fmt.Sprintf("event %s has no data", env.Kind))
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, fmt.Sprintf("malformed %s event", env.Kind))
	}
	return nil
}
