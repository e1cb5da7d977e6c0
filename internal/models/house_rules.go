// internal/models/house_rules.go
package models

import (
	"fmt"

	"github.com/jason-s-yu/truco/internal/truco"
)

// HouseRules captures the per-match configuration chosen when the match is created.
type HouseRules struct {
	TargetScore         int  `json:"targetScore"`         // points needed to win the match; 15 and 30 are the usual choices
	MalasThreshold      int  `json:"malasThreshold"`      // score separating malas from buenas for falta envido
	ForfeitOnDisconnect bool `json:"forfeitOnDisconnect"` // if a player disconnects, they lose the match; if false, the match pauses until they return
}

// DefaultHouseRules is a thirty-point match that pauses on disconnect.
func DefaultHouseRules() HouseRules {
	r := truco.DefaultRules()
	return HouseRules{
		TargetScore:    r.TargetScore,
		MalasThreshold: r.MalasThreshold,
	}
}

// TrucoRules is the scoring part of the house rules, as the engine expects it.
func (h HouseRules) TrucoRules() truco.Rules {
	return truco.Rules{
		TargetScore:    h.TargetScore,
		MalasThreshold: h.MalasThreshold,
	}.Normalized()
}

// Update will update the house rules with the new rules provided.
// Keys that are missing or null keep their old value.
func (h *HouseRules) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64: // JSON numbers decode as float64
			if v != float64(int(v)) {
				return fmt.Errorf("%s must be a whole number", key)
			}
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal {
			return fmt.Errorf("%s must be at least %d", key, minVal)
		}
		*field = n
		return nil
	}

	next := *h
	if err := assignInt(&next.TargetScore, "targetScore", 1); err != nil {
		return err
	}
	if err := assignInt(&next.MalasThreshold, "malasThreshold", 1); err != nil {
		return err
	}
	if err := assignBool(&next.ForfeitOnDisconnect, "forfeitOnDisconnect"); err != nil {
		return err
	}
	if next.MalasThreshold >= next.TargetScore {
		if v, set := newRules["malasThreshold"]; set && v != nil {
			return fmt.Errorf("malasThreshold (%d) must be below targetScore (%d)", next.MalasThreshold, next.TargetScore)
		}
		next.MalasThreshold = next.TargetScore / 2
	}
	*h = next
	return nil
}
