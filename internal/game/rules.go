// internal/game/rules.go
package game

import "github.com/jason-s-yu/truco/internal/models"

// ParseRules applies a loosely typed rules map (as decoded from JSON) on top
// of current. Unknown keys are ignored; present keys must have the right type.
func ParseRules(rules map[string]interface{}, current models.HouseRules) (models.HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}
