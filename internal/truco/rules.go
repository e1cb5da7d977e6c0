// internal/truco/rules.go
package truco

// Rules holds the scoring parameters of a match.
type Rules struct {
	TargetScore    int `json:"target_score"`    // score that wins the match
	MalasThreshold int `json:"malas_threshold"` // falta envido plays to this score until someone reaches it
}

// DefaultRules returns the standard thirty-point match, split at fifteen.
func DefaultRules() Rules {
	return Rules{
		TargetScore:    30,
		MalasThreshold: 15,
	}
}

// Normalized fills unset fields with their defaults.
func (r Rules) Normalized() Rules {
	def := DefaultRules()
	if r.TargetScore <= 0 {
		r.TargetScore = def.TargetScore
	}
	if r.MalasThreshold <= 0 || r.MalasThreshold >= r.TargetScore {
		r.MalasThreshold = r.TargetScore / 2
	}
	return r
}
