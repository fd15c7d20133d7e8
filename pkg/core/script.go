// pkg/core/script.go
package core

// ScriptConfig holds the remote detector's tunable thresholds.
type ScriptConfig struct {
	Confidence float64 `json:"confidence"`
	Cooldown   int     `json:"cooldown"`
}

// DefaultScriptConfig mirrors the detector's startup values.
func DefaultScriptConfig() ScriptConfig {
	return ScriptConfig{
		Confidence: 0.55,
		Cooldown:   10,
	}
}

// Validate checks both thresholds.
func (c ScriptConfig) Validate() error {
	return c.Update().Validate()
}

// Update returns a full update carrying every field of c.
func (c ScriptConfig) Update() ScriptUpdate {
	confidence, cooldown := c.Confidence, c.Cooldown
	return ScriptUpdate{Confidence: &confidence, Cooldown: &cooldown}
}

// ScriptUpdate is a partial ScriptConfig. Nil fields are left unchanged by the peer.
type ScriptUpdate struct {
	Confidence *float64
	Cooldown   *int
}

// Empty reports whether the update carries no fields.
func (u ScriptUpdate) Empty() bool {
	return u.Confidence == nil && u.Cooldown == nil
}

// Validate checks the fields that are present.
func (u ScriptUpdate) Validate() error {
	if u.Empty() {
		return &ValidationError{Field: "script", Reason: "no fields to update"}
	}
	if u.Confidence != nil && (*u.Confidence <= 0 || *u.Confidence > 1) {
		return &ValidationError{Field: "confidence", Reason: "must be in (0, 1]"}
	}
	if u.Cooldown != nil && *u.Cooldown < 0 {
		return &ValidationError{Field: "cooldown", Reason: "must be zero or more seconds"}
	}
	return nil
}

// Apply merges the present fields of u into c, the way the peer does.
func (c ScriptConfig) Apply(u ScriptUpdate) ScriptConfig {
	if u.Confidence != nil {
		c.Confidence = *u.Confidence
	}
	if u.Cooldown != nil {
		c.Cooldown = *u.Cooldown
	}
	return c
}
