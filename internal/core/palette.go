package core

// Tone is the visual weight a status is rendered with.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

// Palette maps automation and execution statuses to tones. Statuses missing
// from the palette render as ToneNeutral.
type Palette map[string]Tone

// DefaultPalette covers every automation and execution status.
func DefaultPalette() Palette {
	return Palette{
		string(AutomationStatusPending):   ToneInfo,
		string(AutomationStatusActive):    ToneSuccess,
		string(AutomationStatusPaused):    ToneWarning,
		string(AutomationStatusDisabled):  ToneDanger,
		string(AutomationStatusCompleted): ToneNeutral,
		string(ExecutionStatusRunning):    ToneInfo,
		string(ExecutionStatusFailed):     ToneDanger,
	}
}

// Without returns a copy of the palette with the given statuses removed, so
// they fall back to ToneNeutral.
func (p Palette) Without(statuses ...string) Palette {
	out := make(Palette, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, s := range statuses {
		delete(out, s)
	}
	return out
}

// Tone returns the tone for status.
func (p Palette) Tone(status string) Tone {
	if t, ok := p[status]; ok {
		return t
	}
	return ToneNeutral
}
