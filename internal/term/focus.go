package term

// CursorPolicy is the pair of cursor styles the focus policy switches
// between. Resolved from configuration once; applied whenever focus moves.
type CursorPolicy struct {
	Focused   CursorStyle
	Unfocused CursorStyle
}

// DefaultCursorPolicy mirrors the stock desktop appearance
func DefaultCursorPolicy() CursorPolicy {
	return CursorPolicy{
		Focused:   CursorBlockBlink,
		Unfocused: CursorBlockOutline,
	}
}

// For returns the style for the given focus state. The style is computed
// from the focus state alone, never diffed against a previous value, so
// applying it repeatedly is idempotent.
func (p CursorPolicy) For(focused bool) CursorStyle {
	if focused {
		return p.Focused
	}
	return p.Unfocused
}
