// Package modemstate is the narrow seam onto modem enable/disable and SIM
// state that the voice core's emergency-only admission rule needs. Full
// registration, SIM and signal management are out of scope for this
// subsystem and live elsewhere; this interface only exposes the three facts
// admission depends on.
package modemstate

// Source reports the facts the emergency-only admission predicate needs.
type Source interface {
	// Registered reports whether the modem is registered on a network. A
	// false return means EmergencyOnly is true.
	Registered() bool
	// SIMPresent reports whether a SIM is inserted.
	SIMPresent() bool
	// EmergencyNumbers returns the SIM's EF_ECC emergency-number list, or
	// nil if no SIM is present or the list is unavailable.
	EmergencyNumbers() []string
}

// Static is a fixed-value Source, useful for tests and for modems whose
// registration state does not change at runtime.
type Static struct {
	RegisteredValue       bool
	SIMPresentValue       bool
	EmergencyNumbersValue []string
}

func (s Static) Registered() bool            { return s.RegisteredValue }
func (s Static) SIMPresent() bool            { return s.SIMPresentValue }
func (s Static) EmergencyNumbers() []string  { return s.EmergencyNumbersValue }
