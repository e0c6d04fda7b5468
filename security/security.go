// Package security classifies the cipher and hash algorithm names a peer may
// advertise during arbitration, and gates them against a configured minimum
// strength. It performs no cryptography of its own: Strength is metadata
// used to decide whether a handler should trust a peer's declared security
// level.
package security

// Strength is a coarse score for a named algorithm. Higher is stronger;
// zero means "no security at all".
type Strength int

const (
	StrengthNone   Strength = 0
	StrengthWeak   Strength = 16
	StrengthMedium Strength = 128
	StrengthStrong Strength = 256
)

// Algorithms is the registry of known cipher/hash names and their strength.
// Names absent from this table are treated as StrengthNone by Lookup.
var Algorithms = map[string]Strength{
	"null":   StrengthNone,
	"des":    StrengthWeak,
	"md5":    StrengthWeak,
	"des3":   StrengthMedium,
	"sha":    StrengthMedium,
	"aes":    StrengthStrong,
	"cast5":  StrengthStrong,
	"sha512": StrengthStrong,
}

// Lookup returns the strength of a named algorithm, or StrengthNone if the
// name isn't in Algorithms.
func Lookup(name string) Strength {
	if s, ok := Algorithms[name]; ok {
		return s
	}
	return StrengthNone
}

// Mode controls how a Policy treats a peer whose declared strength falls
// below Minimum.
type Mode int

const (
	// ModeReject refuses any algorithm below Minimum.
	ModeReject Mode = iota
	// ModeAcceptLimited accepts below-Minimum algorithms but flags them.
	ModeAcceptLimited
	// ModeAccept accepts anything regardless of Minimum.
	ModeAccept
)

// Policy is a declared-but-unenforced security knob: the mesh's core command
// handlers never consult it directly, but it is threaded through Host so an
// application-level Handler can query it when deciding whether to trust a
// peer's advertised algorithms.
type Policy struct {
	Mode    Mode
	Minimum Strength
}

// Accepts reports whether a named algorithm satisfies the policy.
func (p Policy) Accepts(name string) bool {
	switch p.Mode {
	case ModeAccept:
		return true
	case ModeAcceptLimited:
		return true
	default:
		return Lookup(name) >= p.Minimum
	}
}

// Flagged reports whether a named algorithm is below Minimum, regardless of
// whether Accepts would still let it through under ModeAcceptLimited.
func (p Policy) Flagged(name string) bool {
	return Lookup(name) < p.Minimum
}

// DefaultPolicy accepts anything but flags algorithms weaker than
// StrengthMedium.
func DefaultPolicy() Policy {
	return Policy{Mode: ModeAcceptLimited, Minimum: StrengthMedium}
}
