package pixel

import "github.com/user/imgbridge/pkg/ports"

// Alpha is how a decoded buffer's alpha channel relates to its colour.
type Alpha int

const (
	// AlphaNone means the alpha channel carries no information.
	AlphaNone Alpha = iota
	// AlphaUnassociated is straight alpha.
	AlphaUnassociated
	// AlphaAssociated is premultiplied alpha.
	AlphaAssociated
)

func (a Alpha) String() string {
	switch a {
	case AlphaUnassociated:
		return "unassociated"
	case AlphaAssociated:
		return "associated"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Alpha) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// MapAlpha maps the engine's alpha description. Unknown and none, and any
// value outside the defined set, map to AlphaNone.
func MapAlpha(a ports.NativeAlpha) Alpha {
	switch a {
	case ports.AlphaStraight:
		return AlphaUnassociated
	case ports.AlphaPremultiplied:
		return AlphaAssociated
	default:
		return AlphaNone
	}
}
