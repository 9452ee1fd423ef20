package action

import "fmt"

// Deserializer understands the actions of one content format. The log layer
// decodes the envelope; Decode only validates and may reinterpret the result,
// including CustomData which the manager never looks at.
type Deserializer interface {
	Format() string
	Version() int
	Decode(a Action) (Action, error)
}

// Deserializers looks up the deserializer registered for a format name.
type Deserializers interface {
	Deserializer(format string) (Deserializer, bool)
}

// Check resolves the deserializer for a and runs it, returning
// *UnsupportedFormatError for unknown formats and future versions.
func Check(reg Deserializers, a Action) (Action, error) {
	d, ok := reg.Deserializer(a.Format)
	if !ok {
		return Action{}, &UnsupportedFormatError{Format: a.Format, Version: a.Version, Reason: "no deserializer registered"}
	}
	if a.Version > d.Version() || a.Version < 0 {
		return Action{}, &UnsupportedFormatError{
			Format:  a.Format,
			Version: a.Version,
			Reason:  fmt.Sprintf("supported up to version %d", d.Version()),
		}
	}
	return d.Decode(a)
}
