package normalize

// Kind is the canonical type a Field resolves to.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBool
	KindTime
	KindDistance
)

// Field describes one logical field as an ordered list of alias keys.
// The first alias present in a record wins.
type Field struct {
	Aliases []string
	Kind    Kind

	// KmKey, for distance fields, names the alias whose presence marks the
	// value as kilometers. Without it every alias is treated as meters.
	KmKey string

	// Default is used for number and bool fields when nothing usable is present.
	DefaultNumber float64
	DefaultBool   bool
}

// Value is a canonical field value.
type Value struct {
	Kind    Kind
	Number  float64
	Text    string
	Bool    bool
	Present bool
}

// Canonical resolves f against the record and coerces it to f.Kind.
func (r Record) Canonical(f Field) Value {
	raw, present := r.PickFirst(f.Aliases...)
	v := Value{Kind: f.Kind, Present: present}

	switch f.Kind {
	case KindNumber:
		v.Number = Number(raw, f.DefaultNumber)
	case KindString:
		v.Text = String(raw, "")
	case KindBool:
		v.Bool = Bool(raw, f.DefaultBool)
	case KindTime:
		v.Text = ISOTime(raw)
	case KindDistance:
		hint := UnitMeters
		if f.KmKey != "" && r.Has(f.KmKey) {
			hint = UnitKilometers
		}
		v.Number = DistanceKm(raw, hint)
	}
	return v
}

// Number resolves a numeric field.
func (r Record) Number(f Field) float64 {
	f.Kind = KindNumber
	return r.Canonical(f).Number
}

// OptionalNumber resolves a numeric field, reporting false when no alias
// holds a usable number.
func (r Record) OptionalNumber(f Field) (float64, bool) {
	raw, ok := r.PickFirst(f.Aliases...)
	if !ok {
		return 0, false
	}
	return OptionalNumber(raw)
}

// Text resolves a string field.
func (r Record) Text(f Field) string {
	f.Kind = KindString
	return r.Canonical(f).Text
}

// Bool resolves a boolean field.
func (r Record) Bool(f Field) bool {
	f.Kind = KindBool
	return r.Canonical(f).Bool
}

// Time resolves a timestamp field to an ISO-8601 string.
func (r Record) Time(f Field) string {
	f.Kind = KindTime
	return r.Canonical(f).Text
}

// DistanceKm resolves a distance field to kilometers.
func (r Record) DistanceKm(f Field) float64 {
	f.Kind = KindDistance
	return r.Canonical(f).Number
}
