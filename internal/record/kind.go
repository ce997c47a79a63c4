package record

import "fmt"

// Kind identifies one of the three historical archive categories.
// Each kind is stored in its own table named after it.
type Kind string

const (
	KindUnknown Kind = ""
	KindDevice  Kind = "device"
	KindFoiText Kind = "foitext"
	KindFoiDev  Kind = "foidev"
)

// Kinds returns the known kinds in table order.
func Kinds() []Kind {
	return []Kind{KindDevice, KindFoiText, KindFoiDev}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDevice, KindFoiText, KindFoiDev:
		return true
	}
	return false
}

// String returns the table name for k, or "unknown".
func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}

// ParseKind converts a table name into a Kind.
// Matching is exact; table names are already lower case.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return KindUnknown, fmt.Errorf("unknown record kind %q", s)
	}
	return k, nil
}
