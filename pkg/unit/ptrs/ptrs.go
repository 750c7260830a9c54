// Package ptrs builds pointers for the optional fields of model and hardware
// profiles. A nil pointer means "unknown", which is distinct from zero.
package ptrs

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Uint32 returns a pointer to v.
func Uint32(v uint32) *uint32 { return &v }

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 { return &v }

// Float64Or dereferences p, returning def when p is nil.
func Float64Or(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// Uint32Or dereferences p, returning def when p is nil.
func Uint32Or(p *uint32, def uint32) uint32 {
	if p == nil {
		return def
	}
	return *p
}
