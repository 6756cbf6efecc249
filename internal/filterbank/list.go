package filterbank

import "sort"

// SourceKind labels how a registered filter is dispatched. It only feeds
// introspection surfaces like the filters listing; dispatch itself works
// off the source variants.
type SourceKind string

const (
	KindCallback SourceKind = "callback"
	KindStatic   SourceKind = "static"
	KindFunction SourceKind = "function"
	KindInstance SourceKind = "instance"
)

// Registration describes one bound canonical key.
type Registration struct {
	Key    string
	Kind   SourceKind
	Origin string
}

// Registrations returns every bound key in lexicographic order.
func (b *Bank) Registrations() []Registration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	regs := make([]Registration, 0, len(b.sources))
	for key, src := range b.sources {
		reg := Registration{Key: key}
		switch s := src.(type) {
		case callbackSource:
			reg.Kind = KindCallback
		case staticSource:
			reg.Kind = KindStatic
			reg.Origin = s.typ.String()
		case instanceSource:
			reg.Kind = KindInstance
			reg.Origin = s.typ.String()
		case globalSource:
			reg.Kind = KindFunction
		}
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].Key < regs[j].Key })
	return regs
}
