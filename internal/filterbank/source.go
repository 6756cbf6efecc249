package filterbank

import "reflect"

// filterSource identifies how a canonical key becomes an invocable at
// dispatch time. The set is closed: a new kind means a new case in
// Bank.Invoke, which switches over every variant.
type filterSource interface {
	filterSource()
}

// callbackSource is a function bound directly at registration time,
// independent of any provider type.
type callbackSource struct {
	fn reflect.Value
}

// staticSource names a type whose matching method is invoked on a fresh
// zero value, or on a live provider of the same type when one has been
// registered since.
type staticSource struct {
	typ reflect.Type
}

// globalSource marks a filter backed by the bank's named-function
// namespace. The function is looked up again at every invocation, so
// redefining the name takes effect immediately.
type globalSource struct{}

// instanceSource names a provider type whose registered instance receives
// the method call.
type instanceSource struct {
	typ reflect.Type
}

func (callbackSource) filterSource() {}
func (staticSource) filterSource()   {}
func (globalSource) filterSource()   {}
func (instanceSource) filterSource() {}
