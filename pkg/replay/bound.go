package replay

// AllEvents requests every event the source reports.
const AllEvents int64 = -1

// Bound is the resolved number of events a run processes.
type Bound struct {
	Requested int64
	Available int64
	Events    int64
}

// ResolveBound returns min(requested, available) for a non-negative request
// and available otherwise.
func ResolveBound(requested, available int64) Bound {
	b := Bound{Requested: requested, Available: available, Events: available}
	if requested >= 0 && requested < available {
		b.Events = requested
	}
	if b.Events < 0 {
		b.Events = 0
	}
	return b
}

// Capped reports whether the request limited the run below what was available.
func (b Bound) Capped() bool {
	return b.Events < b.Available
}
