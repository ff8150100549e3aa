package indicator

// FakeLine records every value driven onto it.
type FakeLine struct {
	// Values contains each value passed to Set, in order.
	Values []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLine creates a FakeLine for testing.
func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

// Set records the value.
func (f *FakeLine) Set(active bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, active)
	return nil
}

// Active reports the last value set, false if never set.
func (f *FakeLine) Active() bool {
	if len(f.Values) == 0 {
		return false
	}
	return f.Values[len(f.Values)-1]
}

// Close drives the line low and marks it closed.
func (f *FakeLine) Close() error {
	f.Values = append(f.Values, false)
	f.Closed = true
	return nil
}
