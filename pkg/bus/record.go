package bus

// Record is the keyed data container handed to every callback of a raise.
// Callbacks read and write keys whose meaning is declared by the event's
// argument descriptions.
type Record struct {
	event string
	data  map[string]any
}

// NewRecord wraps args for the named event. A nil args map is allowed.
func NewRecord(event string, args map[string]any) *Record {
	if args == nil {
		args = map[string]any{}
	}
	return &Record{event: event, data: args}
}

// Event returns the name of the event this record belongs to.
func (r *Record) Event() string { return r.event }

// Get returns the raw value for key.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.data[key]
	return v, ok
}

// Set stores a value under key.
func (r *Record) Set(key string, v any) {
	r.data[key] = v
}

// Keys returns the keys currently present.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.data))
	for k := range r.data {
		keys = append(keys, k)
	}
	return keys
}

// String returns the string value for key, or "" when absent or not a
// string.
func (r *Record) String(key string) string {
	if v, ok := r.data[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the bool value for key, or false when absent or not a bool.
func (r *Record) Bool(key string) bool {
	if v, ok := r.data[key].(bool); ok {
		return v
	}
	return false
}

// Int returns the int value for key, or 0 when absent or not an int.
func (r *Record) Int(key string) int {
	if v, ok := r.data[key].(int); ok {
		return v
	}
	return 0
}

// Value extracts a typed value from a record.
func Value[T any](r *Record, key string) (T, bool) {
	var zero T
	raw, ok := r.data[key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
