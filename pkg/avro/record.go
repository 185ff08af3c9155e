package avro

// Entry is one decoded field. A nil Value is the Avro null.
type Entry struct {
	Name  string
	Value any
}

// Record is a decoded Avro record: one entry per schema field, in schema
// order. A field that is present with a null value is distinct from a field
// that is absent.
type Record []Entry

// Get returns the value stored under name; ok is false when the record has
// no such field.
func (r Record) Get(name string) (value any, ok bool) {
	for _, e := range r {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// Has reports whether the record carries a field called name.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, e := range r {
		names[i] = e.Name
	}
	return names
}

// Map copies the record into an unordered map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, e := range r {
		m[e.Name] = e.Value
	}
	return m
}
