package vehicle

// TypeID is a unique string identifier for a vehicle type.
type TypeID = string

// Type holds the static parameters shared by every vehicle of one kind.
// Values are immutable once created and shared by pointer.
type Type struct {
	id       TypeID
	length   float64 // metres
	maxSpeed float64 // m/s
}

// TypeData is the serialisable input representation of a vehicle type.
type TypeData struct {
	ID       TypeID  `json:"type_id" yaml:"type_id"`
	Length   float64 `json:"length" yaml:"length"`       // metres
	MaxSpeed float64 `json:"max_speed" yaml:"max_speed"` // m/s
}

// NewType creates a vehicle type.
func NewType(id TypeID, length, maxSpeed float64) *Type {
	return &Type{id: id, length: length, maxSpeed: maxSpeed}
}

// NewTypeFromData creates a vehicle type from its serialisable form.
func NewTypeFromData(d TypeData) *Type {
	return NewType(d.ID, d.Length, d.MaxSpeed)
}

// ID returns the type id.
func (t *Type) ID() TypeID { return t.id }

// Length is in metres.
func (t *Type) Length() float64 { return t.length }

// MaxSpeed is in m/s.
func (t *Type) MaxSpeed() float64 { return t.maxSpeed }

// Data returns the serialisable form of t.
func (t *Type) Data() TypeData {
	return TypeData{ID: t.id, Length: t.length, MaxSpeed: t.maxSpeed}
}
