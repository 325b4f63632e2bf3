package catalog

// Modality identifies one sensor channel of an observation
type Modality string

const (
	Motion   Modality = "motion"
	Sound    Modality = "sound"
	Location Modality = "location"
)

// Modalities lists the channels in encoded vector order
var Modalities = [VectorWidth]Modality{Motion, Location, Sound}

// VectorWidth is the number of dimensions of an encoded observation
const VectorWidth = 3

// Valid checks if modality is known
func (m Modality) Valid() bool {
	switch m {
	case Motion, Sound, Location:
		return true
	}
	return false
}

// String returns string representation
func (m Modality) String() string {
	return string(m)
}

// Observation is one time step of categorical readings
type Observation struct {
	Motion   string `json:"motion"`
	Sound    string `json:"sound"`
	Location string `json:"location"`
}

// Value returns the category recorded for modality m
func (o Observation) Value(m Modality) string {
	switch m {
	case Motion:
		return o.Motion
	case Sound:
		return o.Sound
	case Location:
		return o.Location
	}
	return ""
}

// Set stores category c for modality m
func (o *Observation) Set(m Modality, c string) {
	switch m {
	case Motion:
		o.Motion = c
	case Sound:
		o.Sound = c
	case Location:
		o.Location = c
	}
}

// Sequence is a time-ordered list of observations
type Sequence []Observation

// ObservationSet is a collection of independent sequences of one event
type ObservationSet []Sequence

// Vector is the numeric encoding of an observation, laid out as [motion, location, sound]
type Vector [VectorWidth]int

// StatusSets is a catalog snapshot: ordered, distinct category labels per modality.
// A label's position is its numeric code, valid only within this snapshot.
type StatusSets struct {
	Motion   []string `json:"motion"`
	Sound    []string `json:"sound"`
	Location []string `json:"location"`
}
