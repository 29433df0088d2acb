package domain

// Device represents a registered device owned by a single user.
// Tags and Sensors are loaded from the association tables on demand;
// a nil slice means "not loaded", an empty slice means "none attached".
type Device struct {
	Timestamps
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Tags    []Tag    `json:"tags,omitempty"`
	Sensors []Sensor `json:"sensors,omitempty"`
	Images  []Image  `json:"images,omitempty"`
}

// HasTag reports whether the device carries a tag with the given name.
// Only meaningful when the Tags slice has been loaded.
func (d *Device) HasTag(name string) bool {
	for _, t := range d.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// HasSensor reports whether the device carries a sensor with the given name.
// Only meaningful when the Sensors slice has been loaded.
func (d *Device) HasSensor(name string) bool {
	for _, s := range d.Sensors {
		if s.Name == name {
			return true
		}
	}
	return false
}
