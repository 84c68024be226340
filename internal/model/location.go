package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// LocationSpec is where a keyword's searches are anchored: either a named
// location resolved by the provider ("Denver, Colorado, United States") or
// an exact coordinate with a map zoom level.
type LocationSpec struct {
	Name string `json:"name,omitempty"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Zoom      int     `json:"zoom,omitempty"`

	coordinate bool
}

// DefaultZoom is used when a coordinate location omits its zoom level.
const DefaultZoom = 15

// LocationAt returns a coordinate-anchored LocationSpec.
func LocationAt(lat, lng float64, zoom int) LocationSpec {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return LocationSpec{Latitude: lat, Longitude: lng, Zoom: zoom, coordinate: true}
}

// LocationNamed returns a name-anchored LocationSpec.
func LocationNamed(name string) LocationSpec {
	return LocationSpec{Name: name}
}

// IsCoordinate reports whether the location is coordinate-anchored.
func (l LocationSpec) IsCoordinate() bool { return l.coordinate }

// ParseLocation interprets the wire form of a location. Strings starting
// with "@" are coordinates, "@lat,lng,15z" or "@lat,lng"; anything else is
// a location name passed to the provider verbatim.
func ParseLocation(s string) (LocationSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LocationSpec{}, eris.Wrap(ErrValidation, "model: location is required")
	}
	if !strings.HasPrefix(s, "@") {
		return LocationNamed(s), nil
	}

	parts := strings.Split(s[1:], ",")
	if len(parts) < 2 || len(parts) > 3 {
		return LocationSpec{}, eris.Wrapf(ErrValidation, "model: malformed coordinate location %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return LocationSpec{}, eris.Wrapf(ErrValidation, "model: bad latitude in %q", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return LocationSpec{}, eris.Wrapf(ErrValidation, "model: bad longitude in %q", s)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return LocationSpec{}, eris.Wrapf(ErrValidation, "model: coordinate out of range in %q", s)
	}

	zoom := DefaultZoom
	if len(parts) == 3 {
		z := strings.TrimSuffix(strings.TrimSpace(parts[2]), "z")
		zoom, err = strconv.Atoi(z)
		if err != nil || zoom <= 0 {
			return LocationSpec{}, eris.Wrapf(ErrValidation, "model: bad zoom in %q", s)
		}
	}
	return LocationAt(lat, lng, zoom), nil
}

// String renders the wire form accepted by ParseLocation.
func (l LocationSpec) String() string {
	if !l.coordinate {
		return l.Name
	}
	return fmt.Sprintf("@%v,%v,%dz", l.Latitude, l.Longitude, l.Zoom)
}

func (l LocationSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *LocationSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: location must be a string")
	}
	parsed, err := ParseLocation(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
