// Package geogrid generates sampling grids around a business location and
// orchestrates rank lookups across them.
package geogrid

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/model"
)

// DegreesPerKM is an approximate conversion factor for latitude degrees to
// kilometers. At mid-latitudes, 1 degree of latitude is approximately 111 km.
const DegreesPerKM = 1.0 / 111.0

// Point is one sampling coordinate of a grid.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Key renders the point as "lat,lng", the form used to correlate provider
// results back to their grid position.
func (p Point) Key() string {
	return fmt.Sprintf("%v,%v", p.Latitude, p.Longitude)
}

// Generate builds a square sampling grid centered on the given coordinate.
// gridSize counts offsets per axis: offsets run from -gridSize/2 to
// +gridSize/2 inclusive, so a gridSize of 5 yields a 5x5 grid and a
// gridSize of 1 yields the center point alone. The outermost ring sits
// radiusKm from the center, with longitude steps widened by cos(lat) so
// spacing stays uniform in kilometers.
func Generate(centerLat, centerLng, radiusKm float64, gridSize int) ([]Point, error) {
	if radiusKm <= 0 {
		return nil, eris.Wrap(model.ErrValidation, "geogrid: radius_km must be positive")
	}
	if gridSize < 1 || gridSize > 15 {
		return nil, eris.Wrap(model.ErrValidation, "geogrid: grid_size must be between 1 and 15")
	}
	if centerLat < -90 || centerLat > 90 || centerLng < -180 || centerLng > 180 {
		return nil, eris.Wrap(model.ErrValidation, "geogrid: center out of range")
	}

	half := gridSize / 2
	if half == 0 {
		return []Point{{Latitude: centerLat, Longitude: centerLng}}, nil
	}

	latStep := radiusKm * DegreesPerKM / float64(half)
	lngStep := radiusKm * DegreesPerKM / math.Cos(centerLat*math.Pi/180) / float64(half)

	points := make([]Point, 0, (2*half+1)*(2*half+1))
	for y := -half; y <= half; y++ {
		for x := -half; x <= half; x++ {
			points = append(points, Point{
				Latitude:  centerLat + float64(y)*latStep,
				Longitude: centerLng + float64(x)*lngStep,
			})
		}
	}
	return points, nil
}
