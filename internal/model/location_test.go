package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocationName(t *testing.T) {
	loc, err := ParseLocation("Denver, Colorado, United States")
	require.NoError(t, err)
	assert.False(t, loc.IsCoordinate())
	assert.Equal(t, "Denver, Colorado, United States", loc.String())
}

func TestParseLocationCoordinate(t *testing.T) {
	loc, err := ParseLocation("@39.7392,-104.9903,13z")
	require.NoError(t, err)
	require.True(t, loc.IsCoordinate())
	assert.InDelta(t, 39.7392, loc.Latitude, 1e-9)
	assert.InDelta(t, -104.9903, loc.Longitude, 1e-9)
	assert.Equal(t, 13, loc.Zoom)
	assert.Equal(t, "@39.7392,-104.9903,13z", loc.String())
}

func TestParseLocationDefaultZoom(t *testing.T) {
	loc, err := ParseLocation("@40.0,-105.0")
	require.NoError(t, err)
	assert.Equal(t, DefaultZoom, loc.Zoom)
}

func TestParseLocationInvalid(t *testing.T) {
	for _, in := range []string{"", "@", "@only-lat", "@1,2,3,4", "@91,0", "@0,181", "@a,b,15z", "@1,2,xz"} {
		_, err := ParseLocation(in)
		assert.True(t, errors.Is(err, ErrValidation), "input %q", in)
	}
}

func TestLocationSpecJSONRoundTrip(t *testing.T) {
	orig := LocationAt(39.5, -105.25, 15)
	data, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.Equal(t, `"@39.5,-105.25,15z"`, string(data))

	var back LocationSpec
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, orig, back)
}
