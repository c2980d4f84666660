package geofence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A square roughly 1km on a side around Lake Wheeler, and a smaller square
// strictly inside it.
var (
	outerFence = Polygon{
		{Lat: 35.7300, Lon: -78.7000},
		{Lat: 35.7300, Lon: -78.6900},
		{Lat: 35.7400, Lon: -78.6900},
		{Lat: 35.7400, Lon: -78.7000},
	}
	innerKeepOut = Polygon{
		{Lat: 35.7340, Lon: -78.6960},
		{Lat: 35.7340, Lon: -78.6940},
		{Lat: 35.7360, Lon: -78.6940},
		{Lat: 35.7360, Lon: -78.6960},
	}
)

func testConfig() Config {
	return Config{
		VehicleType: VehicleCopter,
		MinSpeed:    0,
		MaxSpeed:    10,
		MinAltitude: 5,
		MaxAltitude: 100,
	}
}

func TestPolygonContains(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"center", 35.7350, -78.6950, true},
		{"near edge inside", 35.7301, -78.6999, true},
		{"west of fence", 35.7350, -78.7100, false},
		{"north of fence", 35.7500, -78.6950, false},
		{"far away", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outerFence.Contains(tt.lat, tt.lon))
		})
	}
}

func TestValidatorIncludeExclude(t *testing.T) {
	v := NewValidatorWithFences(testConfig(), []Polygon{outerFence}, []Polygon{innerKeepOut})

	from := Point{Lat: 35.7310, Lon: -78.6990}

	tests := []struct {
		name string
		to   Point
		want bool
	}{
		{"inside include, outside exclude", Point{Lat: 35.7320, Lon: -78.6920}, true},
		{"inside exclude", Point{Lat: 35.7350, Lon: -78.6950}, false},
		{"outside include", Point{Lat: 35.7500, Lon: -78.6950}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, reason := v.ValidateWaypoint(from, tt.to, 30)
			assert.Equal(t, tt.want, valid, reason)
			if !valid {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestValidatorAltitudeBand(t *testing.T) {
	v := NewValidatorWithFences(testConfig(), []Polygon{outerFence}, nil)
	from := Point{Lat: 35.7310, Lon: -78.6990}
	to := Point{Lat: 35.7320, Lon: -78.6920}

	valid, _ := v.ValidateWaypoint(from, to, 30)
	assert.True(t, valid)

	valid, reason := v.ValidateWaypoint(from, to, 150)
	assert.False(t, valid)
	assert.Contains(t, reason, "altitude")

	valid, _ = v.ValidateWaypoint(from, to, 1)
	assert.False(t, valid)
}

func TestValidatorRoverIgnoresAltitude(t *testing.T) {
	config := testConfig()
	config.VehicleType = VehicleRover
	v := NewValidatorWithFences(config, []Polygon{outerFence}, nil)

	valid, _ := v.ValidateWaypoint(Point{Lat: 35.7310, Lon: -78.6990}, Point{Lat: 35.7320, Lon: -78.6920}, 0)
	assert.True(t, valid)
}

func TestValidatorPathCrossing(t *testing.T) {
	config := testConfig()
	config.CheckPaths = true
	v := NewValidatorWithFences(config, []Polygon{outerFence}, []Polygon{innerKeepOut})

	// Both endpoints are legal but the straight line clips the keep-out.
	from := Point{Lat: 35.7350, Lon: -78.6990}
	to := Point{Lat: 35.7350, Lon: -78.6910}

	valid, reason := v.ValidateWaypoint(from, to, 30)
	assert.False(t, valid)
	assert.Contains(t, reason, "path")

	// Same endpoints with path checks off.
	config.CheckPaths = false
	v = NewValidatorWithFences(config, []Polygon{outerFence}, []Polygon{innerKeepOut})
	valid, _ = v.ValidateWaypoint(from, to, 30)
	assert.True(t, valid)
}

func TestValidatorSpeed(t *testing.T) {
	v := NewValidatorWithFences(testConfig(), nil, nil)

	assert.True(t, v.ValidateSpeed(5))
	assert.True(t, v.ValidateSpeed(10))
	assert.False(t, v.ValidateSpeed(10.5))
	assert.False(t, v.ValidateSpeed(-1))
}

func TestValidatorTakeoff(t *testing.T) {
	v := NewValidatorWithFences(testConfig(), []Polygon{outerFence}, nil)

	assert.True(t, v.ValidateTakeoff(35.7350, -78.6950, 30))
	assert.False(t, v.ValidateTakeoff(35.7350, -78.6950, 200))
	assert.False(t, v.ValidateTakeoff(35.7500, -78.6950, 30))
}

func TestReadKML(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Placemark>
      <name>Flight area</name>
      <Polygon>
        <outerBoundaryIs>
          <LinearRing>
            <coordinates>
              -78.7000,35.7300,0
              -78.6900,35.7300,0
              -78.6900,35.7400,0
              -78.7000,35.7400,0
            </coordinates>
          </LinearRing>
        </outerBoundaryIs>
      </Polygon>
    </Placemark>
  </Document>
</kml>`

	path := filepath.Join(t.TempDir(), "fence.kml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	polygons, err := ReadKML(path)
	require.NoError(t, err)
	require.Len(t, polygons, 1)
	require.Len(t, polygons[0], 4)

	assert.True(t, polygons[0].Contains(35.7350, -78.6950))
	assert.False(t, polygons[0].Contains(35.7500, -78.6950))
}

func TestReadKMLErrors(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.kml")
	require.NoError(t, os.WriteFile(empty, []byte(`<kml><Document></Document></kml>`), 0o644))
	_, err := ReadKML(empty)
	assert.Error(t, err)

	_, err = ReadKML(filepath.Join(dir, "missing.kml"))
	assert.Error(t, err)
}

func TestServerHandle(t *testing.T) {
	v := NewValidatorWithFences(testConfig(), []Polygon{outerFence}, []Polygon{innerKeepOut})
	s := NewServer("tcp://127.0.0.1:0", v)

	roundTrip := func(t *testing.T, req wireRequest) wireReply {
		t.Helper()
		payload, err := json.Marshal(req)
		require.NoError(t, err)
		return s.handle(payload)
	}

	t.Run("status", func(t *testing.T) {
		reply := roundTrip(t, wireRequest{Op: opStatus})
		assert.True(t, reply.OK)
	})

	t.Run("waypoint valid", func(t *testing.T) {
		reply := roundTrip(t, wireRequest{
			Op:   opWaypoint,
			From: &wirePoint{Lat: 35.7310, Lon: -78.6990, Alt: 30},
			To:   &wirePoint{Lat: 35.7320, Lon: -78.6920, Alt: 30},
		})
		assert.True(t, reply.Valid, reply.Reason)
	})

	t.Run("waypoint in keep-out", func(t *testing.T) {
		reply := roundTrip(t, wireRequest{
			Op:   opWaypoint,
			From: &wirePoint{Lat: 35.7310, Lon: -78.6990, Alt: 30},
			To:   &wirePoint{Lat: 35.7350, Lon: -78.6950, Alt: 30},
		})
		assert.False(t, reply.Valid)
		assert.NotEmpty(t, reply.Reason)
	})

	t.Run("waypoint missing endpoints", func(t *testing.T) {
		reply := roundTrip(t, wireRequest{Op: opWaypoint})
		assert.False(t, reply.Valid)
	})

	t.Run("speed", func(t *testing.T) {
		assert.True(t, roundTrip(t, wireRequest{Op: opSpeed, Speed: 5}).Valid)
		assert.False(t, roundTrip(t, wireRequest{Op: opSpeed, Speed: 50}).Valid)
	})

	t.Run("takeoff", func(t *testing.T) {
		assert.True(t, roundTrip(t, wireRequest{Op: opTakeoff, Lat: 35.7320, Lon: -78.6920, Alt: 30}).Valid)
		assert.False(t, roundTrip(t, wireRequest{Op: opTakeoff, Lat: 35.7320, Lon: -78.6920, Alt: 500}).Valid)
		// Inside the keep-out.
		assert.False(t, roundTrip(t, wireRequest{Op: opTakeoff, Lat: 35.7350, Lon: -78.6950, Alt: 30}).Valid)
	})

	t.Run("unknown op", func(t *testing.T) {
		reply := roundTrip(t, wireRequest{Op: "reboot"})
		assert.False(t, reply.Valid)
		assert.NotEmpty(t, reply.Reason)
	})

	t.Run("malformed payload", func(t *testing.T) {
		reply := s.handle([]byte(`{not json`))
		assert.False(t, reply.Valid)
	})
}
