package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlan = `{
  "fileType": "Plan",
  "groundStation": "QGroundControl",
  "version": 1,
  "mission": {
    "cruiseSpeed": 15,
    "items": [
      {
        "command": 22,
        "params": [0, 0, 0, null, 35.7275, -78.6960, 30]
      },
      {
        "command": 178,
        "params": [1, 5, -1, 0, 0, 0, 0]
      },
      {
        "command": 16,
        "params": [0, 0, 0, null, 35.7280, -78.6955, 30]
      },
      {
        "command": 16,
        "params": [10, 0, 0, null, 35.7285, -78.6950, 25]
      },
      {
        "command": 20,
        "params": [0, 0, 0, 0, 0, 0, 0]
      }
    ]
  }
}`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mission.plan")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead(t *testing.T) {
	p, err := Read(writePlan(t, samplePlan))
	require.NoError(t, err)
	require.Len(t, p.Items, 4)

	assert.Equal(t, CommandTakeoff, p.Items[0].Command)
	assert.InDelta(t, 30, p.Items[0].Waypoint.Coordinate.Alt, 1e-9)
	assert.Zero(t, p.Items[0].Waypoint.Speed) // before the speed change

	assert.Equal(t, CommandWaypoint, p.Items[1].Command)
	assert.InDelta(t, 5, p.Items[1].Waypoint.Speed, 1e-9) // after DO_CHANGE_SPEED
	assert.Zero(t, p.Items[1].Waypoint.HoldTime)

	assert.Equal(t, 10*time.Second, p.Items[2].Waypoint.HoldTime)
	assert.InDelta(t, 25, p.Items[2].Waypoint.Coordinate.Alt, 1e-9)

	assert.Equal(t, CommandReturnToLaunch, p.Items[3].Command)
}

func TestWaypoints(t *testing.T) {
	p, err := Read(writePlan(t, samplePlan))
	require.NoError(t, err)

	// RTL carries no coordinate and is excluded.
	wps := p.Waypoints()
	require.Len(t, wps, 3)
	assert.InDelta(t, 35.7275, wps[0].Coordinate.Lat, 1e-9)
	assert.InDelta(t, 35.7285, wps[2].Coordinate.Lat, 1e-9)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"wrong file type", `{"fileType": "GeoFence", "mission": {"items": []}}`},
		{"malformed json", `{not json`},
		{"no nav items", `{"fileType": "Plan", "mission": {"items": [{"command": 530, "params": [0,0,0,0,0,0,0]}]}}`},
		{"short params", `{"fileType": "Plan", "mission": {"items": [{"command": 16, "params": [0, 0]}]}}`},
		{"bad coordinate", `{"fileType": "Plan", "mission": {"items": [{"command": 16, "params": [0, 0, 0, 0, 123.0, 500.0, 10]}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(writePlan(t, tt.content))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Read(filepath.Join(t.TempDir(), "nope.plan"))
		assert.Error(t, err)
	})
}
