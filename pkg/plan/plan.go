// Package plan reads QGroundControl .plan files into waypoint sequences.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/openuav/missionkit/pkg/geo"
)

// MAVLink mission command IDs a plan may carry.
const (
	CommandWaypoint       = 16  // MAV_CMD_NAV_WAYPOINT
	CommandReturnToLaunch = 20  // MAV_CMD_NAV_RETURN_TO_LAUNCH
	CommandTakeoff        = 22  // MAV_CMD_NAV_TAKEOFF
	CommandChangeSpeed    = 178 // MAV_CMD_DO_CHANGE_SPEED
)

// Item is one navigation step of a plan. For ReturnToLaunch the waypoint
// coordinate is meaningless; everything else carries a target.
type Item struct {
	Command  int
	Waypoint geo.Waypoint
}

// Plan is a parsed mission plan.
type Plan struct {
	Items []Item
}

// Waypoints returns the coordinates of the position-carrying items, in
// order.
func (p *Plan) Waypoints() []geo.Waypoint {
	var wps []geo.Waypoint
	for _, item := range p.Items {
		if item.Command == CommandReturnToLaunch {
			continue
		}
		wps = append(wps, item.Waypoint)
	}
	return wps
}

type planFile struct {
	FileType string `json:"fileType"`
	Mission  struct {
		Items []planItem `json:"items"`
	} `json:"mission"`
}

type planItem struct {
	Command int       `json:"command"`
	Params  []float64 `json:"params"`
}

// Read parses a QGroundControl .plan file. Navigation items (waypoint,
// takeoff, return-to-launch) become plan items in order; DO_CHANGE_SPEED
// items set the speed applied to all subsequent waypoints.
func Read(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	var doc planFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing plan %s: %w", path, err)
	}
	if doc.FileType != "Plan" {
		return nil, fmt.Errorf("%s: not a QGroundControl plan (fileType %q)", path, doc.FileType)
	}

	var p Plan
	var speed float64 // 0 means vehicle default

	for i, item := range doc.Mission.Items {
		switch item.Command {
		case CommandChangeSpeed:
			// params[1] is the target speed in m/s.
			if len(item.Params) < 2 {
				return nil, fmt.Errorf("%s: item %d: change-speed needs 2 params", path, i)
			}
			speed = item.Params[1]

		case CommandWaypoint, CommandTakeoff:
			if len(item.Params) < 7 {
				return nil, fmt.Errorf("%s: item %d: nav item needs 7 params", path, i)
			}
			c := geo.Coordinate{Lat: item.Params[4], Lon: item.Params[5], Alt: item.Params[6]}
			if !c.Valid() {
				return nil, fmt.Errorf("%s: item %d: coordinate out of bounds", path, i)
			}
			wp := geo.Waypoint{
				Coordinate:       c,
				Speed:            speed,
				AcceptanceRadius: geo.DefaultAcceptanceRadius,
			}
			if item.Command == CommandWaypoint && item.Params[0] > 0 {
				// param 1 is the hold time in seconds.
				wp.HoldTime = time.Duration(item.Params[0] * float64(time.Second))
			}
			p.Items = append(p.Items, Item{Command: item.Command, Waypoint: wp})

		case CommandReturnToLaunch:
			p.Items = append(p.Items, Item{Command: CommandReturnToLaunch})
		}
		// Unknown commands (camera triggers, jumps) are skipped.
	}

	if len(p.Items) == 0 {
		return nil, fmt.Errorf("%s: no navigation items", path)
	}
	return &p, nil
}
