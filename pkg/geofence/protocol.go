package geofence

// Wire ops for the request/reply protocol.
const (
	opStatus   = "status"
	opWaypoint = "waypoint"
	opSpeed    = "speed"
	opTakeoff  = "takeoff"
)

type wirePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

type wireRequest struct {
	Op    string     `json:"op"`
	From  *wirePoint `json:"from,omitempty"`
	To    *wirePoint `json:"to,omitempty"`
	Speed float64    `json:"speed,omitempty"`
	Alt   float64    `json:"alt,omitempty"`
	Lat   float64    `json:"lat,omitempty"`
	Lon   float64    `json:"lon,omitempty"`
}

type wireReply struct {
	OK     bool   `json:"ok,omitempty"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}
