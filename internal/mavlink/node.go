package mavlink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/openuav/missionkit/pkg/geo"
	"github.com/openuav/missionkit/pkg/telemetry"
)

const (
	outSystemID = 254 // ground control range
	ackTimeout  = 5 * time.Second
	updateDepth = 64
)

// WithLogger sets the logger for the node.
func WithLogger(logger *slog.Logger) func(*Node) {
	return func(n *Node) {
		n.logger = logger.With(slog.String("endpoint", n.uri))
	}
}

// Node is the gomavlib-backed Adapter implementation.
type Node struct {
	uri    string
	logger *slog.Logger

	node    *gomavlib.Node
	updates chan Update

	// Commands are serialized: one on the wire at a time.
	cmdMu sync.Mutex

	ackMu   sync.Mutex
	ackWait map[common.MAV_CMD]chan common.MAV_RESULT

	targetSystem atomic.Uint32 // learned from the first heartbeat
	connected    atomic.Bool
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

// NewNode returns an unconnected node for the given connection URI.
func NewNode(uri string, options ...func(*Node)) *Node {
	n := Node{
		uri:     uri,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		updates: make(chan Update, updateDepth),
		ackWait: make(map[common.MAV_CMD]chan common.MAV_RESULT),
	}

	for _, option := range options {
		option(&n)
	}

	return &n
}

// Connect opens the endpoint and starts the decode loop.
func (n *Node) Connect(ctx context.Context) error {
	endpoint, err := ParseEndpoint(n.uri)
	if err != nil {
		return err
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   []gomavlib.EndpointConf{endpoint},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: outSystemID,
	})
	if err != nil {
		return fmt.Errorf("opening endpoint %s: %w", n.uri, err)
	}

	n.node = node
	n.connected.Store(true)

	n.wg.Add(1)
	go n.eventLoop()

	n.logger.Info("mavlink endpoint open")
	return nil
}

// Close shuts down the node and closes the updates channel.
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		n.connected.Store(false)
		if n.node != nil {
			n.node.Close()
		}
		n.wg.Wait()
		close(n.updates)
	})
	return nil
}

// Updates yields decoded telemetry until Close.
func (n *Node) Updates() <-chan Update { return n.updates }

func (n *Node) eventLoop() {
	defer n.wg.Done()

	for evt := range n.node.Events() {
		frm, ok := evt.(*gomavlib.EventFrame)
		if !ok {
			continue
		}

		switch msg := frm.Message().(type) {
		case *common.MessageHeartbeat:
			if msg.Type == common.MAV_TYPE_GCS {
				continue // another ground station, not our vehicle
			}
			n.targetSystem.CompareAndSwap(0, uint32(frm.SystemID()))
			n.emit(ModeUpdate{
				FlightMode: flightModeName(msg),
				Armed:      msg.BaseMode&common.MAV_MODE_FLAG_SAFETY_ARMED != 0,
			})

		case *common.MessageGlobalPositionInt:
			n.emit(PositionUpdate{
				Lat:    float64(msg.Lat) / 1e7,
				Lon:    float64(msg.Lon) / 1e7,
				RelAlt: float64(msg.RelativeAlt) / 1000,
			})
			n.emit(VelocityUpdate{Velocity: geo.VectorNED{
				North: float64(msg.Vx) / 100,
				East:  float64(msg.Vy) / 100,
				Down:  float64(msg.Vz) / 100,
			}})
			if msg.Hdg != math.MaxUint16 {
				n.emit(HeadingUpdate{Heading: float64(msg.Hdg) / 100})
			}

		case *common.MessageVfrHud:
			n.emit(SpeedUpdate{
				Groundspeed: float64(msg.Groundspeed),
				Airspeed:    float64(msg.Airspeed),
				ClimbRate:   float64(msg.Climb),
			})

		case *common.MessageSysStatus:
			n.emit(BatteryUpdate{
				Voltage:    float64(msg.VoltageBattery) / 1000,
				Current:    float64(msg.CurrentBattery) / 100,
				Percentage: float64(msg.BatteryRemaining),
			})

		case *common.MessageGpsRawInt:
			n.emit(GPSUpdate{
				FixType:    int(msg.FixType),
				Satellites: int(msg.SatellitesVisible),
				Lat:        float64(msg.Lat) / 1e7,
				Lon:        float64(msg.Lon) / 1e7,
			})

		case *common.MessageExtendedSysState:
			landed := landedState(msg.LandedState)
			n.emit(LandedUpdate{
				Landed: landed,
				InAir:  landed == telemetry.LandedStateInAir || landed == telemetry.LandedStateTakingOff,
			})

		case *common.MessageHomePosition:
			n.emit(HomeUpdate{
				Lat: float64(msg.Latitude) / 1e7,
				Lon: float64(msg.Longitude) / 1e7,
			})

		case *common.MessageCommandAck:
			n.dispatchAck(msg.Command, msg.Result)
		}
	}
}

// emit drops updates when the consumer is behind; telemetry is a stream of
// current values, stale ones have no use.
func (n *Node) emit(u Update) {
	select {
	case n.updates <- u:
	default:
		n.logger.Debug("telemetry update dropped, consumer behind")
	}
}

func (n *Node) dispatchAck(cmd common.MAV_CMD, result common.MAV_RESULT) {
	n.ackMu.Lock()
	ch, ok := n.ackWait[cmd]
	if ok {
		delete(n.ackWait, cmd)
	}
	n.ackMu.Unlock()

	if ok {
		ch <- result
	}
}

// command sends a COMMAND_LONG and waits for the matching acknowledgement.
func (n *Node) command(ctx context.Context, cmd common.MAV_CMD, params [7]float32) error {
	if !n.connected.Load() {
		return ErrNotConnected
	}

	n.cmdMu.Lock()
	defer n.cmdMu.Unlock()

	ackCh := make(chan common.MAV_RESULT, 1)
	n.ackMu.Lock()
	n.ackWait[cmd] = ackCh
	n.ackMu.Unlock()

	err := n.node.WriteMessageAll(&common.MessageCommandLong{
		TargetSystem:    byte(n.targetSystem.Load()),
		TargetComponent: 1,
		Command:         cmd,
		Param1:          params[0],
		Param2:          params[1],
		Param3:          params[2],
		Param4:          params[3],
		Param5:          params[4],
		Param6:          params[5],
		Param7:          params[6],
	})
	if err != nil {
		n.ackMu.Lock()
		delete(n.ackWait, cmd)
		n.ackMu.Unlock()
		return fmt.Errorf("sending command %v: %w", cmd, err)
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()

	select {
	case result := <-ackCh:
		if result != common.MAV_RESULT_ACCEPTED && result != common.MAV_RESULT_IN_PROGRESS {
			return fmt.Errorf("%w: %v result %v", ErrCommandRejected, cmd, result)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %v", ErrAckTimeout, cmd)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Node) Arm(ctx context.Context) error {
	return n.command(ctx, common.MAV_CMD_COMPONENT_ARM_DISARM, [7]float32{1})
}

func (n *Node) Disarm(ctx context.Context, force bool) error {
	params := [7]float32{0}
	if force {
		params[1] = 21196 // MAVLink force-disarm magic
	}
	return n.command(ctx, common.MAV_CMD_COMPONENT_ARM_DISARM, params)
}

func (n *Node) Takeoff(ctx context.Context, altitude float64) error {
	return n.command(ctx, common.MAV_CMD_NAV_TAKEOFF, [7]float32{6: float32(altitude)})
}

func (n *Node) Land(ctx context.Context) error {
	return n.command(ctx, common.MAV_CMD_NAV_LAND, [7]float32{})
}

func (n *Node) ReturnToLaunch(ctx context.Context) error {
	return n.command(ctx, common.MAV_CMD_NAV_RETURN_TO_LAUNCH, [7]float32{})
}

func (n *Node) Hold(ctx context.Context) error {
	return n.command(ctx, common.MAV_CMD_NAV_LOITER_UNLIM, [7]float32{})
}

func (n *Node) SetMaximumSpeed(ctx context.Context, speed float64) error {
	return n.command(ctx, common.MAV_CMD_DO_CHANGE_SPEED, [7]float32{1, float32(speed), -1})
}

func (n *Node) StartOrbit(ctx context.Context, center geo.Coordinate, radius, speed float64, clockwise bool) error {
	r := radius
	if !clockwise {
		r = -radius // DO_ORBIT: negative radius orbits counter-clockwise
	}
	return n.command(ctx, common.MAV_CMD_DO_ORBIT, [7]float32{
		float32(r),
		float32(speed),
		float32(common.ORBIT_YAW_BEHAVIOUR_HOLD_FRONT_TO_CIRCLE_CENTER),
		0,
		float32(center.Lat),
		float32(center.Lon),
		float32(center.Alt),
	})
}

func (n *Node) GotoLocation(ctx context.Context, c geo.Coordinate, yaw float64) error {
	if !n.connected.Load() {
		return ErrNotConnected
	}

	typeMask := common.POSITION_TARGET_TYPEMASK_VX_IGNORE |
		common.POSITION_TARGET_TYPEMASK_VY_IGNORE |
		common.POSITION_TARGET_TYPEMASK_VZ_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AX_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AY_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
		common.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE
	yawRad := float32(yaw * math.Pi / 180)
	if math.IsNaN(yaw) {
		typeMask |= common.POSITION_TARGET_TYPEMASK_YAW_IGNORE
		yawRad = 0
	}

	n.cmdMu.Lock()
	defer n.cmdMu.Unlock()

	err := n.node.WriteMessageAll(&common.MessageSetPositionTargetGlobalInt{
		TargetSystem:    byte(n.targetSystem.Load()),
		TargetComponent: 1,
		CoordinateFrame: common.MAV_FRAME_GLOBAL_RELATIVE_ALT_INT,
		TypeMask:        typeMask,
		LatInt:          int32(c.Lat * 1e7),
		LonInt:          int32(c.Lon * 1e7),
		Alt:             float32(c.Alt),
		Yaw:             yawRad,
	})
	if err != nil {
		return fmt.Errorf("sending position setpoint: %w", err)
	}
	return nil
}

func (n *Node) SetVelocityNED(ctx context.Context, v geo.VectorNED, yaw float64) error {
	if !n.connected.Load() {
		return ErrNotConnected
	}

	typeMask := common.POSITION_TARGET_TYPEMASK_X_IGNORE |
		common.POSITION_TARGET_TYPEMASK_Y_IGNORE |
		common.POSITION_TARGET_TYPEMASK_Z_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AX_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AY_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
		common.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE
	yawRad := float32(yaw * math.Pi / 180)
	if math.IsNaN(yaw) {
		typeMask |= common.POSITION_TARGET_TYPEMASK_YAW_IGNORE
		yawRad = 0
	}

	n.cmdMu.Lock()
	defer n.cmdMu.Unlock()

	err := n.node.WriteMessageAll(&common.MessageSetPositionTargetLocalNed{
		TargetSystem:    byte(n.targetSystem.Load()),
		TargetComponent: 1,
		CoordinateFrame: common.MAV_FRAME_LOCAL_NED,
		TypeMask:        typeMask,
		Vx:              float32(v.North),
		Vy:              float32(v.East),
		Vz:              float32(v.Down),
		Yaw:             yawRad,
	})
	if err != nil {
		return fmt.Errorf("sending velocity setpoint: %w", err)
	}
	return nil
}

func landedState(s common.MAV_LANDED_STATE) telemetry.LandedState {
	switch s {
	case common.MAV_LANDED_STATE_ON_GROUND:
		return telemetry.LandedStateOnGround
	case common.MAV_LANDED_STATE_IN_AIR:
		return telemetry.LandedStateInAir
	case common.MAV_LANDED_STATE_TAKEOFF:
		return telemetry.LandedStateTakingOff
	case common.MAV_LANDED_STATE_LANDING:
		return telemetry.LandedStateLanding
	}
	return telemetry.LandedStateUnknown
}

// flightModeName decodes the PX4 main-mode byte from the heartbeat custom
// mode. Other stacks fall back to a numeric mode.
func flightModeName(hb *common.MessageHeartbeat) string {
	if hb.BaseMode&common.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED == 0 {
		return "UNKNOWN"
	}
	switch (hb.CustomMode >> 16) & 0xff {
	case 1:
		return "MANUAL"
	case 2:
		return "ALTCTL"
	case 3:
		return "POSCTL"
	case 4:
		return "AUTO"
	case 5:
		return "ACRO"
	case 6:
		return "OFFBOARD"
	case 7:
		return "STABILIZED"
	}
	return fmt.Sprintf("MODE(%d)", hb.CustomMode)
}
