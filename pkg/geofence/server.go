package geofence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-zeromq/zmq4"
)

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "geofence-server"))
	}
}

// Server answers validation requests on a ZeroMQ REP socket. One request is
// handled at a time, matching the REQ/REP lockstep.
type Server struct {
	endpoint  string
	validator *Validator
	logger    *slog.Logger
}

// NewServer returns a server for the given bind endpoint, e.g.
// "tcp://*:14580".
func NewServer(endpoint string, validator *Validator, options ...func(*Server)) *Server {
	s := Server{
		endpoint:  endpoint,
		validator: validator,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Run binds the socket and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(s.endpoint); err != nil {
		return fmt.Errorf("binding %s: %w", s.endpoint, err)
	}
	defer sock.Close()

	s.logger.Info("geofence server listening", slog.String("endpoint", s.endpoint))

	for {
		msg, err := sock.Recv()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			s.logger.Error("recv failed", slog.String("error", err.Error()))
			continue
		}

		reply := s.handle(msg.Bytes())
		payload, err := json.Marshal(reply)
		if err != nil {
			s.logger.Error("encoding reply failed", slog.String("error", err.Error()))
			payload = []byte(`{"valid":false,"reason":"internal error"}`)
		}
		if err := sock.Send(zmq4.NewMsg(payload)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("send failed", slog.String("error", err.Error()))
		}
	}
}

func (s *Server) handle(payload []byte) wireReply {
	var req wireRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn("malformed request", slog.String("error", err.Error()))
		return wireReply{Reason: "malformed request"}
	}

	switch req.Op {
	case opStatus:
		return wireReply{OK: true, Valid: true}

	case opWaypoint:
		if req.From == nil || req.To == nil {
			return wireReply{Reason: "waypoint request needs from and to"}
		}
		valid, reason := s.validator.ValidateWaypoint(
			Point{Lat: req.From.Lat, Lon: req.From.Lon},
			Point{Lat: req.To.Lat, Lon: req.To.Lon},
			req.To.Alt,
		)
		s.logger.Debug("waypoint validated",
			slog.Bool("valid", valid),
			slog.Float64("lat", req.To.Lat),
			slog.Float64("lon", req.To.Lon))
		return wireReply{Valid: valid, Reason: reason}

	case opSpeed:
		return wireReply{Valid: s.validator.ValidateSpeed(req.Speed)}

	case opTakeoff:
		return wireReply{Valid: s.validator.ValidateTakeoff(req.Lat, req.Lon, req.Alt)}
	}

	return wireReply{Reason: fmt.Sprintf("unknown op %q", req.Op)}
}
