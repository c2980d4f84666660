package mavlink

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/gomavlib/v3"
)

// ParseEndpoint maps a connection URI onto a gomavlib endpoint.
//
// Supported forms:
//
//	udp://host:port      listen for the autopilot's stream (SITL default)
//	tcp://host:port      dial the autopilot
//	serial://device:baud local serial link
func ParseEndpoint(uri string) (gomavlib.EndpointConf, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("invalid connection URI %q: missing scheme", uri)
	}

	switch scheme {
	case "udp":
		if _, _, ok := strings.Cut(rest, ":"); !ok {
			return nil, fmt.Errorf("invalid UDP endpoint %q: expected host:port", rest)
		}
		return gomavlib.EndpointUDPServer{Address: rest}, nil

	case "tcp":
		if _, _, ok := strings.Cut(rest, ":"); !ok {
			return nil, fmt.Errorf("invalid TCP endpoint %q: expected host:port", rest)
		}
		return gomavlib.EndpointTCPClient{Address: rest}, nil

	case "serial":
		device, baudStr, ok := strings.Cut(rest, ":")
		if !ok || device == "" {
			return nil, fmt.Errorf("invalid serial endpoint %q: expected device:baud", rest)
		}
		baud, err := strconv.Atoi(baudStr)
		if err != nil || baud <= 0 {
			return nil, fmt.Errorf("invalid serial baud rate %q", baudStr)
		}
		return gomavlib.EndpointSerial{Device: device, Baud: baud}, nil
	}

	return nil, fmt.Errorf("unsupported connection scheme %q", scheme)
}
