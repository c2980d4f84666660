package mavlink

import (
	"testing"

	"github.com/bluenviron/gomavlib/v3"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		uri  string
		want gomavlib.EndpointConf
	}{
		{"udp://127.0.0.1:14550", gomavlib.EndpointUDPServer{Address: "127.0.0.1:14550"}},
		{"tcp://10.0.0.4:5760", gomavlib.EndpointTCPClient{Address: "10.0.0.4:5760"}},
		{"serial:///dev/ttyUSB0:57600", gomavlib.EndpointSerial{Device: "/dev/ttyUSB0", Baud: 57600}},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseEndpoint(tt.uri)
			if err != nil {
				t.Fatalf("ParseEndpoint(%q): %v", tt.uri, err)
			}
			if got != tt.want {
				t.Errorf("ParseEndpoint(%q) = %#v, want %#v", tt.uri, got, tt.want)
			}
		})
	}
}

func TestParseEndpointInvalid(t *testing.T) {
	bad := []string{
		"",
		"udp:127.0.0.1:14550", // missing //
		"udp://nohostport",
		"serial:///dev/ttyUSB0",      // missing baud
		"serial:///dev/ttyUSB0:fast", // non-numeric baud
		"ftp://host:21",
	}

	for _, uri := range bad {
		if _, err := ParseEndpoint(uri); err == nil {
			t.Errorf("ParseEndpoint(%q): expected error", uri)
		}
	}
}
