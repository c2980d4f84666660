package geofence

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// kml mirrors just enough of the KML schema to pull polygon rings out of a
// standard geofence file.
type kml struct {
	Document struct {
		Placemarks []kmlPlacemark `xml:"Placemark"`
	} `xml:"Document"`
	Placemarks []kmlPlacemark `xml:"Placemark"` // files without a Document wrapper
}

type kmlPlacemark struct {
	Polygon struct {
		OuterBoundary struct {
			LinearRing struct {
				Coordinates string `xml:"coordinates"`
			} `xml:"LinearRing"`
		} `xml:"outerBoundaryIs"`
	} `xml:"Polygon"`
}

// ReadKML parses every polygon in a KML file. Coordinates are WGS84
// "lon,lat[,alt]" triples separated by whitespace.
func ReadKML(path string) ([]Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geofence file: %w", err)
	}

	var doc kml
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing KML %s: %w", path, err)
	}

	placemarks := doc.Document.Placemarks
	placemarks = append(placemarks, doc.Placemarks...)

	var polygons []Polygon
	for _, pm := range placemarks {
		coords := strings.TrimSpace(pm.Polygon.OuterBoundary.LinearRing.Coordinates)
		if coords == "" {
			continue
		}
		polygon, err := parseCoordinates(coords)
		if err != nil {
			return nil, fmt.Errorf("parsing KML %s: %w", path, err)
		}
		if len(polygon) >= 3 {
			polygons = append(polygons, polygon)
		}
	}

	if len(polygons) == 0 {
		return nil, fmt.Errorf("no polygons found in %s", path)
	}
	return polygons, nil
}

func parseCoordinates(s string) (Polygon, error) {
	var polygon Polygon
	for _, triple := range strings.Fields(s) {
		parts := strings.Split(triple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed coordinate %q", triple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed latitude %q", parts[1])
		}
		polygon = append(polygon, Point{Lat: lat, Lon: lon})
	}
	return polygon, nil
}
