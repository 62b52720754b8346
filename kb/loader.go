package kb

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/airtraffic-sim/model"
)

// OpenFlights airports.dat column layout.
const (
	colID = iota
	colName
	colCity
	colCountry
	colIATA
	colICAO
	colLat
	colLon
	minColumns
)

// LoadOpenFlightsCSV parses an OpenFlights airports.dat stream. Rows with
// too few columns are ignored; rows whose coordinates do not parse are kept
// with NaN coordinates so that NewAirportIndex accounts for them.
func LoadOpenFlightsCSV(r io.Reader) ([]model.Airport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var out []model.Airport
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("LoadOpenFlightsCSV: %w", err)
		}
		if len(rec) < minColumns {
			continue
		}
		out = append(out, model.Airport{
			ID:      field(rec[colID]),
			Name:    field(rec[colName]),
			City:    field(rec[colCity]),
			Country: field(rec[colCountry]),
			IATA:    field(rec[colIATA]),
			ICAO:    field(rec[colICAO]),
			Coordinate: model.Coordinate{
				Lat: parseFloat(rec[colLat]),
				Lon: parseFloat(rec[colLon]),
			},
		})
	}
	return out, nil
}

// airportJSON accepts the field spellings seen in airports-lite style
// datasets.
type airportJSON struct {
	ID        json.RawMessage `json:"id"`
	Name      string          `json:"name"`
	City      string          `json:"city"`
	Country   string          `json:"country"`
	IATA      string          `json:"iata"`
	ICAO      string          `json:"icao"`
	Lat       *float64        `json:"lat"`
	Lon       *float64        `json:"lon"`
	Latitude  *float64        `json:"latitude"`
	Longitude *float64        `json:"longitude"`
}

// LoadAirportsJSON parses a JSON array of airports. Each element is either
// an object or an airports.dat-style row array.
func LoadAirportsJSON(r io.Reader) ([]model.Airport, error) {
	var rows []json.RawMessage
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("LoadAirportsJSON: decode failed: %w", err)
	}

	out := make([]model.Airport, 0, len(rows))
	for _, raw := range rows {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var cols []any
			if err := json.Unmarshal(raw, &cols); err != nil || len(cols) < minColumns {
				continue
			}
			rec := make([]string, len(cols))
			for i, c := range cols {
				rec[i] = stringify(c)
			}
			out = append(out, model.Airport{
				ID: rec[colID], Name: rec[colName], City: rec[colCity], Country: rec[colCountry],
				IATA: field(rec[colIATA]), ICAO: field(rec[colICAO]),
				Coordinate: model.Coordinate{Lat: parseFloat(rec[colLat]), Lon: parseFloat(rec[colLon])},
			})
			continue
		}

		var a airportJSON
		if err := json.Unmarshal(raw, &a); err != nil {
			continue
		}
		out = append(out, model.Airport{
			ID:      strings.Trim(string(a.ID), `"`),
			Name:    a.Name,
			City:    a.City,
			Country: a.Country,
			IATA:    a.IATA,
			ICAO:    a.ICAO,
			Coordinate: model.Coordinate{
				Lat: firstOf(a.Lat, a.Latitude),
				Lon: firstOf(a.Lon, a.Longitude),
			},
		})
	}
	return out, nil
}

// OpenAirportFile loads airports from path. ".json" files are parsed as
// JSON, anything else as OpenFlights CSV; a trailing ".zst" is decompressed
// first.
func OpenAirportFile(path string) ([]model.Airport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("OpenAirportFile: %w", err)
		}
		defer dec.Close()
		r = dec
		name = strings.TrimSuffix(name, ".zst")
	}

	if filepath.Ext(name) == ".json" {
		return LoadAirportsJSON(r)
	}
	return LoadOpenFlightsCSV(r)
}

func field(s string) string {
	s = strings.TrimSpace(s)
	if s == `\N` {
		return ""
	}
	return s
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func firstOf(vs ...*float64) float64 {
	for _, v := range vs {
		if v != nil {
			return *v
		}
	}
	return math.NaN()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
