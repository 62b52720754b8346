package model

// Airport is a single registry row. IATA and ICAO are optional.
type Airport struct {
	ID      string `json:"id" msgpack:"id"`
	Name    string `json:"name,omitempty" msgpack:"name,omitempty"`
	City    string `json:"city,omitempty" msgpack:"city,omitempty"`
	Country string `json:"country,omitempty" msgpack:"country,omitempty"`
	IATA    string `json:"iata,omitempty" msgpack:"iata,omitempty"`
	ICAO    string `json:"icao,omitempty" msgpack:"icao,omitempty"`

	Coordinate
}
