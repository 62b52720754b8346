package kb

import "github.com/signalsfoundry/airtraffic-sim/model"

// DefaultHubs is a small built-in registry of major hubs, used when no
// airport dataset is configured.
func DefaultHubs() []model.Airport {
	return []model.Airport{
		{ID: "1", Name: "Hartsfield-Jackson Atlanta", City: "Atlanta", Country: "US", IATA: "ATL", ICAO: "KATL", Coordinate: model.Coordinate{Lat: 33.6407, Lon: -84.4277}},
		{ID: "2", Name: "Los Angeles International", City: "Los Angeles", Country: "US", IATA: "LAX", ICAO: "KLAX", Coordinate: model.Coordinate{Lat: 33.9416, Lon: -118.4085}},
		{ID: "3", Name: "John F Kennedy International", City: "New York", Country: "US", IATA: "JFK", ICAO: "KJFK", Coordinate: model.Coordinate{Lat: 40.6413, Lon: -73.7781}},
		{ID: "4", Name: "London Heathrow", City: "London", Country: "UK", IATA: "LHR", ICAO: "EGLL", Coordinate: model.Coordinate{Lat: 51.4700, Lon: -0.4543}},
		{ID: "5", Name: "Charles de Gaulle", City: "Paris", Country: "FR", IATA: "CDG", ICAO: "LFPG", Coordinate: model.Coordinate{Lat: 49.0097, Lon: 2.5479}},
		{ID: "6", Name: "Tokyo Haneda", City: "Tokyo", Country: "JP", IATA: "HND", ICAO: "RJTT", Coordinate: model.Coordinate{Lat: 35.5494, Lon: 139.7798}},
		{ID: "7", Name: "Dubai International", City: "Dubai", Country: "AE", IATA: "DXB", ICAO: "OMDB", Coordinate: model.Coordinate{Lat: 25.2532, Lon: 55.3657}},
		{ID: "8", Name: "Singapore Changi", City: "Singapore", Country: "SG", IATA: "SIN", ICAO: "WSSS", Coordinate: model.Coordinate{Lat: 1.3644, Lon: 103.9915}},
		{ID: "9", Name: "Sydney Kingsford Smith", City: "Sydney", Country: "AU", IATA: "SYD", ICAO: "YSSY", Coordinate: model.Coordinate{Lat: -33.9399, Lon: 151.1753}},
		{ID: "10", Name: "Sao Paulo Guarulhos", City: "Sao Paulo", Country: "BR", IATA: "GRU", ICAO: "SBGR", Coordinate: model.Coordinate{Lat: -23.4356, Lon: -46.4731}},
		{ID: "11", Name: "Dallas/Fort Worth International", City: "Dallas", Country: "US", IATA: "DFW", ICAO: "KDFW", Coordinate: model.Coordinate{Lat: 32.8998, Lon: -97.0403}},
		{ID: "12", Name: "Seattle-Tacoma International", City: "Seattle", Country: "US", IATA: "SEA", ICAO: "KSEA", Coordinate: model.Coordinate{Lat: 47.4502, Lon: -122.3088}},
	}
}
