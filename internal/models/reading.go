package models

// Reading represents a single stored probe reading
type Reading struct {
	Host      string  `json:"host"`
	ProbeType string  `json:"probe_type"`
	Name      string  `json:"name"`
	Timestamp int64   `json:"timestamp"` // Unix timestamp in milliseconds
	Value     float64 `json:"value"`
	Quality   int     `json:"quality"`
}

// ReadingsInput represents a reading feed file for one aquarium controller
type ReadingsInput struct {
	Host   string       `json:"host"`
	Probes []ProbeInput `json:"probes"`
}

// ProbeInput holds the points recorded by one probe
type ProbeInput struct {
	ProbeType string      `json:"probe_type"`
	Name      string      `json:"name"`
	Points    []DataPoint `json:"points"`
}

// DataPoint represents a single data point in the JSON input
type DataPoint struct {
	Timestamp string  `json:"timestamp"` // ISO 8601 format: "2025-01-01T23:59:12"
	Value     float64 `json:"value"`
	Quality   int     `json:"quality"`
}
