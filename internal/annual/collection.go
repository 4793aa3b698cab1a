package annual

// HourlyCollection is the self-describing record used to export an annual
// hourly series (schedules, hourly ASE percentage).
type HourlyCollection struct {
	Type   string    `json:"type"`
	Header Header    `json:"header"`
	Values []float64 `json:"values"`
}

// Header describes the values of an HourlyCollection.
type Header struct {
	DataType string         `json:"data_type"`
	Unit     string         `json:"unit"`
	Timestep int            `json:"timestep"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewHourlyCollection wraps an annual series.
func NewHourlyCollection(dataType, unit string, timestep int, values []float64, metadata map[string]any) HourlyCollection {
	if timestep < 1 {
		timestep = 1
	}
	return HourlyCollection{
		Type: "HourlyContinuous",
		Header: Header{
			DataType: dataType,
			Unit:     unit,
			Timestep: timestep,
			Metadata: metadata,
		},
		Values: values,
	}
}
