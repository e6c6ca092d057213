package models

// CallView is the externally visible shape of an active call: the raw record
// fields plus the derived address and whatever coordinates the cache holds for it.
type CallView struct {
	IncidentNumber string   `json:"incidentNumber"`
	Division       string   `json:"division"`
	NatureOfCall   string   `json:"natureOfCall"`
	Priority       string   `json:"priority"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	UnitNumber     string   `json:"unitNumber"`
	Block          string   `json:"block"`
	Location       string   `json:"location"`
	Beat           string   `json:"beat"`
	ReportingArea  string   `json:"reportingArea"`
	Status         string   `json:"status"`
	Address        *string  `json:"address"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	GeocodeLabel   string   `json:"geocodeLabel"`
}

// Mapped reports whether the call carries both coordinates.
func (c CallView) Mapped() bool {
	return c.Lat != nil && c.Lon != nil
}
