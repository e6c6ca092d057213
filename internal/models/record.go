package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RawRecord is a single row of the active calls feed as published by Dallas Open Data.
// Every field is free text and may be missing.
type RawRecord struct {
	IncidentNumber FlexString `json:"incident_number"`
	Division       FlexString `json:"division"`
	NatureOfCall   FlexString `json:"nature_of_call"`
	Priority       FlexString `json:"priority"`
	Date           FlexString `json:"date"`
	Time           FlexString `json:"time"`
	UnitNumber     FlexString `json:"unit_number"`
	Block          FlexString `json:"block"`
	Location       FlexString `json:"location"`
	Beat           FlexString `json:"beat"`
	ReportingArea  FlexString `json:"reporting_area"`
	Status         FlexString `json:"status"`
}

// FlexString is a string that also accepts JSON numbers, booleans and null,
// so a single malformed column does not reject the whole feed.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*f = FlexString(str)
		return nil
	}

	// Anything else (numbers, booleans, nested values) is kept as its raw text.
	*f = FlexString(strings.Trim(string(data), `"`))
	return nil
}

// String returns the underlying value.
func (f FlexString) String() string {
	return string(f)
}
