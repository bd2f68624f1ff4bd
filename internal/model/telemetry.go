package model

import "time"

// Column names a numeric column of the telemetry and feature tables. The
// values match the CSV headers and the derived-column names used in configs.
type Column string

const (
	ColXError     Column = "x_error (m)"
	ColYError     Column = "y_error (m)"
	ColZError     Column = "z_error (m)"
	ColClockError Column = "satclockerror (m)"

	ColRadialError Column = "radial_error_m"
	ColDX          Column = "dx"
	ColDY          Column = "dy"
	ColDZ          Column = "dz"
	ColDClock      Column = "dclock"

	ColRadialLag1  Column = "radial_lag1"
	ColRadialDiff1 Column = "radial_diff1"
	ColRadialRoll3 Column = "radial_roll3"
	ColRadialRoll6 Column = "radial_roll6"

	ColHourSin   Column = "hour_sin"
	ColHourCos   Column = "hour_cos"
	ColDaySin    Column = "day_sin"
	ColDayCos    Column = "day_cos"
	ColIsWeekend Column = "is_weekend"
)

// TimeColumn is the timestamp header of the input CSV.
const TimeColumn = "utc_time"

// RawColumns are the error columns every input CSV must carry, in file order.
var RawColumns = []Column{ColXError, ColYError, ColZError, ColClockError}

// ColumnInfo holds display name and unit for a column.
type ColumnInfo struct {
	Name string
	Unit string
}

// ColumnCatalog maps every known Column to its display name and unit.
var ColumnCatalog = map[Column]ColumnInfo{
	ColXError:      {Name: "X Error", Unit: "m"},
	ColYError:      {Name: "Y Error", Unit: "m"},
	ColZError:      {Name: "Z Error", Unit: "m"},
	ColClockError:  {Name: "Satellite Clock Error", Unit: "m"},
	ColRadialError: {Name: "Radial Error", Unit: "m"},
	ColDX:          {Name: "X Error Diff", Unit: "m"},
	ColDY:          {Name: "Y Error Diff", Unit: "m"},
	ColDZ:          {Name: "Z Error Diff", Unit: "m"},
	ColDClock:      {Name: "Clock Error Diff", Unit: "m"},
	ColRadialLag1:  {Name: "Radial Error Lag 1", Unit: "m"},
	ColRadialDiff1: {Name: "Radial Error Diff 1", Unit: "m"},
	ColRadialRoll3: {Name: "Radial Error Rolling Mean 3", Unit: "m"},
	ColRadialRoll6: {Name: "Radial Error Rolling Mean 6", Unit: "m"},
	ColHourSin:     {Name: "Hour (sin)", Unit: ""},
	ColHourCos:     {Name: "Hour (cos)", Unit: ""},
	ColDaySin:      {Name: "Day of Week (sin)", Unit: ""},
	ColDayCos:      {Name: "Day of Week (cos)", Unit: ""},
	ColIsWeekend:   {Name: "Weekend", Unit: ""},
}

// Known reports whether c is in the catalogue.
func (c Column) Known() bool {
	_, ok := ColumnCatalog[c]
	return ok
}

// SatelliteClass is the orbit class of a dataset.
type SatelliteClass string

const (
	ClassGEO SatelliteClass = "GEO"
	ClassMEO SatelliteClass = "MEO"
)

// Reading is one raw telemetry sample. Readings are immutable once parsed.
type Reading struct {
	Timestamp  time.Time
	XError     float64
	YError     float64
	ZError     float64
	ClockError float64
}

// Value returns the raw error column c of the reading.
func (r Reading) Value(c Column) (float64, bool) {
	switch c {
	case ColXError:
		return r.XError, true
	case ColYError:
		return r.YError, true
	case ColZError:
		return r.ZError, true
	case ColClockError:
		return r.ClockError, true
	}
	return 0, false
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}
