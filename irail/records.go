package irail

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// StationRecord is one station as reported by the upstream API
type StationRecord struct {
	ID           string
	Name         string
	StandardName string
	URI          string
	Latitude     *float64
	Longitude    *float64
}

// MovementRecord is one observed train departure, from either a liveboard or
// a connection lookup. Liveboard records carry the immediate destination as
// the arrival station and no arrival times; connection records carry the full
// arrival side.
type MovementRecord struct {
	VehicleName         string // e.g. "BE.NMBS.IC3033"
	VehicleShortName    string // e.g. "IC3033"
	VehicleURI          string
	DepartureStation    StationRecord
	ArrivalStation      StationRecord
	ScheduledDeparture  time.Time
	DelaySeconds        int
	ScheduledArrival    *time.Time
	ArrivalDelaySeconds int
	Platform            string
	Canceled            bool
	OccupancyTerm       string
	ConnectionURL       string
}

// DisturbanceRecord is one operational incident as reported upstream
type DisturbanceRecord struct {
	ID          string
	Title       string
	Description string
	Type        string
	Link        string
	Attachment  string
	Time        time.Time
}

// CompositionUnitRecord is one physical unit of a composed train
type CompositionUnitRecord struct {
	ParentType                string
	SubType                   string
	Orientation               string
	MaterialNumber            string
	TractionType              string
	TractionPosition          int
	SeatsFirstClass           int
	SeatsSecondClass          int
	StandingPlacesFirstClass  int
	StandingPlacesSecondClass int
	LengthInMeter             int
	HasToilets                bool
	HasTables                 bool
	HasAirco                  bool
	HasHeating                bool
	HasBikeSection            bool
	HasPrmSection             bool
	CanPassToNextUnit         bool
}

// CompositionSegment is the unit set of a train over one segment
type CompositionSegment struct {
	Origin      StationRecord
	Destination StationRecord
	Units       []CompositionUnitRecord
}

// CompositionRecord is the full composition of one train
type CompositionRecord struct {
	VehicleName string
	Segments    []CompositionSegment
}

// VehicleInfo is the decomposition of an iRail vehicle name
type VehicleInfo struct {
	ShortName string // "IC3033"
	Number    string // "3033"
	Type      string // "IC"
	Operator  string // "NMBS"
}

// ParseVehicleName decomposes a vehicle name like "BE.NMBS.IC3033" into
// operator, train type and number
func ParseVehicleName(name string) (VehicleInfo, error) {
	parts := strings.Split(name, ".")
	if len(parts) < 3 {
		return VehicleInfo{}, fmt.Errorf("unexpected vehicle name format: %q", name)
	}
	code := parts[2]
	var trainType, number strings.Builder
	for _, c := range code {
		if unicode.IsLetter(c) {
			trainType.WriteRune(c)
		} else if unicode.IsDigit(c) {
			number.WriteRune(c)
		}
	}
	if number.Len() == 0 {
		return VehicleInfo{}, fmt.Errorf("vehicle name %q carries no train number", name)
	}
	return VehicleInfo{
		ShortName: code,
		Number:    number.String(),
		Type:      trainType.String(),
		Operator:  parts[1],
	}, nil
}
