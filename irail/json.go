package irail

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// The upstream API serializes most scalars as strings ("delay": "60",
// "hasToilets": "1") and collapses single-element lists into bare objects.
// These wrapper types absorb both shapes.

type jsonInt int

func (v *jsonInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*v = jsonInt(n)
	return nil
}

type jsonInt64 int64

func (v *jsonInt64) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*v = jsonInt64(n)
	return nil
}

type jsonFloat float64

func (v *jsonFloat) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*v = jsonFloat(f)
	return nil
}

type jsonBool bool

func (v *jsonBool) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	*v = s == "1" || s == "true"
	return nil
}

type stationInfoJSON struct {
	ID           string    `json:"id"`
	URI          string    `json:"@id"`
	Name         string    `json:"name"`
	StandardName string    `json:"standardname"`
	LocationX    jsonFloat `json:"locationX"`
	LocationY    jsonFloat `json:"locationY"`
}

func (s stationInfoJSON) toRecord() StationRecord {
	rec := StationRecord{
		ID:           s.ID,
		Name:         s.Name,
		StandardName: s.StandardName,
		URI:          s.URI,
	}
	if s.LocationY != 0 {
		lat := float64(s.LocationY)
		rec.Latitude = &lat
	}
	if s.LocationX != 0 {
		lng := float64(s.LocationX)
		rec.Longitude = &lng
	}
	return rec
}

type vehicleInfoJSON struct {
	Name      string `json:"name"`
	ShortName string `json:"shortname"`
	URI       string `json:"@id"`
}

type occupancyJSON struct {
	URI  string `json:"@id"`
	Name string `json:"name"`
}

type stationsResponse struct {
	Station []stationInfoJSON `json:"station"`
}

type liveboardDepartureJSON struct {
	Delay               jsonInt         `json:"delay"`
	StationInfo         stationInfoJSON `json:"stationinfo"`
	Time                jsonInt64       `json:"time"`
	Vehicle             string          `json:"vehicle"`
	VehicleInfo         vehicleInfoJSON `json:"vehicleinfo"`
	Platform            string          `json:"platform"`
	Canceled            jsonBool        `json:"canceled"`
	DepartureConnection string          `json:"departureConnection"`
	Occupancy           occupancyJSON   `json:"occupancy"`
}

type liveboardResponse struct {
	StationInfo stationInfoJSON `json:"stationinfo"`
	Departures  struct {
		Departure []liveboardDepartureJSON `json:"departure"`
	} `json:"departures"`
}

type connectionEndpointJSON struct {
	Delay               jsonInt         `json:"delay"`
	StationInfo         stationInfoJSON `json:"stationinfo"`
	Time                jsonInt64       `json:"time"`
	Vehicle             string          `json:"vehicle"`
	VehicleInfo         vehicleInfoJSON `json:"vehicleinfo"`
	Platform            string          `json:"platform"`
	Canceled            jsonBool        `json:"canceled"`
	DepartureConnection string          `json:"departureConnection"`
	Occupancy           occupancyJSON   `json:"occupancy"`
}

type connectionJSON struct {
	Departure connectionEndpointJSON `json:"departure"`
	Arrival   connectionEndpointJSON `json:"arrival"`
}

type connectionsResponse struct {
	Connection []connectionJSON `json:"connection"`
}

type disturbanceJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Type        string    `json:"type"`
	Timestamp   jsonInt64 `json:"timestamp"`
	Attachment  string    `json:"attachment"`
}

type disturbancesResponse struct {
	Disturbance []disturbanceJSON `json:"disturbance"`
}

type materialTypeJSON struct {
	ParentType  string `json:"parent_type"`
	SubType     string `json:"sub_type"`
	Orientation string `json:"orientation"`
}

type compositionUnitJSON struct {
	MaterialType              materialTypeJSON `json:"materialType"`
	HasToilets                jsonBool         `json:"hasToilets"`
	HasTables                 jsonBool         `json:"hasTables"`
	HasAirco                  jsonBool         `json:"hasAirco"`
	HasHeating                jsonBool         `json:"hasHeating"`
	HasBikeSection            jsonBool         `json:"hasBikeSection"`
	HasPrmSection             jsonBool         `json:"hasPrmSection"`
	CanPassToNextUnit         jsonBool         `json:"canPassToNextUnit"`
	MaterialNumber            string           `json:"materialNumber"`
	TractionType              string           `json:"tractionType"`
	TractionPosition          jsonInt          `json:"tractionPosition"`
	SeatsFirstClass           jsonInt          `json:"seatsFirstClass"`
	SeatsSecondClass          jsonInt          `json:"seatsSecondClass"`
	StandingPlacesFirstClass  jsonInt          `json:"standingPlacesFirstClass"`
	StandingPlacesSecondClass jsonInt          `json:"standingPlacesSecondClass"`
	LengthInMeter             jsonInt          `json:"lengthInMeter"`
}

type compositionUnitListJSON []compositionUnitJSON

func (l *compositionUnitListJSON) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, (*[]compositionUnitJSON)(l))
	}
	var single compositionUnitJSON
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	*l = compositionUnitListJSON{single}
	return nil
}

type compositionSegmentJSON struct {
	Origin      stationInfoJSON `json:"origin"`
	Destination stationInfoJSON `json:"destination"`
	Composition struct {
		Units struct {
			Unit compositionUnitListJSON `json:"unit"`
		} `json:"units"`
	} `json:"composition"`
}

type compositionSegmentListJSON []compositionSegmentJSON

func (l *compositionSegmentListJSON) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, (*[]compositionSegmentJSON)(l))
	}
	var single compositionSegmentJSON
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	*l = compositionSegmentListJSON{single}
	return nil
}

type compositionResponse struct {
	Vehicle     string `json:"vehicle"`
	Composition struct {
		Segments struct {
			Segment compositionSegmentListJSON `json:"segment"`
		} `json:"segments"`
	} `json:"composition"`
}
