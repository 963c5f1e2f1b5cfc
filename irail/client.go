package irail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the production API endpoint
const DefaultBaseURL = "https://api.irail.be"

// Client fetches raw records from the iRail API. It performs no
// normalization beyond decoding the wire format into typed records.
type Client struct {
	BaseURL    string
	Lang       string
	Location   *time.Location
	HTTPClient *http.Client
}

// NewClient returns a Client against the given base URL. Timestamps in
// returned records are expressed in loc.
func NewClient(baseURL string, lang string, loc *time.Location) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if lang == "" {
		lang = "en"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		BaseURL:  baseURL,
		Lang:     lang,
		Location: loc,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, v interface{}) error {
	params.Set("format", "json")
	params.Set("lang", c.Lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/?%s", c.BaseURL, endpoint, params.Encode()), nil)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Transient: false, Err: err}
	}

	response, err := c.HTTPClient.Do(req)
	if err != nil {
		// connection failures and timeouts are worth retrying
		return &FetchError{Endpoint: endpoint, Transient: true, Err: err}
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
	case response.StatusCode == http.StatusTooManyRequests,
		response.StatusCode >= http.StatusInternalServerError:
		return &FetchError{
			Endpoint:   endpoint,
			StatusCode: response.StatusCode,
			Transient:  true,
			Err:        errors.New(http.StatusText(response.StatusCode)),
		}
	default:
		return &FetchError{
			Endpoint:   endpoint,
			StatusCode: response.StatusCode,
			Transient:  false,
			Err:        errors.New(http.StatusText(response.StatusCode)),
		}
	}

	if err := json.NewDecoder(response.Body).Decode(v); err != nil {
		return &FetchError{Endpoint: endpoint, Transient: false, Err: err}
	}
	return nil
}

func (c *Client) unix(ts int64) time.Time {
	return time.Unix(ts, 0).In(c.Location)
}

// Stations returns all stations known to the API
func (c *Client) Stations(ctx context.Context) ([]StationRecord, error) {
	var payload stationsResponse
	if err := c.get(ctx, "stations", url.Values{}, &payload); err != nil {
		return nil, err
	}

	records := make([]StationRecord, 0, len(payload.Station))
	for _, st := range payload.Station {
		records = append(records, st.toRecord())
	}
	return records, nil
}

// Liveboard returns the upcoming departures at a station. The arrival side
// of each record holds the immediate destination; arrival times are unknown
// at this endpoint.
func (c *Client) Liveboard(ctx context.Context, stationID string) ([]MovementRecord, error) {
	params := url.Values{}
	params.Set("id", stationID)
	params.Set("arrdep", "departure")

	var payload liveboardResponse
	if err := c.get(ctx, "liveboard", params, &payload); err != nil {
		return nil, err
	}

	departureStation := payload.StationInfo.toRecord()
	records := make([]MovementRecord, 0, len(payload.Departures.Departure))
	for _, dep := range payload.Departures.Departure {
		records = append(records, MovementRecord{
			VehicleName:        dep.Vehicle,
			VehicleShortName:   dep.VehicleInfo.ShortName,
			VehicleURI:         dep.VehicleInfo.URI,
			DepartureStation:   departureStation,
			ArrivalStation:     dep.StationInfo.toRecord(),
			ScheduledDeparture: c.unix(int64(dep.Time)),
			DelaySeconds:       int(dep.Delay),
			Platform:           dep.Platform,
			Canceled:           bool(dep.Canceled),
			OccupancyTerm:      dep.Occupancy.Name,
			ConnectionURL:      dep.DepartureConnection,
		})
	}
	return records, nil
}

// Connections returns the connections between two stations. Records carry
// the full arrival side, including scheduled arrival time and delay.
func (c *Client) Connections(ctx context.Context, fromID string, toID string) ([]MovementRecord, error) {
	params := url.Values{}
	params.Set("from", fromID)
	params.Set("to", toID)
	params.Set("timesel", "departure")

	var payload connectionsResponse
	if err := c.get(ctx, "connections", params, &payload); err != nil {
		return nil, err
	}

	records := make([]MovementRecord, 0, len(payload.Connection))
	for _, conn := range payload.Connection {
		scheduledArrival := c.unix(int64(conn.Arrival.Time))
		records = append(records, MovementRecord{
			VehicleName:         conn.Departure.Vehicle,
			VehicleShortName:    conn.Departure.VehicleInfo.ShortName,
			VehicleURI:          conn.Departure.VehicleInfo.URI,
			DepartureStation:    conn.Departure.StationInfo.toRecord(),
			ArrivalStation:      conn.Arrival.StationInfo.toRecord(),
			ScheduledDeparture:  c.unix(int64(conn.Departure.Time)),
			DelaySeconds:        int(conn.Departure.Delay),
			ScheduledArrival:    &scheduledArrival,
			ArrivalDelaySeconds: int(conn.Arrival.Delay),
			Platform:            conn.Departure.Platform,
			Canceled:            bool(conn.Departure.Canceled),
			OccupancyTerm:       conn.Departure.Occupancy.Name,
			ConnectionURL:       conn.Departure.DepartureConnection,
		})
	}
	return records, nil
}

// Disturbances returns the current service disturbances and planned works
func (c *Client) Disturbances(ctx context.Context) ([]DisturbanceRecord, error) {
	var payload disturbancesResponse
	if err := c.get(ctx, "disturbances", url.Values{}, &payload); err != nil {
		return nil, err
	}

	records := make([]DisturbanceRecord, 0, len(payload.Disturbance))
	for _, d := range payload.Disturbance {
		records = append(records, DisturbanceRecord{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Type:        d.Type,
			Link:        d.Link,
			Attachment:  d.Attachment,
			Time:        c.unix(int64(d.Timestamp)),
		})
	}
	return records, nil
}

// Composition returns the composition of a train, one segment per distinct
// unit set along its route
func (c *Client) Composition(ctx context.Context, vehicleName string) (*CompositionRecord, error) {
	params := url.Values{}
	params.Set("id", vehicleName)

	var payload compositionResponse
	if err := c.get(ctx, "composition", params, &payload); err != nil {
		return nil, err
	}

	record := &CompositionRecord{VehicleName: payload.Vehicle}
	if record.VehicleName == "" {
		record.VehicleName = vehicleName
	}
	for _, seg := range payload.Composition.Segments.Segment {
		segment := CompositionSegment{
			Origin:      seg.Origin.toRecord(),
			Destination: seg.Destination.toRecord(),
		}
		for _, u := range seg.Composition.Units.Unit {
			segment.Units = append(segment.Units, CompositionUnitRecord{
				ParentType:                u.MaterialType.ParentType,
				SubType:                   u.MaterialType.SubType,
				Orientation:               u.MaterialType.Orientation,
				MaterialNumber:            u.MaterialNumber,
				TractionType:              u.TractionType,
				TractionPosition:          int(u.TractionPosition),
				SeatsFirstClass:           int(u.SeatsFirstClass),
				SeatsSecondClass:          int(u.SeatsSecondClass),
				StandingPlacesFirstClass:  int(u.StandingPlacesFirstClass),
				StandingPlacesSecondClass: int(u.StandingPlacesSecondClass),
				LengthInMeter:             int(u.LengthInMeter),
				HasToilets:                bool(u.HasToilets),
				HasTables:                 bool(u.HasTables),
				HasAirco:                  bool(u.HasAirco),
				HasHeating:                bool(u.HasHeating),
				HasBikeSection:            bool(u.HasBikeSection),
				HasPrmSection:             bool(u.HasPrmSection),
				CanPassToNextUnit:         bool(u.CanPassToNextUnit),
			})
		}
		record.Segments = append(record.Segments, segment)
	}
	return record, nil
}
