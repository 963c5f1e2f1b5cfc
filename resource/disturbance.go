package resource

import (
	"net/http"
	"time"

	"github.com/gbl08ma/sqalx"
	"github.com/yarf-framework/yarf"

	"github.com/traindw/ingestor/dataobjects"
)

// Disturbance composites resource
type Disturbance struct {
	resource
}

type apiDisturbance struct {
	ID          string    `msgpack:"id" json:"id"`
	Title       string    `msgpack:"title" json:"title"`
	Description string    `msgpack:"description" json:"description"`
	Type        string    `msgpack:"type" json:"type"`
	Time        time.Time `msgpack:"time" json:"time"`
	Link        string    `msgpack:"link" json:"link"`
	Attachment  string    `msgpack:"attachment" json:"attachment"`
}

// WithNode associates a sqalx Node with this resource
func (r *Disturbance) WithNode(node sqalx.Node) *Disturbance {
	r.node = node
	return r
}

// Get serves HTTP GET requests on this resource. The optional start and end
// query parameters (RFC 3339) narrow the result to a time window.
func (r *Disturbance) Get(c *yarf.Context) error {
	tx, err := r.Beginx()
	if err != nil {
		return err
	}
	defer tx.Commit() // read-only tx

	query := c.Request.URL.Query()
	var disturbances []*dataobjects.Disturbance
	if query.Get("start") != "" || query.Get("end") != "" {
		start, end, err := parseTimeWindow(query.Get("start"), query.Get("end"))
		if err != nil {
			return &yarf.CustomError{
				HTTPCode:  http.StatusBadRequest,
				ErrorMsg:  "Invalid time window",
				ErrorBody: err.Error(),
			}
		}
		disturbances, err = dataobjects.GetDisturbancesBetween(tx, start, end)
		if err != nil {
			return err
		}
	} else {
		disturbances, err = dataobjects.GetDisturbances(tx)
		if err != nil {
			return err
		}
	}

	apiDisturbances := make([]apiDisturbance, len(disturbances))
	for i, disturbance := range disturbances {
		apiDisturbances[i] = apiDisturbance{
			ID:          disturbance.ExternalID,
			Title:       disturbance.Title,
			Description: disturbance.Description,
			Type:        disturbance.Type,
			Time:        disturbance.Time,
			Link:        disturbance.Link,
			Attachment:  disturbance.Attachment,
		}
	}
	RenderData(c, apiDisturbances)
	return nil
}

func parseTimeWindow(startParam string, endParam string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now()
	var err error
	if startParam != "" {
		if start, err = time.Parse(time.RFC3339, startParam); err != nil {
			return start, end, err
		}
	}
	if endParam != "" {
		if end, err = time.Parse(time.RFC3339, endParam); err != nil {
			return start, end, err
		}
	}
	return start, end, nil
}
