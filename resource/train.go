package resource

import (
	"github.com/gbl08ma/sqalx"
	"github.com/yarf-framework/yarf"

	"github.com/traindw/ingestor/dataobjects"
)

// Train composites resource
type Train struct {
	resource
}

type apiTrain struct {
	ID       string `msgpack:"id" json:"id"`
	Number   string `msgpack:"number" json:"number"`
	Type     string `msgpack:"type" json:"type"`
	Operator string `msgpack:"operator" json:"operator"`
}

// WithNode associates a sqalx Node with this resource
func (r *Train) WithNode(node sqalx.Node) *Train {
	r.node = node
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Train) Get(c *yarf.Context) error {
	tx, err := r.Beginx()
	if err != nil {
		return err
	}
	defer tx.Commit() // read-only tx

	if id := c.Param("id"); id != "" {
		train, err := dataobjects.GetTrain(tx, id)
		if err != nil {
			return err
		}
		RenderData(c, apiTrain{ID: train.ID, Number: train.Number, Type: train.Type, Operator: train.Operator})
		return nil
	}

	trains, err := dataobjects.GetTrains(tx)
	if err != nil {
		return err
	}
	apiTrains := make([]apiTrain, len(trains))
	for i, train := range trains {
		apiTrains[i] = apiTrain{ID: train.ID, Number: train.Number, Type: train.Type, Operator: train.Operator}
	}
	RenderData(c, apiTrains)
	return nil
}
