package academiasvc

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/fomu/core/form"
)

// optionRecord is the {id, name} row shape shared by all entity endpoints.
type optionRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
}

// FetchOptions loads an entity's records narrowed by the parent selections,
// passed as query params under their payload names.
func (c *Client) FetchOptions(ctx context.Context, entity string, params map[string]string) ([]form.Option, error) {
	query := make(url.Values, len(params))
	for k, v := range params {
		query.Set(k, v)
	}

	var records []optionRecord
	if err := c.do(ctx, http.MethodGet, entity, query, nil, &records); err != nil {
		return nil, err
	}

	opts := make([]form.Option, 0, len(records))
	for _, rec := range records {
		opts = append(opts, form.Option{
			ID:       rec.ID,
			Label:    c.sanitize.Sanitize(rec.Name),
			ParentID: rec.ParentID,
		})
	}
	return opts, nil
}
