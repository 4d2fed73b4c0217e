package academiasvc

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core/form"
)

// Submit delivers a completed form payload to its route. Rejections keep the
// academia message so callers can surface it verbatim.
func (c *Client) Submit(ctx context.Context, route string, payload map[string]string) error {
	if err := c.do(ctx, http.MethodPost, route, nil, payload, nil); err != nil {
		var envErr *envelopeError
		if errors.As(err, &envErr) {
			return &form.SubmissionError{Message: envErr.message}
		}
		return err
	}
	return nil
}
