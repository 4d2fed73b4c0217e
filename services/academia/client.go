// Package academiasvc talks to the academia API: reference entities for
// select fields, one-time ownership codes and final form submissions.
package academiasvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
)

var apiKeyHeader = "X-Api-Key"

type Client struct {
	base     string
	key      string
	http     *http.Client
	sanitize *bluemonday.Policy
	logger   core.Logger
}

var (
	_ form.Source    = (*Client)(nil)
	_ form.Verifier  = (*Client)(nil)
	_ form.Submitter = (*Client)(nil)
)

func NewClient(conf *core.Config, logger core.Logger) *Client {
	return &Client{
		base:     strings.TrimRight(conf.Academia.BaseURL, "/"),
		key:      conf.Academia.APIKey,
		http:     &http.Client{Timeout: conf.Academia.Timeout},
		sanitize: bluemonday.StrictPolicy(),
		logger:   logger,
	}
}

// envelope is the academia API response convention. Message and the data
// records come from another system; everything shown to people is sanitized.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// envelopeError is an academia rejection: a well-formed response whose
// success flag is down or whose status is 4xx/5xx.
type envelopeError struct {
	status  int
	message string
}

func (e *envelopeError) Error() string {
	return fmt.Sprintf("academia: %s (status %d)", e.message, e.status)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.base + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "marshalling %s body", path)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return errors.Wrapf(err, "preparing %s request", path)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", path)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return errors.Wrapf(err, "decoding %s response", path)
	}
	if !env.Success || res.StatusCode >= http.StatusBadRequest {
		c.logger.Debug(fmt.Sprintf("academia refused %s: %d %s", path, res.StatusCode, env.Message))
		return &envelopeError{status: res.StatusCode, message: c.sanitize.Sanitize(env.Message)}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrapf(err, "decoding %s data", path)
		}
	}
	return nil
}
