// Package postgrest reads ranking rows and show metadata from a hosted
// PostgREST (Supabase) backend.
package postgrest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/okian/topten/internal/adapters/source"
	"github.com/okian/topten/internal/domain/model"
	"github.com/okian/topten/pkg/logger"
	"github.com/tidwall/gjson"
)

// Backend tables and the column selections the dashboard needs.
const (
	restPrefix        = "/rest/v1/"
	rankingsTable     = "TopTenList"
	showsTable        = "Shows"
	rankingsSelect    = "Shows(title),rank,date"
	showsSelect       = "id,title,platform,image"
	defaultTimeout    = 10 * time.Second
	maxErrorBodyBytes = 4096
)

var validate = validator.New()

// Client implements source.RankingSource and source.ShowCatalog over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	retryMax   int
	timeout    time.Duration
	httpClient *http.Client
	logger     logger.Logger

	rc *retryablehttp.Client
}

var _ source.Backend = (*Client)(nil)

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = c.retryMax
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if c.httpClient != nil {
		rc.HTTPClient = c.httpClient
	}
	rc.HTTPClient.Timeout = c.timeout
	if c.logger != nil {
		rc.Logger = &leveledLogger{l: c.logger}
	} else {
		rc.Logger = nil
	}
	c.rc = rc
	return c
}

// observationRow is a decoded TopTenList row prior to conversion.
type observationRow struct {
	Title string `validate:"required"`
	Rank  *int   `validate:"required"`
	Date  string `validate:"required"`
}

// FetchObservations returns every ranking row ordered by date descending.
func (c *Client) FetchObservations(ctx context.Context) ([]model.Observation, error) {
	q := url.Values{}
	q.Set("select", rankingsSelect)
	q.Set("order", "date.desc")

	body, err := c.get(ctx, rankingsTable, q)
	if err != nil {
		return nil, source.NewFetchError(source.KindPostgREST, source.OpObservations, err)
	}

	rows, err := arrayOf(body)
	if err != nil {
		return nil, source.NewFetchError(source.KindPostgREST, source.OpObservations, err)
	}

	out := make([]model.Observation, 0, len(rows))
	for i, row := range rows {
		o, err := decodeObservation(row)
		if err != nil {
			return nil, source.NewFetchError(source.KindPostgREST, source.OpObservations,
				fmt.Errorf("%w %d: %w", ErrMalformedRow, i, err))
		}
		out = append(out, o)
	}
	return out, nil
}

// FetchAll returns the full show catalog.
func (c *Client) FetchAll(ctx context.Context) ([]model.ShowMeta, error) {
	q := url.Values{}
	q.Set("select", showsSelect)

	body, err := c.get(ctx, showsTable, q)
	if err != nil {
		return nil, source.NewFetchError(source.KindPostgREST, source.OpCatalog, err)
	}

	rows, err := arrayOf(body)
	if err != nil {
		return nil, source.NewFetchError(source.KindPostgREST, source.OpCatalog, err)
	}

	out := make([]model.ShowMeta, 0, len(rows))
	for i, row := range rows {
		if !row.IsObject() {
			return nil, source.NewFetchError(source.KindPostgREST, source.OpCatalog,
				fmt.Errorf("%w %d: not an object", ErrMalformedRow, i))
		}
		out = append(out, model.ShowMeta{
			ID:       row.Get("id").Int(),
			Title:    row.Get("title").String(),
			Platform: row.Get("platform").String(),
			Image:    row.Get("image").String(),
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, table string, q url.Values) ([]byte, error) {
	endpoint := c.baseURL + restPrefix + table + "?" + q.Encode()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.rc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		msg := gjson.GetBytes(snippet, "message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, msg)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", table, err)
	}
	return body, nil
}

func arrayOf(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedBody)
	}
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: expected array, got %s", ErrMalformedBody, res.Type)
	}
	return res.Array(), nil
}

func decodeObservation(row gjson.Result) (model.Observation, error) {
	var r observationRow

	// Embedded many-to-one resources come back as an object, but an
	// ambiguous relationship is returned as a one-element array.
	title := row.Get("Shows.title")
	if !title.Exists() {
		title = row.Get("Shows.0.title")
	}
	if title.Type == gjson.String {
		r.Title = title.Str
	}
	if rank := row.Get("rank"); rank.Type == gjson.Number {
		v := int(rank.Int())
		r.Rank = &v
	}
	if date := row.Get("date"); date.Type == gjson.String {
		r.Date = date.Str
	}

	if err := validate.Struct(r); err != nil {
		return model.Observation{}, err
	}

	d, err := parseDate(r.Date)
	if err != nil {
		return model.Observation{}, err
	}
	return model.Observation{Title: r.Title, Rank: *r.Rank, Date: d}, nil
}

// parseDate accepts a bare date or a timestamp and keeps only the UTC day.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{model.DateLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}
