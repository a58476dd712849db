package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

const maxBodyBytes = 4 << 20

// client performs JSON GET requests against one upstream service.
type client struct {
	name       string
	httpClient *http.Client
	userAgent  string
}

func newClient(name string, p Params) *client {
	return &client{name: name, httpClient: p.HTTPClient, userAgent: p.UserAgent}
}

// getJSON decodes the response at url into v. An empty body leaves v untouched.
func (c *client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.NewSourceError(c.name, model.ErrConfigurationInvalid, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewSourceError(c.name, model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.NewSourceError(c.name, model.ErrUpstreamUnavailable,
			fmt.Errorf("%s returned status %d", url, resp.StatusCode))
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		return model.NewSourceError(c.name, model.ErrMalformedResponse,
			fmt.Errorf("unexpected content type %q", ct))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if ctx.Err() != nil {
			return model.NewSourceError(c.name, model.ErrUpstreamUnavailable, ctx.Err())
		}
		return model.NewSourceError(c.name, model.ErrMalformedResponse, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// normalize converts raw records, dropping invalid ones and repeated ids.
func normalize[T any](logger *slog.Logger, source string, raw []T, convert func(T) (model.Alert, error)) []model.Alert {
	alerts := make([]model.Alert, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		a, err := convert(r)
		if err == nil {
			err = a.Validate()
		}
		if err != nil {
			logger.Debug("dropping record", "source", source, "error", err)
			continue
		}
		if seen[a.ID] {
			logger.Debug("dropping duplicate record", "source", source, "id", a.ID)
			continue
		}
		seen[a.ID] = true
		alerts = append(alerts, a)
	}
	return alerts
}

// flexString decodes JSON strings and numbers alike.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexInt decodes numbers and numeric strings. Empty or non-numeric strings decode to 0.
type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*i = 0
		return nil
	}
	var n json.Number = json.Number(strings.TrimSpace(string(s)))
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			*i = 0
			return nil
		}
		v = int64(f)
	}
	*i = flexInt(v)
	return nil
}
