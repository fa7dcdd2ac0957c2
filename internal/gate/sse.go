package gate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SSEDialer opens readiness channels as server-sent event streams at
// GET {BaseURL}/status?task=..&token=..
type SSEDialer struct {
	BaseURL string
	Client  *http.Client
}

// Dial implements Dialer. The stream lives as long as ctx.
func (d *SSEDialer) Dial(ctx context.Context, task, token string) (Stream, error) {
	q := url.Values{"task": {task}, "token": {token}}
	u := strings.TrimRight(d.BaseURL, "/") + "/status?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	return &sseStream{body: resp.Body, r: bufio.NewReader(resp.Body)}, nil
}

type sseStream struct {
	body io.ReadCloser
	r    *bufio.Reader
}

// Next reads one dispatched event. Comment lines and the id and retry
// fields are skipped; an event without a name is reported as "message".
func (s *sseStream) Next(ctx context.Context) (Event, error) {
	var (
		ev      Event
		data    []string
		pending bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		line, err := s.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return Event{}, io.ErrUnexpectedEOF
			}
			return Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !pending {
				continue
			}
			if ev.Name == "" {
				ev.Name = "message"
			}
			ev.Data = strings.Join(data, "\n")
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
