// Package cloudeval looks up cached evaluations from a cloud evaluation
// service before spending local engine time. The service speaks the
// Lichess cloud-eval wire shape.
package cloudeval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/deskchess/deskchess/internal/uci"
)

// ErrNotFound means the position has no cached evaluation.
var ErrNotFound = errors.New("cloudeval: position not cached")

// Line is one cached candidate line.
type Line struct {
	Rank  int       `json:"rank"`
	Score uci.Score `json:"score"`
	PV    []string  `json:"pv"`
}

// Eval is the cached evaluation of one position.
type Eval struct {
	FEN    string `json:"fen"`
	Depth  int    `json:"depth"`
	KNodes int64  `json:"knodes"`
	Lines  []Line `json:"lines"`
}

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the cached evaluation for a position. ErrNotFound is not
// retried; transient transport and server failures are.
func (c *Client) Lookup(ctx context.Context, fen string, multiPV int) (*Eval, error) {
	if multiPV <= 0 {
		multiPV = 1
	}
	path := "/api/cloud-eval?fen=" + url.QueryEscape(fen) + "&multiPv=" + strconv.Itoa(multiPV)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("cloud eval request: %w", err)
			if attempt == attempts {
				return nil, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status == fasthttp.StatusNotFound {
			return nil, ErrNotFound
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("cloud eval error: status=%d", status)
			if attempt == attempts || !shouldRetryStatus(status) {
				return nil, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}

		return parseEval(resp.Body())
	}
	return nil, lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

type wireEval struct {
	FEN    string `json:"fen"`
	Depth  int    `json:"depth"`
	KNodes int64  `json:"knodes"`
	PVs    []struct {
		Moves string `json:"moves"`
		CP    *int   `json:"cp,omitempty"`
		Mate  *int   `json:"mate,omitempty"`
	} `json:"pvs"`
}

// parseEval decodes the wire body. Score units follow the session's
// convention: centipawns become fractional pawns, mate stays signed plies.
func parseEval(body []byte) (*Eval, error) {
	var wire wireEval
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode cloud eval: %w", err)
	}

	eval := &Eval{FEN: wire.FEN, Depth: wire.Depth, KNodes: wire.KNodes}
	for i, pv := range wire.PVs {
		moves := strings.Fields(pv.Moves)
		if len(moves) == 0 {
			continue
		}
		var score uci.Score
		switch {
		case pv.Mate != nil:
			score = uci.Score{Type: uci.ScoreMate, Value: float64(*pv.Mate)}
		case pv.CP != nil:
			score = uci.Score{Type: uci.ScoreCentipawn, Value: float64(*pv.CP) / 100}
		default:
			continue
		}
		eval.Lines = append(eval.Lines, Line{Rank: i + 1, Score: score, PV: moves})
	}
	if len(eval.Lines) == 0 {
		return nil, ErrNotFound
	}
	return eval, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
