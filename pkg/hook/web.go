package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Web is a webhook for before/after hooks.
//
// The value T is POSTed as a JSON payload to each URL, one by one.
// The hook succeeds if and only if all of the URLs respond with 2xx.
// It stops at the first failure, so later URLs are not called.
type Web[T any, R any] struct {
	BeforeURL []*url.URL
	AfterURL  []*url.URL

	// Merge combines JSON responses of Before hooks.
	//
	// If nil, the response of the last URL wins.
	Merge func(a, b R) R

	// If nil, http.DefaultClient is used.
	Client *http.Client
}

func (w Web[T, R]) client() *http.Client {
	if w.Client == nil {
		return http.DefaultClient
	}
	return w.Client
}

// send posts payload to url.
//
// A 2xx response with JSON body is decoded as R. Other 2xx responses yield zero R.
func (w Web[T, R]) send(ctx context.Context, url string, payload []byte) (R, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return *new(R), false, errors.Join(err, ErrHookFailed)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client().Do(req)
	if err != nil {
		return *new(R), false, errors.Join(err, ErrHookFailed)
	}
	defer resp.Body.Close()

	ctype := resp.Header.Get("Content-Type")
	mtype, _, _ := mime.ParseMediaType(ctype)

	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		if mtype != "application/json" {
			return *new(R), false, nil
		}
		r := new(R)
		if err := json.NewDecoder(resp.Body).Decode(r); err != nil && !errors.Is(err, io.EOF) {
			return *new(R), false, errors.Join(err, ErrHookFailed)
		}
		return *r, true, nil
	}

	if !strings.HasPrefix(mtype, "text/") && !strings.HasSuffix(mtype, "json") {
		return *new(R), false, fmt.Errorf(
			"%w (%s %d, Content-Type: %s)", ErrHookFailed, url, resp.StatusCode, ctype,
		)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return *new(R), false, fmt.Errorf(
		"%w (%s %d, Content-Type: %s): %s", ErrHookFailed, url, resp.StatusCode, ctype, string(body),
	)
}

func (w Web[T, R]) hook(ctx context.Context, value T, urls []*url.URL) (R, error) {
	if len(urls) == 0 {
		return *new(R), nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return *new(R), errors.Join(err, ErrHookFailed)
	}

	var ret R
	got := false
	for _, u := range urls {
		r, ok, err := w.send(ctx, u.String(), payload)
		if err != nil {
			return *new(R), err
		}
		if !ok {
			continue
		}
		if got && w.Merge != nil {
			ret = w.Merge(ret, r)
		} else {
			ret = r
		}
		got = true
	}
	return ret, nil
}

func (w Web[T, R]) Before(ctx context.Context, value T) (R, error) {
	return w.hook(ctx, value, w.BeforeURL)
}

func (w Web[T, R]) After(ctx context.Context, value T) error {
	_, err := w.hook(ctx, value, w.AfterURL)
	return err
}
