package badkeys

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

func (cache *Cache) httpGet(ctx context.Context, url string, timeout time.Duration) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, cancel, fmt.Errorf("http req %s: %w", url, err)
	}
	req.Header.Add("User-Agent", "rsapem")

	client := cache.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, cancel, fmt.Errorf("http get %s: %w", url, err)
	}
	if res.StatusCode != http.StatusOK {
		_ = res.Body.Close()
		return nil, cancel, fmt.Errorf("http get %s: status %s", url, res.Status)
	}
	return res, cancel, nil
}

func (cache *Cache) httpGetData(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	res, cancel, err := cache.httpGet(ctx, url, timeout)
	defer cancel()
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, MaxResponseSize))
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return body, nil
}
