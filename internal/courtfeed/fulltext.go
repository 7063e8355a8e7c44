package courtfeed

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// textFetcher pulls a linked page and extracts its readable text for the
// deep-matching pass.
type textFetcher struct {
	client *http.Client
}

func newTextFetcher(timeout time.Duration) *textFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &textFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// fetch returns the extracted text of the page, or "" when the page could
// not be fetched or yields no usable content. Failures are non-fatal: the
// caller simply matches on the summary alone.
func (f *textFetcher) fetch(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "lexwatch/1.0 (judgment monitor)")

	resp, err := f.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return ""
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text
	}
	return ""
}
