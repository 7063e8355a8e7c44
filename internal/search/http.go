package search

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
)

// maxBodyBytes bounds response reads; search pages are small.
const maxBodyBytes = 4 << 20

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
