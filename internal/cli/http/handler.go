package httpclient

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

// HandlerClient dispatches requests to an in-process handler.
type HandlerClient struct {
	handler http.Handler
}

func NewHandlerClient(handler http.Handler) *HandlerClient {
	return &HandlerClient{handler: handler}
}

func (c *HandlerClient) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (ResponseInfo, error) {
	req, err := newRequest(ctx, method, "http://local"+path, headers, body)
	if err != nil {
		return ResponseInfo{}, err
	}
	w := &memoryResponse{header: http.Header{}}
	start := time.Now()
	c.handler.ServeHTTP(w, req)
	return ResponseInfo{
		StatusCode: w.status(),
		Headers:    w.header,
		Body:       w.body.Bytes(),
		Duration:   time.Since(start),
	}, nil
}

type memoryResponse struct {
	header     http.Header
	body       bytes.Buffer
	statusCode int
}

func (w *memoryResponse) Header() http.Header {
	return w.header
}

func (w *memoryResponse) Write(p []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *memoryResponse) WriteHeader(statusCode int) {
	if w.statusCode == 0 {
		w.statusCode = statusCode
	}
}

func (w *memoryResponse) status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}
