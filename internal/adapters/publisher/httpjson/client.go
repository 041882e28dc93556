// Package httpjson delivers probe envelopes to the monitoring backend as gzipped JSON.
package httpjson

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/misc"
	"github.com/vshulcz/pgprobe/internal/ports"
)

const (
	reportsPath = "/reports"
	errorsPath  = "/errors"
)

// Client posts reports and collection errors to separate endpoints.
type Client struct {
	base *url.URL
	hc   *http.Client
	log  *zap.Logger
	key  string
}

var _ ports.Publisher = (*Client)(nil)

var (
	gzipWriterPool = sync.Pool{
		New: func() any {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = misc.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) })
)

// New normalizes the backend address and returns a Client. A nil hc gets a 10s timeout.
func New(serverAddr string, hc *http.Client, key string, log *zap.Logger) (*Client, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	u, err := url.Parse(normalizeBase(serverAddr))
	if err != nil {
		return nil, err
	}
	return &Client{base: u, hc: hc, key: strings.TrimSpace(key), log: log}, nil
}

func normalizeBase(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return strings.TrimRight(s, "/")
	}
	return "http://" + strings.TrimRight(s, "/")
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// SendReport posts a report envelope to /reports.
func (c *Client) SendReport(ctx context.Context, env domain.Envelope) error {
	if env.Report == nil {
		return errors.New("httpjson: envelope has no report")
	}
	return c.doGzJSON(ctx, reportsPath, env)
}

// SendError posts a collection error envelope to /errors.
func (c *Client) SendError(ctx context.Context, env domain.Envelope) error {
	if env.Error == nil {
		return errors.New("httpjson: envelope has no error")
	}
	return c.doGzJSON(ctx, errorsPath, env)
}

func (c *Client) doGzJSON(ctx context.Context, path string, payload any) (retErr error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	var hashHeader string
	if c.key != "" {
		hashHeader = misc.SumSHA256(plain, c.key)
	}

	buf, err := gzipBytes(plain)
	if err != nil {
		return err
	}
	defer bufferPool.Put(buf)
	gzBody := buf.Bytes()

	resp, err := c.sendWithRetry(ctx, path, func() (*http.Request, error) {
		return c.newGzJSONRequest(ctx, path, gzBody, hashHeader)
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()

	if err := drainAndDiscard(resp); err != nil {
		return err
	}
	return checkHTTPStatus(resp)
}

type httpStatusError struct {
	msg  string
	code int
}

func (e *httpStatusError) Error() string {
	return e.msg
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable,
		http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func isRetryableHTTP(err error) bool {
	if err == nil {
		return false
	}
	var se *httpStatusError
	if errors.As(err, &se) {
		return retryableStatus(se.code)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func gzipBytes(src []byte) (*bytes.Buffer, error) {
	buf := bufferPool.Get()
	zw := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(zw)
	zw.Reset(buf)
	if _, err := zw.Write(src); err != nil {
		_ = zw.Close()
		bufferPool.Put(buf)
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		bufferPool.Put(buf)
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf, nil
}

func (c *Client) newGzJSONRequest(ctx context.Context, path string, body []byte, hashHeader string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	if hashHeader != "" {
		req.Header.Set("HashSHA256", hashHeader)
	}

	return req, nil
}

// sendWithRetry retries transport failures and transient statuses; the final
// response is returned with its body still open.
func (c *Client) sendWithRetry(ctx context.Context, path string, mkReq func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	op := func() error {
		req, err := mkReq()
		if err != nil {
			return err
		}
		r, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		if retryableStatus(r.StatusCode) {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
			return &httpStatusError{code: r.StatusCode, msg: fmt.Sprintf("server status: %s", r.Status)}
		}
		resp = r
		return nil
	}
	notify := func(err error, attempt int, wait time.Duration) {
		c.log.Warn("delivery failed, retrying",
			zap.String("path", path), zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := misc.RetryNotify(ctx, misc.DefaultBackoff, isRetryableHTTP, op, notify); err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	return resp, nil
}

func drainAndDiscard(resp *http.Response) error {
	var r io.Reader = resp.Body
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("bad gzip: %w", err)
		}
		defer func() {
			_ = gr.Close()
		}()
		r = gr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("drain body: %w", err)
	}
	return nil
}

func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpStatusError{code: resp.StatusCode, msg: fmt.Sprintf("server status: %s", resp.Status)}
	}
	return nil
}
