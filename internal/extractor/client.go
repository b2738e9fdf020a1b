package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/geocoder89/idprint/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxResponseBytes bounds what we buffer from upstream.
const maxResponseBytes = 16 << 20

// Extractor runs one paid extraction and returns the raw upstream body.
// Every failure is a *points.ProcessingError or *points.InputError.
type Extractor interface {
	Extract(ctx context.Context, op points.Operation, p Payload) ([]byte, error)
}

type ClientConfig struct {
	PDFURL         string
	ScreenshotsURL string
	Token          string
	Timeout        time.Duration
}

type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	prom       *observability.Prom
}

func NewClient(cfg ClientConfig, prom *observability.Prom) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg:  cfg,
		prom: prom,
	}
}

func (c *Client) endpoint(op points.Operation) string {
	if op == points.OpProcessScreenshots {
		return c.cfg.ScreenshotsURL
	}
	return c.cfg.PDFURL
}

func (c *Client) Extract(ctx context.Context, op points.Operation, p Payload) ([]byte, error) {
	if err := p.Validate(op); err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := c.do(ctx, op, p)
	c.prom.ObserveUpstream(string(op), outcomeOf(err), time.Since(start))

	return body, err
}

func (c *Client) do(ctx context.Context, op points.Operation, p Payload) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, np := range p.fields(op) {
		if err := writePart(mw, np.field, np.part); err != nil {
			return nil, &points.ProcessingError{Message: "build upstream request", Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, &points.ProcessingError{Message: "build upstream request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(op), &buf)
	if err != nil {
		return nil, &points.ProcessingError{Message: "build upstream request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &points.ProcessingError{
			Message: "extractor unreachable",
			Timeout: isTimeout(err),
			Err:     err,
		}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, &points.ProcessingError{
			Status:  res.StatusCode,
			Message: "read upstream response",
			Timeout: isTimeout(err),
			Err:     err,
		}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &points.ProcessingError{
			Status:  res.StatusCode,
			Message: upstreamMessage(body, op),
		}
	}

	return body, nil
}

func writePart(mw *multipart.Writer, field string, p *Part) error {
	filename := p.Filename
	if filename == "" {
		filename = field
	}
	ct := p.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", ct)

	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = w.Write(p.Data)
	return err
}

// upstreamMessage prefers the upstream's own "message" field.
func upstreamMessage(body []byte, op points.Operation) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		if s := strings.TrimSpace(env.Message); s != "" {
			return s
		}
		if s := strings.TrimSpace(env.Error); s != "" {
			return s
		}
	}

	if op == points.OpProcessScreenshots {
		return "Failed to process screenshots"
	}
	return "Failed to process PDF"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}

	var pe *points.ProcessingError
	if errors.As(err, &pe) {
		switch {
		case pe.Timeout:
			return "timeout"
		case pe.Status >= 500:
			return "5xx"
		case pe.Status >= 400:
			return "4xx"
		}
	}
	return "error"
}
