// Package storeapi talks to the store server: authenticated requests carrying
// tagged-list bodies over a connection that trusts one pinned CA.
package storeapi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/logger"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/storefront/pkg/ttol"
	"github.com/nguyentranbao-ct/storefront/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Client issues blocking calls to store functions. Callers run them inside
// async tasks, never on the tick loop.
type Client interface {
	// Fetch GETs fn with params given as alternating keys and values.
	Fetch(ctx context.Context, fn string, params ...string) (ttol.List, error)
	// Post sends body, which may be nil, to fn.
	Post(ctx context.Context, fn string, body ttol.List, params ...string) (ttol.List, error)
	// Download GETs ref, a URL relative to the base, without asserting the
	// content type.
	Download(ctx context.Context, ref string) ([]byte, error)
	Resolve(ref string) (*url.URL, error)
}

type Options struct {
	BaseURL    string
	CAPEM      []byte
	Username   string
	SessionKey []byte
	Timeout    time.Duration
	RetryCount int
	Rate       float64
	Burst      int
	// ImageRate paces downloads separately from store functions, so images
	// never queue ahead of a checkout step.
	ImageRate float64
	// MaxBodyBytes caps response bodies; DefaultMaxBodyBytes when zero.
	MaxBodyBytes int
}

const DefaultMaxBodyBytes = 8 << 20

type client struct {
	base    *url.URL
	http    *resty.Client
	limiter *rate.Limiter
	images  *rate.Limiter
	metrics *prometheus.HistogramVec
}

// NewClient builds a client from the store and session configuration.
func NewClient(conf *config.Config) (Client, error) {
	key, err := conf.Session.SessionKey()
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	opts := Options{
		BaseURL:    conf.Store.BaseURL,
		Username:   conf.Session.Username,
		SessionKey: key,
		Timeout:    conf.Store.Timeout,
		RetryCount: conf.Store.RetryCount,
		Rate:       conf.Store.RatePerSecond,
		Burst:      conf.Store.Burst,

		ImageRate:    conf.Store.ImageRate,
		MaxBodyBytes: conf.Store.MaxBodyBytes,
	}
	switch {
	case conf.Store.CAPEM != "":
		opts.CAPEM = []byte(conf.Store.CAPEM)
	case conf.Store.CAFile != "":
		if opts.CAPEM, err = os.ReadFile(conf.Store.CAFile); err != nil {
			return nil, fmt.Errorf("read pinned CA: %w", err)
		}
	}
	return New(opts)
}

func New(opts Options) (Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	auth, err := AuthHeader(opts.Username, opts.SessionKey)
	if err != nil {
		return nil, err
	}
	metrics, err := util.GetHistogramVec("store_api_requests", "function", "status")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}

	hc := util.NewRestyClient(util.RestyOptions{
		Timeout:      opts.Timeout,
		RetryCount:   opts.RetryCount,
		RetryMethods: []string{http.MethodGet},
		Logger:       logger.MustNamed("storeapi"),
	})
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	hc.SetResponseBodyLimit(opts.MaxBodyBytes)
	hc.SetHeader("Authorization", auth)
	hc.SetHeader("User-Agent", "storefront")

	if base.Scheme == "https" || len(opts.CAPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(opts.CAPEM) {
			return nil, errors.New("pinned CA: no certificates found")
		}
		hc.SetTLSClientConfig(&tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		})
	}

	c := &client{
		base:    base,
		http:    hc,
		metrics: metrics,
	}
	if opts.Rate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.Rate), max(opts.Burst, 1))
	}
	if opts.ImageRate > 0 {
		c.images = rate.NewLimiter(rate.Limit(opts.ImageRate), max(opts.Burst, 1))
	}
	return c, nil
}

// AuthHeader is the Authorization value identifying a session:
// "Haven " followed by the base64 tagged encoding of (username, key).
func AuthHeader(username string, sessionKey []byte) (string, error) {
	blob, err := ttol.Marshal(ttol.List{ttol.String(username), ttol.Bytes(sessionKey)})
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	return "Haven " + base64.StdEncoding.EncodeToString(blob), nil
}

func (c *client) Resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, models.NewIOError("resolve "+ref, err)
	}
	return c.base.ResolveReference(u), nil
}

func (c *client) Fetch(ctx context.Context, fn string, params ...string) (ttol.List, error) {
	return c.call(ctx, http.MethodGet, fn, nil, params)
}

func (c *client) Post(ctx context.Context, fn string, body ttol.List, params ...string) (ttol.List, error) {
	return c.call(ctx, http.MethodPost, fn, body, params)
}

func (c *client) call(ctx context.Context, method, fn string, body ttol.List, params []string) (ttol.List, error) {
	target, err := c.Resolve(fn)
	if err != nil {
		return nil, err
	}
	query, err := pairs(params)
	if err != nil {
		return nil, models.NewIOError(fn, err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query)
	if body != nil {
		data, err := ttol.Marshal(body)
		if err != nil {
			return nil, models.NewIOError(fn, err)
		}
		req.SetHeader("Content-Type", ttol.MediaType).
			SetContentLength(true).
			SetBody(data)
	}

	resp, err := c.do(ctx, c.limiter, fn, method, target.String(), req)
	if err != nil {
		return nil, err
	}
	if ct := resp.Header().Get("Content-Type"); ct != ttol.MediaType {
		return nil, models.NewIOError(fn, fmt.Errorf("unexpected content-type: %q", ct))
	}
	l, err := ttol.Unmarshal(resp.Body())
	if err != nil {
		return nil, models.NewIOError(fn, err)
	}
	return l, nil
}

func (c *client) Download(ctx context.Context, ref string) ([]byte, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, c.images, "download", http.MethodGet, target.String(), c.http.R().SetContext(ctx))
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (c *client) do(ctx context.Context, limiter *rate.Limiter, fn, method, target string, req *resty.Request) (*resty.Response, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, models.NewIOError(fn, err)
		}
	}
	start := time.Now()
	resp, err := req.Execute(method, target)
	status := "error"
	if resp != nil && resp.RawResponse != nil {
		status = strconv.Itoa(resp.StatusCode())
	}
	c.metrics.WithLabelValues(fn, status).Observe(time.Since(start).Seconds())
	logctx.Debugw(ctx, "store request", "function", fn, "method", method, "status", status,
		"latency_ms", time.Since(start).Milliseconds())

	if err != nil {
		return nil, models.NewIOError(fn, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, models.NewIOError(fn, fmt.Errorf("unexpected status: %s", resp.Status()))
	}
	return resp, nil
}

func pairs(params []string) (url.Values, error) {
	if len(params)%2 != 0 {
		return nil, fmt.Errorf("odd number of query parameters: %d", len(params))
	}
	ret := url.Values{}
	for i := 0; i < len(params); i += 2 {
		ret.Add(params[i], params[i+1])
	}
	return ret, nil
}
