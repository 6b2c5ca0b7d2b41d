// Package runner talks to an external inference runner over HTTP. The runner
// hosts the learned models; this side only ships pixels and configuration.
//
// Protocol:
//
//	POST /load      {"model": name}           -> 2xx when the model is resident
//	POST /unload    {"model": name}           -> best effort
//	POST /reclaim                             -> best effort cache clearing
//	POST /inpaint   multipart image, mask, config, model[, paint_by_example] -> PNG
//	POST /plugins/{name}  multipart image + plugin fields and files     -> image
//
// A 507 status, or a JSON error body with code "resource_exhausted", reports
// that the runner's device ran out of memory.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"inpaintd/internal/imgproc"
	"inpaintd/internal/schema"
)

// ErrResourceExhausted is wrapped by errors reporting runner memory exhaustion.
var ErrResourceExhausted = errors.New("runner resource exhausted")

const (
	codeResourceExhausted = "resource_exhausted"
	maxErrorBody          = 4096
	reclaimTimeout        = 5 * time.Second
)

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *resty.Client
	log     zerolog.Logger
}

// New constructs a Client. reqTimeout bounds each call end to end; the
// transport dialer only bounds connection setup.
func New(baseURL string, reqTimeout, connectTimeout time.Duration, log zerolog.Logger) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	baseURL = strings.TrimRight(baseURL, "/")
	hc := resty.New().
		SetTransport(tr).
		SetBaseURL(baseURL).
		SetHeader("User-Agent", "inpaintd")
	if reqTimeout > 0 {
		hc.SetTimeout(reqTimeout)
	}
	return &Client{
		baseURL: baseURL,
		http:    hc,
		log:     log.With().Str("component", "runner").Logger(),
	}
}

// BaseURL returns the runner address.
func (c *Client) BaseURL() string { return c.baseURL }

// Load asks the runner to make model resident.
func (c *Client) Load(ctx context.Context, model string) error {
	return c.postJSON(ctx, "/load", map[string]string{"model": model})
}

// Unload releases model on the runner.
func (c *Client) Unload(ctx context.Context, model string) error {
	return c.postJSON(ctx, "/unload", map[string]string{"model": model})
}

// Reclaim asks the runner to clear device caches. Failures are logged only.
func (c *Client) Reclaim() {
	ctx, cancel := context.WithTimeout(context.Background(), reclaimTimeout)
	defer cancel()
	if err := c.postJSON(ctx, "/reclaim", struct{}{}); err != nil {
		c.log.Debug().Err(err).Msg("reclaim")
	}
}

// Inpaint runs model on img and mask with cfg and returns the opaque RGB
// result.
func (c *Client) Inpaint(ctx context.Context, model string, img *image.NRGBA, mask *image.Gray, cfg *schema.Config) (*image.NRGBA, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	form := map[string]string{"model": model, "config": string(cfgJSON)}
	images := map[string]image.Image{"image": img, "mask": mask}
	if cfg.PaintByExampleImage != nil {
		images["paint_by_example"] = cfg.PaintByExampleImage
	}
	body, err := c.postMultipart(ctx, "/inpaint", form, images, nil)
	if err != nil {
		return nil, err
	}
	d, err := imgproc.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("runner returned undecodable image: %w", err)
	}
	return d.RGB, nil
}

// RunPlugin sends img with the plugin's fields and side files to the runner
// and returns the decoded result, including any alpha it carries.
func (c *Client) RunPlugin(ctx context.Context, name string, img *image.NRGBA, form map[string]string, files map[string][]byte) (*imgproc.Decoded, error) {
	body, err := c.postMultipart(ctx, "/plugins/"+url.PathEscape(name), form, map[string]image.Image{"image": img}, files)
	if err != nil {
		return nil, err
	}
	d, err := imgproc.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("runner returned undecodable image: %w", err)
	}
	return d, nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetError(&errorBody{}).
		Post(path)
	return checkResponse(ctx, resp, err)
}

func (c *Client) postMultipart(ctx context.Context, path string, form map[string]string, images map[string]image.Image, files map[string][]byte) ([]byte, error) {
	req := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetError(&errorBody{})
	for k, img := range images {
		data, _, err := imgproc.Encode(img, imgproc.FormatPNG, 0, imgproc.Metadata{})
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		req.SetMultipartField(k, k+".png", "image/png", bytes.NewReader(data))
	}
	for k, data := range files {
		req.SetFileReader(k, k, bytes.NewReader(data))
	}
	resp, err := req.Post(path)
	if err := checkResponse(ctx, resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// checkResponse folds transport failures and non-2xx statuses into one error.
// A JSON error body is decoded by resty via SetError; anything else is quoted
// from the raw body.
func checkResponse(ctx context.Context, resp *resty.Response, err error) error {
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("runner request: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	msg := strings.TrimSpace(resp.String())
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	var code string
	if eb, ok := resp.Error().(*errorBody); ok && (eb.Error != "" || eb.Code != "") {
		msg, code = eb.Error, eb.Code
	}
	if resp.StatusCode() == http.StatusInsufficientStorage || code == codeResourceExhausted {
		return fmt.Errorf("%w: %s", ErrResourceExhausted, msg)
	}
	return fmt.Errorf("runner http error: %s: %s", resp.Status(), msg)
}
