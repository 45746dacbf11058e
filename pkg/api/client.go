package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/httputil"
)

// Client calls a mosaic server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the server at base, e.g.
// "http://localhost:8000". A nil http client uses httputil.NewClient.
func NewClient(base string, h *http.Client) *Client {
	if h == nil {
		h = httputil.NewClient(0)
	}
	return &Client{base: strings.TrimRight(base, "/"), http: h}
}

// Start uploads origin (encoded image bytes) and starts a worker.
func (c *Client) Start(ctx context.Context, origin []byte, hashtags []string, tile []uint32, blocked []string) (string, error) {
	req := StartRequest{
		Origin:       base64.StdEncoding.EncodeToString(origin),
		Hashtags:     hashtags,
		TileSize:     tile,
		BlockedUsers: blocked,
	}
	var resp StartResponse
	if err := c.do(ctx, http.MethodPost, "/workers", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// List returns the ids of running workers.
func (c *Client) List(ctx context.Context) ([]string, error) {
	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, "/workers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Art fetches the latest snapshot of worker id.
func (c *Client) Art(ctx context.Context, id string) (*ArtResponse, error) {
	var resp ArtResponse
	if err := c.do(ctx, http.MethodGet, "/workers/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop stops worker id.
func (c *Client) Stop(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/workers/"+id, nil, nil)
}

// Submit sends a direct post; img holds encoded, tile sized image bytes.
func (c *Client) Submit(ctx context.Context, id string, img []byte, user, hashtag string) error {
	req := PostRequest{
		Image:    base64.StdEncoding.EncodeToString(img),
		UserName: user,
		Hashtag:  hashtag,
	}
	return c.do(ctx, http.MethodPost, "/workers/"+id+"/posts", req, nil)
}

// Block drops future feed posts by user on worker id.
func (c *Client) Block(ctx context.Context, id, user string) error {
	return c.do(ctx, http.MethodPost, "/workers/"+id+"/blocked", BlockRequest{UserName: user}, nil)
}

// ArtPNG decodes the mosaic image of an art response.
func ArtPNG(resp *ArtResponse) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(resp.MosaicArt)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "decode mosaic art")
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Code != "" {
			return errors.New(errors.Code(e.Code), "%s", e.Error)
		}
		return errors.New(errors.ErrCodeNetwork, "%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
