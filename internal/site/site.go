// Package site talks to the external web services: the deck tracking API,
// an image host, a paste host and a poll service.
package site

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/config"
)

// maxResponseSize bounds how much of a response body is read
const maxResponseSize = 1 << 20

// Client implements the external service calls over HTTP
type Client struct {
	cfg  config.SiteConfig
	http *http.Client
}

// NewClient creates a client with the configured endpoints and timeout
func NewClient(cfg config.SiteConfig) *Client {
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// FormatAPI substitutes {0}, {1}, ... in pattern with the query-escaped args
func FormatAPI(pattern string, args ...string) string {
	for i, a := range args {
		pattern = strings.ReplaceAll(pattern, "{"+strconv.Itoa(i)+"}", url.QueryEscape(a))
	}
	return pattern
}

// CallAPI performs a GET on the formatted pattern. An empty pattern means
// the call is not configured and is skipped.
func (c *Client) CallAPI(ctx context.Context, pattern string, args ...string) error {
	if pattern == "" {
		return nil
	}
	target := FormatAPI(pattern, args...)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api call failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("api call returned %s", resp.Status)
	}
	slog.Debug("api call done", "url", target, "status", resp.StatusCode)
	return nil
}

type strawpollRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
	Multi   bool     `json:"multi"`
}

type strawpollResponse struct {
	ID int64 `json:"id"`
}

// CreateStrawpoll creates a poll and returns its URL, or "" on failure
func (c *Client) CreateStrawpoll(ctx context.Context, question string, options []string) string {
	body, err := json.Marshal(strawpollRequest{Title: question, Options: options})
	if err != nil {
		return ""
	}

	var out strawpollResponse
	if err := c.postJSON(ctx, c.cfg.StrawpollURL, "application/json", bytes.NewReader(body), nil, &out); err != nil {
		slog.Warn("strawpoll creation failed", "error", err)
		return ""
	}
	if out.ID <= 0 {
		slog.Warn("strawpoll creation returned no id")
		return ""
	}

	base, err := url.Parse(c.cfg.StrawpollURL)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s://%s/%d", base.Scheme, base.Host, out.ID)
}

type imageResponse struct {
	Data struct {
		Link string `json:"link"`
	} `json:"data"`
	Success bool `json:"success"`
}

// CreateImage uploads a PNG to the image host and returns its link
func (c *Client) CreateImage(ctx context.Context, png []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "deck.png")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(png); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	headers := map[string]string{}
	if c.cfg.ImgurClientID != "" {
		headers["Authorization"] = "Client-ID " + c.cfg.ImgurClientID
	}

	var out imageResponse
	if err := c.postJSON(ctx, c.cfg.ImageHostURL, mw.FormDataContentType(), &body, headers, &out); err != nil {
		return "", fmt.Errorf("image upload failed: %w", err)
	}
	if out.Data.Link == "" {
		return "", fmt.Errorf("image upload returned no link")
	}
	return out.Data.Link, nil
}

type pasteResponse struct {
	Key string `json:"key"`
}

// CreatePaste uploads text to the paste host and returns its link
func (c *Client) CreatePaste(ctx context.Context, text []byte) (string, error) {
	base := strings.TrimRight(c.cfg.PasteHostURL, "/")

	var out pasteResponse
	if err := c.postJSON(ctx, base+"/documents", "text/plain; charset=utf-8", bytes.NewReader(text), nil, &out); err != nil {
		return "", fmt.Errorf("paste upload failed: %w", err)
	}
	if out.Key == "" {
		return "", fmt.Errorf("paste upload returned no key")
	}
	return base + "/" + out.Key, nil
}

func (c *Client) postJSON(ctx context.Context, target, contentType string, body io.Reader, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s returned %s", target, resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
