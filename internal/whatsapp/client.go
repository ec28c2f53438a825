// Package whatsapp wraps the WhatsApp Cloud (Graph) API calls the relay
// needs: media download, media upload, and message sending. Every call is a
// single bearer-authenticated HTTP request with a bounded timeout.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// maxTextLen caps outbound text bodies; the Cloud API rejects oversized ones.
const maxTextLen = 1000

var (
	// ErrMediaNotFound is returned when a media id resolves to no download URL.
	ErrMediaNotFound = errors.New("media url missing from response")
	// ErrNoMediaID is returned when an upload response carries no media id.
	ErrNoMediaID = errors.New("media id missing from upload response")
)

// Config holds Client configuration.
type Config struct {
	Token         string
	PhoneNumberID string
	GraphVersion  string // e.g. "v18.0"
	BaseURL       string // override for tests; default https://graph.facebook.com
}

// Client is a WhatsApp Cloud API client.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client with a 30s request timeout.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://graph.facebook.com"
	}
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = "v18.0"
	}
	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/") + "/" + cfg.GraphVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// DownloadMedia fetches the binary content of an inbound media asset.
// The Graph API requires two steps: resolve the media id to a short-lived
// signed URL, then fetch the bytes from that URL with the same bearer token.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, error) {
	metaURL := fmt.Sprintf("%s/%s?fields=url", c.baseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve media %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("resolve media", resp)
	}

	var meta struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("parse media metadata: %w", err)
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("media %s: %w", mediaID, ErrMediaNotFound)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, err
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	dlResp, err := c.httpClient.Do(dlReq)
	if err != nil {
		return nil, fmt.Errorf("download media %s: %w", mediaID, err)
	}
	defer dlResp.Body.Close()

	if dlResp.StatusCode != http.StatusOK {
		return nil, apiError("download media", dlResp)
	}
	return io.ReadAll(dlResp.Body)
}

// UploadMedia uploads a local audio file and returns the media id the
// Cloud API assigns to it.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read upload file: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/media", c.baseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apiError("upload media", resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("parse upload response: %w", err)
	}
	if result.ID == "" {
		return "", ErrNoMediaID
	}
	return result.ID, nil
}

// SendText sends a plain text message. Bodies longer than the Cloud API
// limit are truncated rather than rejected.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if body == "" {
		return fmt.Errorf("text message body is required")
	}
	if len(body) > maxTextLen {
		// Cut on a rune boundary; a byte cut can split a multi-byte
		// character and produce invalid UTF-8.
		cut := maxTextLen
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return c.send(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	})
}

// SendAudio sends an audio message referencing a previously uploaded media id.
func (c *Client) SendAudio(ctx context.Context, to, mediaID string) error {
	if mediaID == "" {
		return fmt.Errorf("audio media id is required")
	}
	return c.send(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "audio",
		"audio":             map[string]string{"id": mediaID},
	})
}

func (c *Client) send(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError("send message", resp)
	}
	return nil
}

// apiError builds an error from a non-2xx Graph API response, keeping a
// short excerpt of the body for log correlation.
func apiError(op string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: graph api error %d: %s", op, resp.StatusCode,
		strings.TrimSpace(string(excerpt)))
}
