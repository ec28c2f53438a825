// Package audio converts between speech and text through a hosted
// OpenAI-compatible audio API: /audio/transcriptions for speech-to-text and
// /audio/speech for synthesis.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds Bridge configuration.
type Config struct {
	APIKey   string
	BaseURL  string // e.g. https://api.openai.com/v1
	STTModel string // e.g. "whisper-1"
	TTSModel string // e.g. "tts-1"
	TTSVoice string // e.g. "alloy"
}

// Bridge performs speech-to-text and text-to-speech calls.
type Bridge struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewBridge creates a Bridge with a 30s request timeout.
func NewBridge(cfg Config) *Bridge {
	return &Bridge{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Transcribe sends audio bytes to the transcription endpoint and returns
// the transcript. mimeType names the inbound format (e.g. "audio/ogg") and
// only influences the multipart filename.
func (b *Bridge) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("no audio data")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model", b.cfg.STTModel); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", "inbound"+suffixFor(mimeType))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription API error %d: %s", resp.StatusCode, string(excerpt))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("parse transcription response: %w", err)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("empty transcript")
	}
	return text, nil
}

// Synthesize converts text to speech and writes the audio to destPath.
// The audio is written to a temp file in the destination dir and renamed
// into place, so a failed call never leaves a partial file behind.
func (b *Bridge) Synthesize(ctx context.Context, text, destPath string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text to synthesize")
	}

	body, _ := json.Marshal(map[string]string{
		"model": b.cfg.TTSModel,
		"voice": b.cfg.TTSVoice,
		"input": text,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("synthesis call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("synthesis API error %d: %s", resp.StatusCode, string(excerpt))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".tts-*")
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close audio file: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize audio file: %w", err)
	}
	return destPath, nil
}

// suffixFor maps a mime type to a file suffix, defaulting to .ogg
// (WhatsApp voice notes).
func suffixFor(mimeType string) string {
	if mimeType == "" {
		return ".ogg"
	}
	// Strip parameters like "audio/ogg; codecs=opus".
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	if i := strings.LastIndex(mimeType, "/"); i >= 0 && i < len(mimeType)-1 {
		return "." + mimeType[i+1:]
	}
	return ".ogg"
}
