// Package relay drives the end-to-end flow for one inbound message: answer
// text with text, answer a voice note with a voice note. Each message is
// independent — a failure aborts that message only and the sender gets a
// best-effort apology.
package relay

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// User-facing replies, matching the deployed bot's locale.
const (
	apologyReply   = "Ocurrió un error procesando tu mensaje. Por favor, intenta nuevamente."
	emptyTextReply = "No recibí texto. ¿Puedes intentarlo de nuevo?"
)

// Kind discriminates inbound message types.
type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
)

// Message is an inbound message normalized out of the webhook payload.
type Message struct {
	ID       string // provider message id, used for dedup and log correlation
	From     string // sender identifier
	Kind     Kind
	Text     string // set when Kind == KindText
	MediaID  string // set when Kind == KindAudio
	MimeType string // set when Kind == KindAudio
}

// Messenger is the outbound messaging surface the relay needs.
type Messenger interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, error)
	UploadMedia(ctx context.Context, path string) (string, error)
	SendText(ctx context.Context, to, body string) error
	SendAudio(ctx context.Context, to, mediaID string) error
}

// Responder answers a free-text question.
type Responder interface {
	Answer(ctx context.Context, question string) (string, error)
}

// AudioBridge converts between speech and text.
type AudioBridge interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	Synthesize(ctx context.Context, text, destPath string) (string, error)
}

// Service orchestrates per-message processing.
type Service struct {
	messenger  Messenger
	responder  Responder
	audio      AudioBridge
	scratchDir string
}

// NewService creates a Service. scratchDir holds synthesized audio files
// between synthesis and upload; empty means the OS temp dir.
func NewService(messenger Messenger, responder Responder, audio AudioBridge, scratchDir string) *Service {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Service{
		messenger:  messenger,
		responder:  responder,
		audio:      audio,
		scratchDir: scratchDir,
	}
}

// Handle processes one message to completion. Errors are logged and turned
// into an apology reply; they never propagate to the webhook acknowledgment.
func (s *Service) Handle(ctx context.Context, msg Message) {
	var err error
	switch msg.Kind {
	case KindText:
		err = s.handleText(ctx, msg)
	case KindAudio:
		err = s.handleAudio(ctx, msg)
	default:
		log.Printf("[Relay] ignoring message %s from %s: unsupported kind %q", msg.ID, msg.From, msg.Kind)
		return
	}
	if err != nil {
		log.Printf("[Relay] message %s from %s failed: %v", msg.ID, msg.From, err)
		if sendErr := s.messenger.SendText(ctx, msg.From, apologyReply); sendErr != nil {
			log.Printf("[Relay] apology to %s failed: %v", msg.From, sendErr)
		}
	}
}

func (s *Service) handleText(ctx context.Context, msg Message) error {
	if msg.Text == "" {
		return s.messenger.SendText(ctx, msg.From, emptyTextReply)
	}

	answer, err := s.responder.Answer(ctx, msg.Text)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	if err := s.messenger.SendText(ctx, msg.From, answer); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// handleAudio runs the six-step voice flow: download, transcribe, answer,
// synthesize, upload, send.
func (s *Service) handleAudio(ctx context.Context, msg Message) error {
	data, err := s.messenger.DownloadMedia(ctx, msg.MediaID)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}

	transcript, err := s.audio.Transcribe(ctx, data, msg.MimeType)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	log.Printf("[Relay] message %s transcript: %s", msg.ID, truncate(transcript, 100))

	answer, err := s.responder.Answer(ctx, transcript)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}

	dest := filepath.Join(s.scratchDir, fmt.Sprintf("reply-%s-%d.mp3", msg.From, time.Now().UnixNano()))
	path, err := s.audio.Synthesize(ctx, answer, dest)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer os.Remove(path)

	mediaID, err := s.messenger.UploadMedia(ctx, path)
	if err != nil {
		return fmt.Errorf("upload media: %w", err)
	}

	if err := s.messenger.SendAudio(ctx, msg.From, mediaID); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
