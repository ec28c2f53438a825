// Package config loads and validates relay settings from the process
// environment. Settings are read once at startup and passed explicitly to
// the components that need them; nothing here re-reads the environment
// after Load returns.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Settings is the immutable runtime configuration of the relay.
type Settings struct {
	// Required credentials.
	OpenAIAPIKey  string // OPENAI_API_KEY
	WhatsAppToken string // WHATSAPP_TOKEN
	PhoneNumberID string // PHONE_NUMBER_ID
	VerifyToken   string // VERIFY_TOKEN

	// Document set for retrieval. Missing dir is valid (fallback mode).
	DataDir string // DATA_DIR

	// Graph API version segment, e.g. "v18.0".
	GraphVersion string // GRAPH_VERSION

	// Model selection.
	ChatModel      string // CHAT_MODEL
	EmbeddingModel string // EMBEDDING_MODEL
	STTModel       string // STT_MODEL
	TTSModel       string // TTS_MODEL
	TTSVoice       string // TTS_VOICE

	// OpenAI-compatible API base. Empty means the public endpoint.
	OpenAIBaseURL string // OPENAI_BASE_URL

	// HTTP server and worker pool.
	Port    int // PORT
	Workers int // WORKERS

	// Optional redis URL for webhook delivery dedup, e.g. redis://host:6379.
	RedisURL string // REDIS_URL
}

// DefaultSettings returns a Settings with defaults for every optional field.
func DefaultSettings() Settings {
	return Settings{
		DataDir:        "./data",
		GraphVersion:   "v18.0",
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		STTModel:       "whisper-1",
		TTSModel:       "tts-1",
		TTSVoice:       "alloy",
		OpenAIBaseURL:  "https://api.openai.com/v1",
		Port:           8080,
		Workers:        4,
	}
}

// required maps each mandatory environment variable to its Settings field.
var required = []string{
	"OPENAI_API_KEY",
	"WHATSAPP_TOKEN",
	"PHONE_NUMBER_ID",
	"VERIFY_TOKEN",
}

// Load reads the environment and returns validated Settings. All missing
// required variables are reported in a single error so a broken deployment
// is fixed in one pass instead of one restart per variable.
func Load() (Settings, error) {
	s := DefaultSettings()

	s.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	s.WhatsAppToken = os.Getenv("WHATSAPP_TOKEN")
	s.PhoneNumberID = os.Getenv("PHONE_NUMBER_ID")
	s.VerifyToken = os.Getenv("VERIFY_TOKEN")
	s.RedisURL = os.Getenv("REDIS_URL")

	overrideString(&s.DataDir, "DATA_DIR")
	overrideString(&s.GraphVersion, "GRAPH_VERSION")
	overrideString(&s.ChatModel, "CHAT_MODEL")
	overrideString(&s.EmbeddingModel, "EMBEDDING_MODEL")
	overrideString(&s.STTModel, "STT_MODEL")
	overrideString(&s.TTSModel, "TTS_MODEL")
	overrideString(&s.TTSVoice, "TTS_VOICE")
	overrideString(&s.OpenAIBaseURL, "OPENAI_BASE_URL")

	if err := overrideInt(&s.Port, "PORT"); err != nil {
		return Settings{}, err
	}
	if err := overrideInt(&s.Workers, "WORKERS"); err != nil {
		return Settings{}, err
	}
	if s.Workers < 1 {
		return Settings{}, fmt.Errorf("WORKERS must be at least 1, got %d", s.Workers)
	}

	var missing []string
	for _, name := range required {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Settings{}, fmt.Errorf("missing required environment variables: %s",
			strings.Join(missing, ", "))
	}

	s.OpenAIBaseURL = strings.TrimRight(s.OpenAIBaseURL, "/")
	return s, nil
}

func overrideString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", name, v)
	}
	*dst = n
	return nil
}
