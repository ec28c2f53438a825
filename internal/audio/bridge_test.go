package audio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBridge(baseURL string) *Bridge {
	return NewBridge(Config{
		APIKey:   "sk-test",
		BaseURL:  baseURL,
		STTModel: "whisper-1",
		TTSModel: "tts-1",
		TTSVoice: "alloy",
	})
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "inbound.ogg", hdr.Filename)

		json.NewEncoder(w).Encode(map[string]string{"text": " ¿Cuál es tu nombre? "})
	}))
	defer srv.Close()

	text, err := testBridge(srv.URL).Transcribe(context.Background(), []byte("ogg"), "audio/ogg; codecs=opus")
	require.NoError(t, err)
	assert.Equal(t, "¿Cuál es tu nombre?", text)
}

func TestTranscribe_EmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "  "})
	}))
	defer srv.Close()

	_, err := testBridge(srv.URL).Transcribe(context.Background(), []byte("ogg"), "audio/ogg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty transcript")
}

func TestTranscribe_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testBridge(srv.URL).Transcribe(context.Background(), []byte("ogg"), "audio/ogg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTranscribe_NoData(t *testing.T) {
	_, err := testBridge("http://unused").Transcribe(context.Background(), nil, "audio/ogg")
	assert.Error(t, err)
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tts-1", req["model"])
		assert.Equal(t, "alloy", req["voice"])
		assert.Equal(t, "hola", req["input"])
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out", "reply.mp3")
	path, err := testBridge(srv.URL).Synthesize(context.Background(), "hola", dest)
	require.NoError(t, err)
	assert.Equal(t, dest, path)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), data)
}

func TestSynthesize_NoPartialFileOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "reply.mp3")
	_, err := testBridge(srv.URL).Synthesize(context.Background(), "hola", dest)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSynthesize_EmptyText(t *testing.T) {
	_, err := testBridge("http://unused").Synthesize(context.Background(), " ", "/tmp/x.mp3")
	assert.Error(t, err)
}

func TestSuffixFor(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"", ".ogg"},
		{"audio/ogg", ".ogg"},
		{"audio/ogg; codecs=opus", ".ogg"},
		{"audio/mpeg", ".mpeg"},
		{"garbage", ".ogg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, suffixFor(tt.mime), "mime %q", tt.mime)
	}
}
