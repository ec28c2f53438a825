package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{
		Token:         "test-token",
		PhoneNumberID: "555000",
		GraphVersion:  "v18.0",
		BaseURL:       baseURL,
	})
}

func TestDownloadMedia_TwoStep(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v18.0/media_123":
			assert.Equal(t, "url", r.URL.Query().Get("fields"))
			json.NewEncoder(w).Encode(map[string]string{"url": srv.URL + "/signed/blob"})
		case "/signed/blob":
			w.Write([]byte("ogg-bytes"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	data, err := testClient(srv.URL).DownloadMedia(context.Background(), "media_123")
	require.NoError(t, err)
	assert.Equal(t, []byte("ogg-bytes"), data)
}

func TestDownloadMedia_MissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).DownloadMedia(context.Background(), "media_123")
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestDownloadMedia_ResolveError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).DownloadMedia(context.Background(), "media_123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestUploadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/555000/media", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whatsapp", r.FormValue("messaging_product"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "reply.mp3", hdr.Filename)

		json.NewEncoder(w).Encode(map[string]string{"id": "uploaded_42"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "reply.mp3")
	require.NoError(t, os.WriteFile(path, []byte("mp3-bytes"), 0644))

	id, err := testClient(srv.URL).UploadMedia(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "uploaded_42", id)
}

func TestUploadMedia_NoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "reply.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := testClient(srv.URL).UploadMedia(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoMediaID)
}

func TestUploadMedia_MissingFile(t *testing.T) {
	_, err := testClient("http://unused").UploadMedia(context.Background(), "/no/such/file.mp3")
	assert.Error(t, err)
}

func TestSendText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/555000/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testClient(srv.URL).SendText(context.Background(), "34123456789", "hola")
	require.NoError(t, err)

	assert.Equal(t, "whatsapp", got["messaging_product"])
	assert.Equal(t, "34123456789", got["to"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, map[string]any{"body": "hola"}, got["text"])
}

func TestSendText_Truncates(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	long := strings.Repeat("a", 2*maxTextLen)
	err := testClient(srv.URL).SendText(context.Background(), "1", long)
	require.NoError(t, err)

	body := got["text"].(map[string]any)["body"].(string)
	assert.Len(t, body, maxTextLen)
}

func TestSendText_TruncatesOnRuneBoundary(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	// "é" is two bytes; placed so the byte limit falls inside it.
	long := strings.Repeat("a", maxTextLen-1) + strings.Repeat("é", 10)
	err := testClient(srv.URL).SendText(context.Background(), "1", long)
	require.NoError(t, err)

	body := got["text"].(map[string]any)["body"].(string)
	assert.True(t, utf8.ValidString(body))
	assert.LessOrEqual(t, len(body), maxTextLen)
	assert.Equal(t, strings.Repeat("a", maxTextLen-1), body)
}

func TestSendText_EmptyBody(t *testing.T) {
	err := testClient("http://unused").SendText(context.Background(), "1", "")
	assert.Error(t, err)
}

func TestSendAudio(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	err := testClient(srv.URL).SendAudio(context.Background(), "34123456789", "uploaded_42")
	require.NoError(t, err)

	assert.Equal(t, "audio", got["type"])
	assert.Equal(t, map[string]any{"id": "uploaded_42"}, got["audio"])
	// Tagged send: audio payloads never carry a text field.
	assert.NotContains(t, got, "text")
}

func TestSend_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"recipient unknown"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := testClient(srv.URL).SendText(context.Background(), "1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "recipient unknown")
}
