package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeTestPNG(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{
			name:  "simple list",
			reply: "dog, beach, sunset",
			want:  []string{"dog", "beach", "sunset"},
		},
		{
			name:  "trailing period and whitespace",
			reply: " dog ,  beach,sunset. ",
			want:  []string{"dog", "beach", "sunset"},
		},
		{
			name:  "empty entries dropped",
			reply: "dog,, ,beach",
			want:  []string{"dog", "beach"},
		},
		{
			name:  "single tag",
			reply: "cat",
			want:  []string{"cat"},
		},
		{
			name:  "empty reply",
			reply: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTags(tt.reply)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseTags(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantHard bool
	}{
		{name: "unauthorized is hard", status: 401, body: "invalid key", wantHard: true},
		{name: "forbidden is hard", status: 403, body: "blocked", wantHard: true},
		{name: "quota exhaustion is hard", status: 429, body: "daily QUOTA exceeded", wantHard: true},
		{name: "plain rate limit is transient", status: 429, body: "slow down", wantHard: false},
		{name: "server error is transient", status: 500, body: "oops", wantHard: false},
		{name: "bad request is transient", status: 400, body: "image too large", wantHard: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("gemini", tt.status, tt.body)
			if err.Fatal() != tt.wantHard {
				t.Errorf("classify(%d, %q).Fatal() = %v, want %v", tt.status, tt.body, err.Fatal(), tt.wantHard)
			}
			if err.Status != tt.status {
				t.Errorf("classify() status = %d, want %d", err.Status, tt.status)
			}
		})
	}
}

func TestClassifyTruncatesBody(t *testing.T) {
	err := classify("gemini", 500, strings.Repeat("x", 1000))
	if len(err.Message) > 300 {
		t.Errorf("classify() message length = %d, want at most 300", len(err.Message))
	}
}

func TestGeminiAnnotate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request body did not decode: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Errorf("request shape = %+v, want one content with image and prompt parts", req)
		}

		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "dog, beach, sunset"}},
				},
			}},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	g := NewGemini("test-key", "gemini-2.5-flash", 5*time.Second, 0)
	g.baseURL = srv.URL

	tags, err := g.Annotate(context.Background(), writeTestPNG(t, 4, 4))
	if err != nil {
		t.Fatalf("Annotate() failed: %v", err)
	}
	want := []string{"dog", "beach", "sunset"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("Annotate() = %v, want %v", tags, want)
	}
	if !strings.Contains(gotPath, "gemini-2.5-flash") {
		t.Errorf("request path = %q, want model name in it", gotPath)
	}
}

func TestGeminiAnnotateAuthFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "API key not valid", http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewGemini("bad-key", "gemini-2.5-flash", 5*time.Second, 0)
	g.baseURL = srv.URL

	_, err := g.Annotate(context.Background(), writeTestPNG(t, 4, 4))
	if err == nil {
		t.Fatal("Annotate() = nil error, want auth failure")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("Annotate() error = %T, want *ProviderError", err)
	}
	if !pe.Fatal() {
		t.Error("401 error not classified as fatal")
	}
}

func TestGeminiAnnotateServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGemini("key", "gemini-2.5-flash", 5*time.Second, 0)
	g.baseURL = srv.URL

	_, err := g.Annotate(context.Background(), writeTestPNG(t, 4, 4))
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("Annotate() error = %v, want *ProviderError", err)
	}
	if pe.Fatal() {
		t.Error("500 error classified as fatal, want transient")
	}
}

func TestGeminiAnnotateEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	g := NewGemini("key", "gemini-2.5-flash", 5*time.Second, 0)
	g.baseURL = srv.URL

	if _, err := g.Annotate(context.Background(), writeTestPNG(t, 4, 4)); err == nil {
		t.Error("Annotate() with empty candidates = nil, want error")
	}
}

func TestMistralAnnotate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("request path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		var req mistralRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request body did not decode: %v", err)
		}
		if req.Model != "pixtral-12b-2409" {
			t.Errorf("request model = %q, want pixtral-12b-2409", req.Model)
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]string{"content": "cat, window"},
			}},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	m := NewMistral("test-key", "pixtral-12b-2409", 5*time.Second, 0)
	m.baseURL = srv.URL

	tags, err := m.Annotate(context.Background(), writeTestPNG(t, 4, 4))
	if err != nil {
		t.Fatalf("Annotate() failed: %v", err)
	}
	want := []string{"cat", "window"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("Annotate() = %v, want %v", tags, want)
	}
}

func TestMistralAnnotateQuotaExhaustedIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "monthly quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := NewMistral("key", "pixtral-12b-2409", 5*time.Second, 0)
	m.baseURL = srv.URL

	_, err := m.Annotate(context.Background(), writeTestPNG(t, 4, 4))
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("Annotate() error = %v, want *ProviderError", err)
	}
	if !pe.Fatal() {
		t.Error("quota 429 not classified as fatal")
	}
}

func TestImagePayloadPassThrough(t *testing.T) {
	path := writeTestPNG(t, 16, 16)

	data, mime, err := imagePayload(path, 2048)
	if err != nil {
		t.Fatalf("imagePayload() failed: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q, want image/png", mime)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, raw) {
		t.Error("payload for small image differs from file bytes, want pass-through")
	}
}

func TestImagePayloadDownscalesLargeImages(t *testing.T) {
	path := writeTestPNG(t, 64, 32)

	data, mime, err := imagePayload(path, 16)
	if err != nil {
		t.Fatalf("imagePayload() failed: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg after downscale", mime)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("payload does not decode as JPEG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > 16 || b.Dy() > 16 {
		t.Errorf("payload dimensions = %dx%d, want both at most 16", b.Dx(), b.Dy())
	}
}

func TestImagePayloadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := imagePayload(path, 2048); err == nil {
		t.Error("imagePayload(pdf) = nil error, want unsupported format")
	}
}

func TestImagePayloadUndecodableBytesSentAsIs(t *testing.T) {
	// HEIC has no stdlib decoder; the original bytes go out unchanged.
	path := filepath.Join(t.TempDir(), "photo.heic")
	raw := []byte("ftypheic-opaque-bytes")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, mime, err := imagePayload(path, 16)
	if err != nil {
		t.Fatalf("imagePayload() failed: %v", err)
	}
	if mime != "image/heic" {
		t.Errorf("mime = %q, want image/heic", mime)
	}
	if !bytes.Equal(data, raw) {
		t.Error("undecodable payload was altered, want original bytes")
	}
}
