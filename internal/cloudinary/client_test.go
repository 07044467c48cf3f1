package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pixel = "data:image/png;base64,iVBORw0KGgo="

func TestIsDataURL(t *testing.T) {
	assert.True(t, IsDataURL(pixel))
	assert.True(t, IsDataURL("data:image/jpeg;base64,AAAA"))
	assert.False(t, IsDataURL("https://res.cloudinary.com/demo/sig.png"))
	assert.False(t, IsDataURL("data:text/plain;base64,AAAA"))
	assert.False(t, IsDataURL("data:image/png;base64"))
	assert.False(t, IsDataURL(""))
}

func TestSignIgnoresKeyAndFile(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "100", "folder": "sig", "api_key": "key", "file": "x"})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=sig&timestamp=100secret")))
	assert.Equal(t, want, got)
}

func TestUpload(t *testing.T) {
	var seen map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/upload", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		seen = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			seen[k] = v[0]
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"sig/1","secure_url":"https://res.cloudinary.com/demo/sig/1.png"}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "signatures")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	url, err := c.Upload(context.Background(), pixel)
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/sig/1.png", url)

	assert.Equal(t, pixel, seen["file"])
	assert.Equal(t, "signatures", seen["folder"])
	assert.Equal(t, "1700000000", seen["timestamp"])
	assert.Equal(t, c.sign(map[string]string{"timestamp": "1700000000", "folder": "signatures"}), seen["signature"])
}

func TestUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "")
	c.BaseURL = srv.URL
	_, err := c.Upload(context.Background(), pixel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestConfigured(t *testing.T) {
	assert.True(t, New("demo", "key", "secret", "").Configured())
	assert.False(t, New("", "key", "secret", "").Configured())
	var nilClient *Client
	assert.False(t, nilClient.Configured())
}
