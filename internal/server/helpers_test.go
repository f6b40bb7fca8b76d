package server

import (
	"bytes"
	"image/png"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/testutil"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

func testConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        8080,
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  30,
		Rectify:     rectify.DefaultConfig(),
		Encode:      utils.DefaultEncodeOptions(),
	}
}

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func documentPNG(t *testing.T, fixture testutil.DocumentFixture) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.AsImageGray(testutil.GenerateDocument(fixture.Config))))
	return buf.Bytes()
}

// multipartBody builds a form with the given file field and extra values.
func multipartBody(t *testing.T, field string, data []byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}
