package fingerprint_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/repostguard/repostbot/src/RepostBot/components/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gradientImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 0, A: 255})
		}
	}
	return img
}

func checkerboardImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func serve(t *testing.T, contentType string, status int, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComputeIsDeterministic(t *testing.T) {
	body := encodePNG(t, gradientImage())
	srv := serve(t, "image/png", http.StatusOK, body)
	svc := fingerprint.New()

	fp1, err := svc.Compute(context.Background(), srv.URL)
	require.NoError(t, err)
	fp2, err := svc.Compute(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.NotEmpty(t, fp1)
	assert.Equal(t, fp1, fp2)
}

func TestComputeDistinguishesDifferentImages(t *testing.T) {
	svc := fingerprint.New()

	srvA := serve(t, "image/png", http.StatusOK, encodePNG(t, gradientImage()))
	srvB := serve(t, "image/png", http.StatusOK, encodePNG(t, checkerboardImage()))

	fpA, err := svc.Compute(context.Background(), srvA.URL)
	require.NoError(t, err)
	fpB, err := svc.Compute(context.Background(), srvB.URL)
	require.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
}

func TestComputeNotFoundIsUnhashable(t *testing.T) {
	srv := serve(t, "text/plain", http.StatusNotFound, []byte("not found"))
	svc := fingerprint.New()

	_, err := svc.Compute(context.Background(), srv.URL)
	assert.ErrorIs(t, err, fingerprint.ErrUnhashable)
}

func TestComputeNonImageContentTypeIsUnhashable(t *testing.T) {
	srv := serve(t, "text/html", http.StatusOK, []byte("<html></html>"))
	svc := fingerprint.New()

	_, err := svc.Compute(context.Background(), srv.URL)
	assert.ErrorIs(t, err, fingerprint.ErrUnhashable)
}

func TestComputeUndecodableBodyIsUnhashable(t *testing.T) {
	srv := serve(t, "image/png", http.StatusOK, []byte("this is not a png"))
	svc := fingerprint.New()

	_, err := svc.Compute(context.Background(), srv.URL)
	assert.ErrorIs(t, err, fingerprint.ErrUnhashable)
}

func TestComputeUnreachableHostIsUnhashable(t *testing.T) {
	svc := fingerprint.New()

	_, err := svc.Compute(context.Background(), "http://127.0.0.1:1/nope.png")
	assert.ErrorIs(t, err, fingerprint.ErrUnhashable)
}
