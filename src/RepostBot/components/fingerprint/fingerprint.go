package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corona10/goimagehash"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrUnhashable is the single failure mode of Compute. Fetch errors, bad
// status codes, wrong content types and undecodable payloads all collapse
// into it; the caller's policy decides what unhashable means.
var ErrUnhashable = errors.New("image is unhashable")

const (
	// 16x16 perceptual grid. Changing this invalidates every stored
	// fingerprint, so it is a constant rather than configuration.
	hashWidth  = 16
	hashHeight = 16

	maxImageBytes = 32 << 20
)

type Service struct {
	client *http.Client
}

func New() *Service {
	return &Service{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Compute fetches the image behind url and returns its perceptual hash as an
// opaque comparable token. Byte-identical images always produce the same
// token; visually similar ones usually do.
func (s *Service) Compute(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnhashable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch: %v", ErrUnhashable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnhashable, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: content type %q", ErrUnhashable, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read: %v", ErrUnhashable, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrUnhashable, err)
	}

	hash, err := goimagehash.ExtPerceptionHash(img, hashWidth, hashHeight)
	if err != nil {
		return "", fmt.Errorf("%w: hash: %v", ErrUnhashable, err)
	}

	return hash.ToString(), nil
}
