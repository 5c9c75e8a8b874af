package inference

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"strings"
)

// MaxImageBytes caps the size of an image read from a file or URL.
const MaxImageBytes = 10 << 20

// IsURL reports whether ref is an http or https URL. The scheme match is case-insensitive.
func IsURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// LoadImagePNG reads an image from a path or URL and re-encodes it as PNG.
// PNG, JPEG and GIF inputs are accepted. A nil client means http.DefaultClient.
func LoadImagePNG(ctx context.Context, client *http.Client, ref string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if IsURL(ref) {
		data, err = downloadImage(ctx, client, ref)
	} else {
		data, err = readImageFile(ref)
	}
	if err != nil {
		return nil, err
	}
	return encodePNG(data, ref)
}

func downloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download image %s: status %d", url, resp.StatusCode)
	}
	return readLimited(resp.Body, url)
}

func readImageFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()
	return readLimited(f, path)
}

func readLimited(r io.Reader, src string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", src, err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", src, MaxImageBytes)
	}
	return data, nil
}

// ToPNG decodes a PNG, JPEG or GIF image and re-encodes it as PNG.
func ToPNG(data []byte) ([]byte, error) {
	return encodePNG(data, "image")
}

func encodePNG(data []byte, src string) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", src, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
