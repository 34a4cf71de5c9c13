package anthropicclaude

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// Image size ceilings. Exceeding either aborts translation before any
// upstream call; images are never truncated or dropped to fit.
const (
	maxImageSize      = 5 << 20   // per image, decoded bytes
	maxTotalImageSize = 100 << 20 // per request, decoded bytes
)

// imageFetchTimeout bounds one whole remote image retrieval. Kept short and
// separate from the request timeout: image fetching happens during
// translation, before the upstream call starts.
const imageFetchTimeout = 10 * time.Second

// imageBudget tracks the aggregate decoded image size across one request.
type imageBudget struct {
	total int64
}

// add charges size bytes against both ceilings.
func (b *imageBudget) add(size int64) error {
	if size > maxImageSize {
		return &pipe.ValidationError{
			Reason: fmt.Sprintf("image size exceeds 5MB limit: %.2fMB", float64(size)/(1<<20)),
		}
	}
	b.total += size
	if b.total > maxTotalImageSize {
		return &pipe.ValidationError{
			Reason: fmt.Sprintf("total image size exceeds 100MB limit: %.2fMB", float64(b.total)/(1<<20)),
		}
	}
	return nil
}

// imageFetcher retrieves remote images with a dial timeout distinct from the
// overall fetch timeout.
type imageFetcher struct {
	client *http.Client
}

func newImageFetcher(connectTimeout time.Duration) *imageFetcher {
	return &imageFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
				TLSHandshakeTimeout: connectTimeout,
			},
			Timeout: imageFetchTimeout,
		},
	}
}

// processImage converts one host image part into an Anthropic image block,
// enforcing the size ceilings. Inline data URLs are validated in place;
// remote URLs are fetched and inlined as base64.
func (f *imageFetcher) processImage(ctx context.Context, url string, budget *imageBudget) (anthropic.ContentBlockParamUnion, error) {
	switch {
	case strings.HasPrefix(url, "data:"):
		return inlineImage(url, budget)
	case strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://"):
		return f.remoteImage(ctx, url, budget)
	default:
		return anthropic.ContentBlockParamUnion{}, &pipe.ValidationError{
			Reason: "image URL must be a data: URI or an http(s) URL",
		}
	}
}

// inlineImage parses a data URL (data:<media-type>;base64,<data>) and
// validates the declared payload against the ceilings. The decoded size is
// computed from the base64 length without decoding the payload.
func inlineImage(url string, budget *imageBudget) (anthropic.ContentBlockParamUnion, error) {
	meta, data, found := strings.Cut(url, ",")
	if !found {
		return anthropic.ContentBlockParamUnion{}, &pipe.ValidationError{
			Reason: "invalid image data URL, expected data:<media-type>;base64,<data>",
		}
	}

	mediaType := "image/jpeg"
	if after, ok := strings.CutPrefix(meta, "data:"); ok {
		if mt, _, _ := strings.Cut(after, ";"); mt != "" {
			mediaType = mt
		}
	}

	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return anthropic.ContentBlockParamUnion{}, &pipe.ValidationError{
			Reason: "invalid base64 image data",
		}
	}

	if err := budget.add(int64(len(data)) * 3 / 4); err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}

	return anthropic.NewImageBlockBase64(mediaType, data), nil
}

// remoteImage fetches the image bytes and inlines them as base64. Any fetch
// failure (timeout, non-2xx, unreachable) identifies the offending URL.
func (f *imageFetcher) remoteImage(ctx context.Context, url string, budget *imageBudget) (anthropic.ContentBlockParamUnion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, &pipe.ImageFetchError{URL: url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, &pipe.ImageFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return anthropic.ContentBlockParamUnion{}, &pipe.ImageFetchError{
			URL: url,
			Err: fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	// Read at most one byte past the per-image ceiling so oversized bodies
	// fail the budget check instead of exhausting memory.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, &pipe.ImageFetchError{URL: url, Err: err}
	}

	if err := budget.add(int64(len(raw))); err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}

	mediaType := resp.Header.Get("Content-Type")
	if mt, _, _ := strings.Cut(mediaType, ";"); mt != "" {
		mediaType = strings.TrimSpace(mt)
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(raw)
	}

	return anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(raw)), nil
}
