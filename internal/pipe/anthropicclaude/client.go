package anthropicclaude

import (
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cmdren/anthropic-pipe/internal/config"
)

// newTransport builds the default upstream transport with the dial phase
// bounded separately from the read phase. ResponseHeaderTimeout catches an
// upstream that accepts the connection but never starts responding.
func newTransport(valves config.Valves) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: valves.ConnectionTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   valves.ConnectionTimeout,
		ResponseHeaderTimeout: valves.RequestTimeout,
	}
}

// newClient builds the upstream client. The transport chain is injectable
// for tests; pass nil for the default split-timeout transport.
//
// The http.Client timeout covers buffered calls end to end. Streaming calls
// must outlive it, so they use a headers-only bound instead (see newTransport)
// and rely on context cancellation for overall lifetime.
func newClient(valves config.Valves, transport http.RoundTripper, streaming bool) anthropic.Client {
	if transport == nil {
		transport = newTransport(valves)
	}

	httpClient := &http.Client{Transport: transport}
	if !streaming {
		httpClient.Timeout = valves.RequestTimeout
	}

	return anthropic.NewClient(
		option.WithAPIKey(valves.APIKey),
		option.WithBaseURL(valves.BaseURL),
		option.WithHeader("anthropic-version", valves.APIVersion),
		option.WithHTTPClient(httpClient),
		// Failures surface to the caller immediately; the host decides
		// whether to retry.
		option.WithMaxRetries(0),
	)
}
