package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lumeno/chatsync/internal/pager"
	"github.com/lumeno/chatsync/internal/query"
	"go.uber.org/zap"
)

var errMissingBaseURL = errors.New("transport: base url is required")

// HTTPFetcherConfig describes the dependencies of the HTTP page fetcher.
type HTTPFetcherConfig struct {
	BaseURL string
	Client  *http.Client
	Logger  *zap.Logger
}

// HTTPFetcher fetches channel pages from the remote service over HTTP. The
// cursor's directives merge into the request's query parameters as flat
// key-value pairs.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPFetcher constructs an HTTP page fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) (*HTTPFetcher, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPFetcher{baseURL: baseURL, client: client, logger: logger}, nil
}

// FetchPage implements PageFetcher.
func (f *HTTPFetcher) FetchPage(ctx context.Context, scope query.Scope, cursor pager.Cursor) (ChannelListPage, error) {
	values := url.Values{}
	values.Set("scope", scope.Name())
	for key, value := range cursor.Parameters() {
		values.Set(key, fmt.Sprintf("%v", value))
	}
	endpoint := f.baseURL + "/channels?" + values.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ChannelListPage{}, &Error{Kind: ErrorKindNetwork, Err: err}
	}
	response, err := f.client.Do(request)
	if err != nil {
		return ChannelListPage{}, &Error{Kind: ErrorKindNetwork, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return ChannelListPage{}, &Error{
			Kind: ErrorKindServer,
			Err:  fmt.Errorf("unexpected status %d", response.StatusCode),
		}
	}

	var page ChannelListPage
	if err := json.NewDecoder(response.Body).Decode(&page); err != nil {
		return ChannelListPage{}, &Error{Kind: ErrorKindDecode, Err: err}
	}
	f.logger.Debug("channel page fetched",
		zap.String("scope", scope.Name()),
		zap.Int("channels", len(page.Channels)))
	return page, nil
}
