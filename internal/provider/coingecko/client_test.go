package coingecko_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"quotecache/internal/provider"
	"quotecache/internal/provider/coingecko"
	"quotecache/internal/provider/mock"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock HTTP client
	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Contains(t, req.URL.Path, "/simple/price")
			require.Equal(t, "bitcoin,ethereum", req.URL.Query().Get("ids"))
			require.Equal(t, "usd", req.URL.Query().Get("vs_currencies"))
			return jsonResponse(http.StatusOK, `{"bitcoin":{"usd":63210.12},"ethereum":{"usd":2588.34}}`), nil
		}).
		Times(1)

	client := coingecko.New(coingecko.WithHTTPClient(httpClient))
	require.Equal(t, "coingecko", client.Name())

	// Act: requested symbols are ignored
	prices, err := client.Fetch(t.Context(), []string{"DOGE"})
	require.NoError(t, err)

	// Assert: both coins are mapped to their symbols
	require.Len(t, prices, 2)
	require.InDelta(t, 63210.12, prices["BTC"], 1e-9)
	require.InDelta(t, 2588.34, prices["ETH"], 1e-9)
}

func TestFetch_MissingCoinIsOmitted(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(http.StatusOK, `{"bitcoin":{"usd":63210.12},"ethereum":{}}`), nil).
		Times(1)

	prices, err := coingecko.New(coingecko.WithHTTPClient(httpClient)).Fetch(t.Context(), nil)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	require.InDelta(t, 63210.12, prices["BTC"], 1e-9)
}

func TestWithBaseURLHeaderAndAPIKey(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	baseURL := "http://localhost:8080/api/v3"

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			require.Equal(t, "bar", req.Header.Get("foo"))
			require.Equal(t, "demo-key", req.Header.Get("x-cg-demo-api-key"))
			return jsonResponse(http.StatusOK, `{}`), nil
		}).
		Times(1)

	client := coingecko.New(
		coingecko.WithHTTPClient(httpClient),
		coingecko.WithBaseURL(baseURL),
		coingecko.WithHeader(http.Header{"foo": []string{"bar"}}),
		coingecko.WithAPIKey("demo-key"),
	)
	prices, err := client.Fetch(t.Context(), nil)
	require.NoError(t, err)
	require.Empty(t, prices)
}

func TestFetch_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, fmt.Errorf("connection refused")).
		Times(1)

	prices, err := coingecko.New(coingecko.WithHTTPClient(httpClient)).Fetch(t.Context(), nil)
	require.Nil(t, prices)

	var fe *provider.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "coingecko", fe.Provider)
}

func TestFetch_ErrUnexpectedStatusCode(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(http.StatusTooManyRequests, `{"status":{"error_code":429}}`), nil).
		Times(1)

	prices, err := coingecko.New(coingecko.WithHTTPClient(httpClient)).Fetch(t.Context(), nil)
	require.Nil(t, prices)
	require.ErrorIs(t, err, provider.ErrUnexpectedStatus)
	require.Contains(t, err.Error(), "429")
}

func TestFetch_ErrDecodingResponse(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(http.StatusOK, "invalid json"), nil).
		Times(1)

	prices, err := coingecko.New(coingecko.WithHTTPClient(httpClient)).Fetch(t.Context(), nil)
	require.Error(t, err)
	require.Nil(t, prices)
}

func TestFetch_ContextDeadline(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}).
		Times(1)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := coingecko.New(coingecko.WithHTTPClient(httpClient)).Fetch(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithQuery(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			require.Equal(t, "full", q.Get("precision"))
			// fixed parameters cannot be overridden
			require.Equal(t, []string{"bitcoin,ethereum"}, q["ids"])
			require.Equal(t, []string{"usd"}, q["vs_currencies"])
			return jsonResponse(http.StatusOK, `{"bitcoin":{"usd":63210.12}}`), nil
		}).
		Times(1)

	client := coingecko.New(
		coingecko.WithHTTPClient(httpClient),
		coingecko.WithQuery(url.Values{"precision": {"full"}, "ids": {"dogecoin"}}),
	)
	prices, err := client.Fetch(t.Context(), nil)
	require.NoError(t, err)
	require.Len(t, prices, 1)
}
