package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/RezaEskandarii/pgqueue/client"
	"github.com/RezaEskandarii/pgqueue/client/test/mocks"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emailJob = `{"job_id":12,"queue_name":"emails","payload":{"to":"a@example.com"}}`

func newHandler(t *testing.T, handle func(ctx context.Context, job *types.Job) (types.ReleaseResult, error), lookup ApiKeyLookup, maxInFlight int) (*HttpRouteHandler, *[]types.ReleaseResult) {
	t.Helper()
	var released []types.ReleaseResult
	js := &mocks.MockJobStore{
		ReleaseJobFunc: func(ctx context.Context, jobID int64, result types.ReleaseResult) error {
			released = append(released, result)
			return nil
		},
	}
	p := client.NewQueueHandler(js, "emails", handle, client.WithErrorLogger(&mocks.MockErrorLogger{}))
	return NewRouteHandler([]client.Processor{p}, lookup, 0, maxInFlight, nil), &released
}

func okHandler(ctx context.Context, job *types.Job) (types.ReleaseResult, error) {
	return "", nil
}

func decodeResponse(t *testing.T, resp *http.Response) client.ProcessJobResponse {
	t.Helper()
	var out client.ProcessJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestReceiver_PostJob(t *testing.T) {
	h, released := newHandler(t, okHandler, nil, 4)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(emailJob))
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.App().Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeResponse(t, resp)
	assert.Equal(t, client.StatusOK, out.Status)
	assert.True(t, out.HadJob)
	assert.Equal(t, []types.ReleaseResult{types.ReleaseComplete}, *released)
}

func TestReceiver_GetJobFromBodyQuery(t *testing.T) {
	h, released := newHandler(t, okHandler, nil, 4)

	req := httptest.NewRequest(http.MethodGet, "/jobs?body="+url.QueryEscape(emailJob), nil)
	resp, err := h.App().Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, *released, 1)
}

func TestReceiver_BadJobFormat(t *testing.T) {
	h, released := newHandler(t, okHandler, nil, 4)

	for _, body := range []string{`not json`, `{"queue_name":"emails"}`, `{"job_id":3}`} {
		req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
		resp, err := h.App().Test(req, -1)
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, body)
		out := decodeResponse(t, resp)
		require.NotNil(t, out.Error)
		assert.Equal(t, client.ErrTypeBadJobFormat, out.Error.Type)
	}
	assert.Empty(t, *released)
}

func TestReceiver_JobNotOwned(t *testing.T) {
	h, released := newHandler(t, okHandler, nil, 4)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"job_id":1,"queue_name":"sms","payload":{}}`))
	resp, err := h.App().Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	out := decodeResponse(t, resp)
	require.NotNil(t, out.Error)
	assert.Equal(t, client.ErrTypeJobNotOwned, out.Error.Type)
	assert.Empty(t, *released)
}

func TestReceiver_HandlerErrorIs500(t *testing.T) {
	h, released := newHandler(t, func(ctx context.Context, job *types.Job) (types.ReleaseResult, error) {
		return "", errors.New("mailbox full")
	}, nil, 4)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(emailJob))
	resp, err := h.App().Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	out := decodeResponse(t, resp)
	require.NotNil(t, out.Error)
	assert.Equal(t, client.ErrTypeHandlerError, out.Error.Type)
	assert.Equal(t, []types.ReleaseResult{types.ReleaseFailed}, *released)
}

func TestReceiver_BearerAuth(t *testing.T) {
	lookup := func(ctx context.Context, queueName string) (string, error) {
		if queueName == "emails" {
			return "k-1", nil
		}
		return "", nil
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "Basic k-1", http.StatusUnauthorized},
		{"valid", "Bearer k-1", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHandler(t, okHandler, lookup, 4)
			req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(emailJob))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := h.App().Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestReceiver_ApiKeyLookupFails(t *testing.T) {
	lookup := func(ctx context.Context, queueName string) (string, error) {
		return "", types.ErrAccessDenied
	}
	h, released := newHandler(t, okHandler, lookup, 4)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(emailJob))
	resp, err := h.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, *released)
}

func TestReceiver_TooManyInFlight(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	h, _ := newHandler(t, func(ctx context.Context, job *types.Job) (types.ReleaseResult, error) {
		close(entered)
		<-unblock
		return "", nil
	}, nil, 1)
	app := h.App()

	first := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(emailJob))
		resp, err := app.Test(req, -1)
		if err != nil {
			first <- 0
			return
		}
		first <- resp.StatusCode
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the handler")
	}

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(emailJob))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	close(unblock)
	assert.Equal(t, http.StatusOK, <-first)
}
