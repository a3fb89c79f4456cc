package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/threadflow/configs"
	"github.com/maheshrc27/threadflow/internal/pipeline"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/service"
	"github.com/maheshrc27/threadflow/pkg/utils"
)

const (
	testSecret     = "0123456789abcdef0123456789abcdef"
	testCronSecret = "cron-secret"
)

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) RunBatch(ctx context.Context) (*pipeline.BatchSummary, error) {
	args := m.Called(ctx)
	summary, _ := args.Get(0).(*pipeline.BatchSummary)
	return summary, args.Error(1)
}

func (m *MockPipeline) PublishNow(ctx context.Context, postID int64) ([]string, error) {
	args := m.Called(ctx, postID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockPipeline) SweepStale(ctx context.Context) (*pipeline.SweepSummary, error) {
	args := m.Called(ctx)
	summary, _ := args.Get(0).(*pipeline.SweepSummary)
	return summary, args.Error(1)
}

type MockCredentials struct {
	mock.Mock
}

func (m *MockCredentials) GetClient(ctx context.Context, accountID int64) (service.XClient, error) {
	args := m.Called(ctx, accountID)
	client, _ := args.Get(0).(service.XClient)
	return client, args.Error(1)
}

func (m *MockCredentials) Refresh(ctx context.Context, accountID int64, within time.Duration) (bool, error) {
	args := m.Called(ctx, accountID, within)
	return args.Bool(0), args.Error(1)
}

func (m *MockCredentials) Register(ctx context.Context, username, clientID, clientSecret string) (int64, error) {
	args := m.Called(ctx, username, clientID, clientSecret)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCredentials) Connect(ctx context.Context, accountID int64, code, verifier, redirectURI string) error {
	args := m.Called(ctx, accountID, code, verifier, redirectURI)
	return args.Error(0)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func testConfig() config.Config {
	return config.Config{SecretKey: testSecret, CronSecret: testCronSecret}
}

func serviceToken(t *testing.T) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, "compose", time.Minute)
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, deps Dependencies, method, target, bearer, body string) (int, map[string]any) {
	t.Helper()
	app := NewApp(testConfig(), deps)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	status, body := doRequest(t, Dependencies{}, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestCronPublish(t *testing.T) {
	p := new(MockPipeline)
	p.On("RunBatch", mock.Anything).Return(&pipeline.BatchSummary{RunID: "r1", Processed: 3, Published: 2, Retried: 1}, nil)

	status, _ := doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/cron/publish", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/cron/publish", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	p.AssertNotCalled(t, "RunBatch", mock.Anything)

	status, body := doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/cron/publish", testCronSecret, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["processed"])
	assert.Equal(t, float64(2), body["published"])
	assert.Equal(t, float64(0), body["failed"])
	assert.Equal(t, float64(1), body["retried"])
}

func TestCronPublish_RejectsServiceToken(t *testing.T) {
	p := new(MockPipeline)
	status, _ := doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/cron/publish", serviceToken(t), "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCronSweep(t *testing.T) {
	p := new(MockPipeline)
	p.On("SweepStale", mock.Anything).Return(&pipeline.SweepSummary{Requeued: 2, Failed: 1}, nil)

	status, body := doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/cron/sweep", testCronSecret, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["requeued"])
	assert.Equal(t, float64(1), body["failed"])
}

func TestPublishPost(t *testing.T) {
	tests := []struct {
		name       string
		ids        []string
		err        error
		wantStatus int
		wantState  string
	}{
		{name: "published", ids: []string{"1", "2"}, wantStatus: http.StatusOK, wantState: "PUBLISHED"},
		{name: "not claimable", err: repository.ErrNotClaimable, wantStatus: http.StatusConflict},
		{name: "missing", err: repository.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "x rejected", err: &service.APIError{Op: "create post", Status: 403, Body: "forbidden"}, wantStatus: http.StatusBadGateway, wantState: "FAILED"},
		{name: "bad credentials", err: service.ErrConfig, wantStatus: http.StatusUnprocessableEntity, wantState: "FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPipeline)
			p.On("PublishNow", mock.Anything, int64(5)).Return(tt.ids, tt.err)

			status, body := doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/api/posts/5/publish", serviceToken(t), "")
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantState != "" {
				assert.Equal(t, tt.wantState, body["status"])
			}
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), body["error"])
			} else {
				assert.Equal(t, []any{"1", "2"}, body["tweet_ids"])
			}
		})
	}
}

func TestPublishPost_RequiresToken(t *testing.T) {
	p := new(MockPipeline)
	status, _ := doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/api/posts/5/publish", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/api/posts/5/publish", testCronSecret, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	p.AssertNotCalled(t, "PublishNow", mock.Anything, mock.Anything)
}

func TestPublishPost_Async(t *testing.T) {
	p := new(MockPipeline)
	status, _ := doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/api/posts/5/publish?async=true", serviceToken(t), "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	client := &fakeEnqueuer{}
	status, _ = doRequest(t, Dependencies{Pipeline: p, AsynqClient: client}, http.MethodPost, "/api/posts/5/publish?async=true", serviceToken(t), "")
	assert.Equal(t, http.StatusAccepted, status)
	require.Len(t, client.tasks, 1)
	assert.JSONEq(t, `{"post_id":5}`, string(client.tasks[0].Payload()))
	p.AssertNotCalled(t, "PublishNow", mock.Anything, mock.Anything)
}

func TestPublishPost_BadID(t *testing.T) {
	status, _ := doRequest(t, Dependencies{Pipeline: new(MockPipeline)}, http.MethodPost, "/api/posts/abc/publish", serviceToken(t), "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAccounts(t *testing.T) {
	creds := new(MockCredentials)
	creds.On("Register", mock.Anything, "writer", "cid", "csecret").Return(int64(9), nil)
	creds.On("Register", mock.Anything, "writer", "", "csecret").Return(int64(0), service.ErrConfig)
	creds.On("Connect", mock.Anything, int64(9), "code-1", "verifier-1", "https://app/cb").Return(nil)
	creds.On("Connect", mock.Anything, int64(10), "code-1", "verifier-1", "https://app/cb").Return(repository.ErrNotFound)
	deps := Dependencies{Credentials: creds}
	token := serviceToken(t)

	status, body := doRequest(t, deps, http.MethodPost, "/api/accounts", token, `{"username":"writer","client_id":"cid","client_secret":"csecret"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(9), body["id"])

	status, _ = doRequest(t, deps, http.MethodPost, "/api/accounts", token, `{"username":"writer","client_secret":"csecret"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	connect := `{"code":"code-1","code_verifier":"verifier-1","redirect_uri":"https://app/cb"}`
	status, _ = doRequest(t, deps, http.MethodPost, "/api/accounts/9/connect", token, connect)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, deps, http.MethodPost, "/api/accounts/10/connect", token, connect)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doRequest(t, deps, http.MethodPost, "/api/accounts/9/connect", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	creds.AssertExpectations(t)
}

func TestErrorStatusForWrappedErrors(t *testing.T) {
	p := new(MockPipeline)
	p.On("PublishNow", mock.Anything, int64(6)).Return(nil, errors.Join(errors.New("load post 6"), &service.TransferError{URL: "https://cdn/x", Status: 404}))

	status, body := doRequest(t, Dependencies{Pipeline: p}, http.MethodPost, "/api/posts/6/publish", serviceToken(t), "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "FAILED", body["status"])
}
