package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/threadflow/internal/pipeline"
	"github.com/maheshrc27/threadflow/internal/repository"
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

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func publishTask(t *testing.T, postID int64) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePublishPost, payload)
}

func TestEnqueuePublishPost(t *testing.T) {
	client := &fakeEnqueuer{}
	require.NoError(t, EnqueuePublishPost(context.Background(), client, 42))
	require.Len(t, client.tasks, 1)
	assert.Equal(t, TaskTypePublishPost, client.tasks[0].Type())

	var payload PublishPostPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	assert.Equal(t, int64(42), payload.PostID)
	assert.Equal(t, "publish:post:42", publishTaskID(42))

	values := map[asynq.OptionType]any{}
	for _, opt := range client.opts[0] {
		values[opt.Type()] = opt.Value()
	}
	assert.Equal(t, "publish:post:42", values[asynq.TaskIDOpt])
	assert.Equal(t, 0, values[asynq.MaxRetryOpt])
}

func TestEnqueuePublishPost_DuplicateIsNotAnError(t *testing.T) {
	client := &fakeEnqueuer{err: asynq.ErrTaskIDConflict}
	assert.NoError(t, EnqueuePublishPost(context.Background(), client, 42))

	client.err = errors.New("redis down")
	assert.Error(t, EnqueuePublishPost(context.Background(), client, 42))
}

func TestHandlePublishPostTask(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{name: "published"},
		{name: "not claimable", err: repository.ErrNotClaimable, wantErr: true, skipRetry: true},
		{name: "missing", err: repository.ErrNotFound, wantErr: true, skipRetry: true},
		{name: "publish failed", err: errors.New("upstream 500"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPipeline)
			p.On("PublishNow", mock.Anything, int64(7)).Return([]string{"1"}, tt.err)

			err := NewQueue(p).HandlePublishPostTask(context.Background(), publishTask(t, 7))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
			p.AssertExpectations(t)
		})
	}
}

func TestHandlePublishPostTask_BadPayload(t *testing.T) {
	p := new(MockPipeline)
	err := NewQueue(p).HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	p.AssertNotCalled(t, "PublishNow", mock.Anything, mock.Anything)
}

func TestServeMuxRoutesBatchTask(t *testing.T) {
	p := new(MockPipeline)
	p.On("RunBatch", mock.Anything).Return(&pipeline.BatchSummary{RunID: "r1", Processed: 2}, nil).Once()

	mux := NewQueue(p).NewServeMux()
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskTypePublishBatch, nil)))
	p.AssertExpectations(t)
}
