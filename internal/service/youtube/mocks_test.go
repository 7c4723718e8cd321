package youtube

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Taichi-iskw/ingest/internal/model"
)

// mockCmdRunner is a mock implementation of CmdRunner for testing
type mockCmdRunner struct {
	mock.Mock
}

func (m *mockCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	arguments := m.Called(ctx, name, args)
	return arguments.Get(0).([]byte), arguments.Error(1)
}

// mockChannelRepository is a mock implementation of ChannelRepository for testing
type mockChannelRepository struct {
	mock.Mock
}

func (m *mockChannelRepository) Upsert(ctx context.Context, channel *model.Channel) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *mockChannelRepository) MarkInitialized(ctx context.Context, channelID string) error {
	args := m.Called(ctx, channelID)
	return args.Error(0)
}

func (m *mockChannelRepository) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Channel), args.Error(1)
}

func (m *mockChannelRepository) ListInitialized(ctx context.Context) ([]*model.Channel, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*model.Channel), args.Error(1)
}

// mockVideoRepository is a mock implementation of VideoRepository for testing
type mockVideoRepository struct {
	mock.Mock
}

func (m *mockVideoRepository) Upsert(ctx context.Context, video *model.Video) error {
	args := m.Called(ctx, video)
	return args.Error(0)
}

func (m *mockVideoRepository) UpsertBatch(ctx context.Context, videos []*model.Video) (int, error) {
	args := m.Called(ctx, videos)
	return args.Int(0), args.Error(1)
}

func (m *mockVideoRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockVideoRepository) GetByID(ctx context.Context, id string) (*model.Video, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Video), args.Error(1)
}

// mockProcessingRepository is a mock implementation of ProcessingRepository for testing
type mockProcessingRepository struct {
	mock.Mock
}

func (m *mockProcessingRepository) FindMissing(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockProcessingRepository) RecordStep(ctx context.Context, videoID string, step model.ProcessingStep, status string, outputPath *string) error {
	args := m.Called(ctx, videoID, step, status, outputPath)
	return args.Error(0)
}

func (m *mockProcessingRepository) Get(ctx context.Context, videoID string) (*model.VideoProcessing, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VideoProcessing), args.Error(1)
}

// pathEq matches a non-nil output path
func pathEq(want string) interface{} {
	return mock.MatchedBy(func(p *string) bool { return p != nil && *p == want })
}
