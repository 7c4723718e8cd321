package youtube

import (
	"github.com/Taichi-iskw/ingest/internal/metrics"
	"github.com/Taichi-iskw/ingest/internal/model"
	"github.com/Taichi-iskw/ingest/internal/pipeline"
	"github.com/Taichi-iskw/ingest/internal/repository"
	"github.com/Taichi-iskw/ingest/internal/service/common"
	ytsource "github.com/Taichi-iskw/ingest/internal/source/youtube"
	"go.uber.org/zap"
)

// VideoSource discovers new uploads of stored channels
type VideoSource = pipeline.Source[ytsource.DiscoverParams, ytsource.RawVideo, model.Video]

// TranscriptSource downloads caption tracks
type TranscriptSource = pipeline.Source[ytsource.TranscriptParams, ytsource.RawTranscript, model.Transcript]

// Service runs the YouTube acquisition flows against the persistence gateway
type Service struct {
	cmdRunner     common.CmdRunner
	channels      repository.ChannelRepository
	videos        repository.VideoRepository
	processing    repository.ProcessingRepository
	videoSource   VideoSource
	transcripts   TranscriptSource
	metrics       *metrics.Metrics
	transcriptDir string
	logger        *zap.Logger
}

// Options wires a Service. Sources are only needed by the flows that use them.
type Options struct {
	CmdRunner     common.CmdRunner
	Gateway       *repository.Gateway
	VideoSource   VideoSource
	Transcripts   TranscriptSource
	Metrics       *metrics.Metrics
	TranscriptDir string
	Logger        *zap.Logger
}

// NewService creates a new Service
func NewService(opts Options) *Service {
	runner := opts.CmdRunner
	if runner == nil {
		runner = common.NewCmdRunner()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cmdRunner:     runner,
		videoSource:   opts.VideoSource,
		transcripts:   opts.Transcripts,
		metrics:       opts.Metrics,
		transcriptDir: opts.TranscriptDir,
		logger:        logger,
	}
	if opts.Gateway != nil {
		s.channels = opts.Gateway.Channels
		s.videos = opts.Gateway.Videos
		s.processing = opts.Gateway.Processing
	}
	return s
}
