package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Taichi-iskw/ingest/internal/config"
	"github.com/Taichi-iskw/ingest/internal/httpclient"
	"github.com/Taichi-iskw/ingest/internal/metrics"
	"github.com/Taichi-iskw/ingest/internal/ratelimit"
	"github.com/Taichi-iskw/ingest/internal/repository"
	edgarsvc "github.com/Taichi-iskw/ingest/internal/service/edgar"
	ytsvc "github.com/Taichi-iskw/ingest/internal/service/youtube"
	edgarsource "github.com/Taichi-iskw/ingest/internal/source/edgar"
	ytsource "github.com/Taichi-iskw/ingest/internal/source/youtube"
)

// ServiceFactory builds sources and services from the loaded configuration.
// Every source gets its own client and limiter.
type ServiceFactory struct {
	cfg     *config.Config
	gateway *repository.Gateway
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewServiceFactory creates a factory without a database connection
func NewServiceFactory(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *ServiceFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceFactory{cfg: cfg, metrics: m, logger: logger}
}

// loadFactory loads the configuration and optionally connects the persistence gateway.
// The returned cleanup closes the pool.
func loadFactory(ctx context.Context, withDatabase bool) (*ServiceFactory, func(), error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	f := NewServiceFactory(cfg, appMetrics, logger)
	if !withDatabase {
		return f, func() {}, nil
	}

	dbPool, err := config.NewDatabasePool(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	f.gateway = repository.NewGateway(dbPool)

	return f, dbPool.Close, nil
}

// HTTPOptions converts the http section into client options with a fresh limiter.
// The proxy is attached only when requested.
func (f *ServiceFactory) HTTPOptions(baseURL string, withProxy bool) httpclient.Options {
	opts := httpclient.Options{
		BaseURL:    baseURL,
		UserAgent:  f.cfg.UserAgent,
		MaxRetries: f.cfg.HTTP.MaxRetries,
		Timeout:    f.cfg.HTTP.Timeout,
		Limiter:    ratelimit.New(f.cfg.HTTP.RateLimit.Min, f.cfg.HTTP.RateLimit.Max),
		Metrics:    f.metrics,
	}
	if f.cfg.HTTP.BackoffFactor != nil {
		opts.BackoffFactor = *f.cfg.HTTP.BackoffFactor
	}
	if withProxy {
		opts.Proxy = &httpclient.ProxyConfig{
			Username: f.cfg.Proxy.Username,
			Password: f.cfg.Proxy.Password,
			Host:     f.cfg.Proxy.Host,
			Port:     f.cfg.Proxy.Port,
		}
	}
	return opts
}

// YouTubeService wires the discovery and transcript sources that were asked for
func (f *ServiceFactory) YouTubeService(withDiscovery, withTranscripts bool) (*ytsvc.Service, error) {
	if f.gateway == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	opts := ytsvc.Options{
		Gateway:       f.gateway,
		Metrics:       f.metrics,
		TranscriptDir: f.cfg.YouTube.TranscriptDir,
		Logger:        f.logger,
	}
	if withDiscovery {
		videos, err := ytsource.NewVideoSource(ytsource.VideoOptions{
			HTTP:   f.HTTPOptions(f.cfg.YouTube.APIBaseURL, false),
			APIKey: f.cfg.YouTube.APIKey,
			Logger: f.logger,
		})
		if err != nil {
			return nil, err
		}
		opts.VideoSource = videos
	}
	if withTranscripts {
		transcripts, err := ytsource.NewTranscriptSource(ytsource.TranscriptOptions{
			HTTP:     f.HTTPOptions(f.cfg.YouTube.SiteBaseURL, true),
			Language: f.cfg.YouTube.Language,
			Logger:   f.logger,
		})
		if err != nil {
			return nil, err
		}
		opts.Transcripts = transcripts
	}
	return ytsvc.NewService(opts), nil
}

// FilingService wires the Form 4 source. Without a gateway the service can only resolve tickers.
func (f *ServiceFactory) FilingService() (*edgarsvc.Service, error) {
	opts := edgarsource.Options{
		HTTP:     f.HTTPOptions(f.cfg.EDGAR.BaseURL, false),
		DataURL:  f.cfg.EDGAR.DataURL,
		PageSize: f.cfg.EDGAR.PageSize,
		Logger:   f.logger,
	}
	var filings repository.FilingRepository
	if f.gateway != nil {
		filings = f.gateway.Filings
		opts.Exists = filings.Exists
	}

	source, err := edgarsource.NewFilingSource(opts)
	if err != nil {
		return nil, err
	}
	return edgarsvc.NewService(source, filings, f.metrics, f.logger), nil
}
