package repository

// Gateway groups the repositories sharing one connection pool.
// All writes are idempotent by natural key or atomic per filing.
type Gateway struct {
	Channels   ChannelRepository
	Videos     VideoRepository
	Processing ProcessingRepository
	Filings    FilingRepository
}

// NewGateway creates every repository on pool
func NewGateway(pool Pool) *Gateway {
	return &Gateway{
		Channels:   NewChannelRepository(pool),
		Videos:     NewVideoRepository(pool),
		Processing: NewProcessingRepository(pool),
		Filings:    NewFilingRepository(pool),
	}
}
