package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/app"
	"github.com/2448334/seimas-scraper/internal/config"
	"github.com/2448334/seimas-scraper/internal/storage/local"
	"github.com/2448334/seimas-scraper/internal/storage/memory"
)

func baseConfig() config.Config {
	return config.Config{
		DB:      config.DBConfig{Provider: config.ProviderMemory},
		HTTP:    config.HTTPConfig{TimeoutSeconds: 5},
		Feeds:   config.FeedsConfig{BaseURL: "https://apps.lrs.lt/sip/"},
		Crawler: config.CrawlerConfig{ChunkSize: 4, DocumentChunkSize: 2},
		Documents: config.DocumentsConfig{
			Provider:  config.ProviderMemory,
			SourceURL: "https://e-seimas.lrs.lt/rs/legalact/TAK/%s/format/OO3_ODT/",
		},
	}
}

func TestNewAppWithMemoryProviders(t *testing.T) {
	t.Parallel()

	a, err := app.NewApp(context.Background(), baseConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.GetLogger())
	assert.NotNil(t, a.GetCrawler())
	assert.IsType(t, &memory.RecordStore{}, a.GetStore())
	assert.IsType(t, &memory.BlobStore{}, a.GetBlobStore())
	require.NoError(t, a.Migrate(context.Background()))
}

func TestNewAppWithLocalDocuments(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Documents.Provider = config.ProviderLocal
	cfg.Documents.Dir = t.TempDir()

	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.IsType(t, &local.BlobStore{}, a.GetBlobStore())
}

func TestNewAppRejectsBadDSN(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.DB.Provider = config.ProviderPostgres
	cfg.DB.DSN = "postgres://seimas@localhost:notaport/seimas"

	_, err := app.NewApp(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "init record store")
}

func TestNewAppRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Documents.Provider = "s3"

	_, err := app.NewApp(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "unknown documents provider")
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Metrics = config.MetricsConfig{Enabled: true, Addr: "127.0.0.1:0"}
	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	a.Close()
	a.Close()
}
