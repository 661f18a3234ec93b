package testutil

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia/api"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
	"github.com/tendant/simple-media/pkg/simplemedia/metrics"
)

// Server is a running test server over a temporary storage root
type Server struct {
	*httptest.Server
	Config     *config.ServerConfig
	Components *config.Components
	Metrics    *metrics.Metrics
}

// Root returns the canonical storage root
func (s *Server) Root() string {
	return s.Components.Resolver.Root()
}

// SetupTestServer creates a test server with all routes configured. opts
// are applied after the test defaults.
func SetupTestServer(t *testing.T, opts ...config.Option) *Server {
	t.Helper()

	base := []config.Option{
		config.WithStorageRoot(t.TempDir()),
		config.WithAPIKey(APIKey),
		config.WithEnvironment("testing"),
	}
	cfg, err := config.Load(append(base, opts...)...)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New("simplemedia")
	require.NoError(t, m.Register(reg))

	comps, err := cfg.BuildService(logger, m)
	require.NoError(t, err)

	router, err := api.NewRouter(api.RouterConfig{
		Service:        comps.Service,
		Resolver:       comps.Resolver,
		APIKey:         cfg.APIKey,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxBatchFiles:  cfg.MaxBatchFiles,
		Logger:         logger,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &Server{
		Server:     srv,
		Config:     cfg,
		Components: comps,
		Metrics:    m,
	}
}
