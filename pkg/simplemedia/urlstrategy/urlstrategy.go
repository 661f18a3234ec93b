package urlstrategy

import (
	"fmt"
	"net/url"
	"strings"
)

// URLStrategy turns a canonical public path ("/uploads/general/<id>.jpg")
// into the URL returned to clients
type URLStrategy interface {
	URL(publicPath string) string
}

// URLStrategyType represents the type of URL strategy
type URLStrategyType string

const (
	// Mount-relative URLs served by this process
	StrategyTypePath URLStrategyType = "path"

	// Absolute URLs on a CDN or reverse proxy in front of the mount
	StrategyTypeCDN URLStrategyType = "cdn"
)

// PathStrategy returns the public path unchanged
type PathStrategy struct{}

func NewPathStrategy() *PathStrategy {
	return &PathStrategy{}
}

func (s *PathStrategy) URL(publicPath string) string {
	return publicPath
}

// CDNStrategy prefixes public paths with an absolute base URL
type CDNStrategy struct {
	CDNBaseURL string // e.g. "https://cdn.example.com"
}

// NewCDNStrategy creates a CDN strategy. The base URL must be absolute.
func NewCDNStrategy(cdnBaseURL string) (*CDNStrategy, error) {
	cdnBaseURL = strings.TrimSuffix(strings.TrimSpace(cdnBaseURL), "/")
	u, err := url.Parse(cdnBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("CDN base URL must be absolute: %q", cdnBaseURL)
	}
	return &CDNStrategy{CDNBaseURL: cdnBaseURL}, nil
}

func (s *CDNStrategy) URL(publicPath string) string {
	return s.CDNBaseURL + publicPath
}

// New picks the CDN strategy when a base URL is configured and the path
// strategy otherwise
func New(publicBaseURL string) (URLStrategy, error) {
	if strings.TrimSpace(publicBaseURL) == "" {
		return NewPathStrategy(), nil
	}
	return NewCDNStrategy(publicBaseURL)
}
