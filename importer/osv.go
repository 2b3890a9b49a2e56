package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/osv-scanner/pkg/models"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
)

const (
	OSVEndpoint       = "https://api.osv.dev"
	DefaultOSVTimeout = 5 * time.Second
)

type OSVPackage struct {
	Name string `json:"name,omitempty"`
	Purl string `json:"purl,omitempty"`
}

type OSVQuery struct {
	Package OSVPackage `json:"package"`
	Version string     `json:"version,omitempty"`
}

type OSVResponse struct {
	Vulns []models.Vulnerability `json:"vulns"`
}

// NewOSVQuery builds the lookup payload for a package. A purl is queried on
// its own with the qualifiers removed, otherwise name and version are used.
func NewOSVQuery(coord deppkg.PackageCoordinate) OSVQuery {
	if coord.Purl == "" {
		return OSVQuery{
			Package: OSVPackage{Name: strings.ToLower(coord.PackageName)},
			Version: coord.PackageVersion,
		}
	}

	purl, _, _ := strings.Cut(coord.Purl, "?")
	return OSVQuery{
		Package: OSVPackage{Purl: strings.ToLower(purl)},
	}
}

type OSVClient struct {
	once     sync.Once
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
}

func (c *OSVClient) init() {
	c.once.Do(func() {
		if c.Endpoint == "" {
			c.Endpoint = OSVEndpoint
		}
		if c.Client == nil {
			c.Client = http.DefaultClient
		}
		if c.Timeout <= 0 {
			c.Timeout = DefaultOSVTimeout
		}
	})
}

func buildOSVUrl(endpoint, api string) (string, error) {
	apiUrl, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint: %w", err)
	}
	return apiUrl.JoinPath("v1", api).String(), nil
}

// Query asks the feed for the advisories affecting one package.
func (c *OSVClient) Query(ctx context.Context, query OSVQuery) ([]models.Vulnerability, error) {
	c.init()

	requestUrl, err := buildOSVUrl(c.Endpoint, "query")
	if err != nil {
		return nil, fmt.Errorf("failed to build url: %w", err)
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestUrl, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failure in HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response from %q: %s", requestUrl, resp.Status)
	}

	osvResp := OSVResponse{}
	err = json.NewDecoder(resp.Body).Decode(&osvResp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return osvResp.Vulns, nil
}
