// Package geocode turns free-text addresses into coordinates using a
// Nominatim-compatible search endpoint.
//
// A lookup tries the address as given and then progressively relaxed forms
// of it. When none of them resolves, a small table of well-known places is
// consulted by keyword. Results are cached in memory.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/karlseguin/ccache/v3"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/footprint-mcp/internal/logging"
	"github.com/ironsheep/footprint-mcp/internal/tile"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Lookup errors.
var (
	ErrEmptyQuery = errors.New("empty address")
	ErrNotFound   = errors.New("address not found")
)

// Match sources.
const (
	SourceGeocoder = "geocoder"
	SourceKeyword  = "keyword"
)

// Match is a resolved address.
type Match struct {
	Point tile.GeoPoint `json:"point"`

	// Query is the variant or keyword that produced the match.
	Query string `json:"query"`

	// Source is SourceGeocoder or SourceKeyword.
	Source string `json:"source"`

	DisplayName string `json:"display_name,omitempty"`
}

// Keywords maps a lower-case phrase to the coordinates used when the
// geocoder has no answer and the address contains the phrase.
var Keywords = map[string]tile.GeoPoint{
	"tokyo station":    {Lat: 35.681236, Lon: 139.767125},
	"東京駅":              {Lat: 35.681236, Lon: 139.767125},
	"shinjuku station": {Lat: 35.690921, Lon: 139.700258},
	"shibuya station":  {Lat: 35.658034, Lon: 139.701636},
	"osaka station":    {Lat: 34.702485, Lon: 135.495951},
}

// Config holds the client settings. Zero fields take defaults.
type Config struct {
	// BaseURL is the search endpoint root. Defaults to DefaultBaseURL.
	BaseURL string

	// UserAgent identifies the client to the geocoding service.
	UserAgent string

	// Timeout bounds one lookup. Defaults to 10 seconds.
	Timeout time.Duration

	// CacheTTL is how long a resolved address is remembered. Defaults to
	// one hour.
	CacheTTL time.Duration

	// CacheSize caps the number of remembered addresses. Defaults to 1000.
	CacheSize int64
}

// Client resolves addresses. It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	ttl       time.Duration
	http      *http.Client
	cache     *ccache.Cache[Match]
	keywords  map[string]tile.GeoPoint
	log       logrus.FieldLogger
}

// New creates a client. log may be nil.
func New(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "footprint-mcp/0.1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		ttl:       cfg.CacheTTL,
		http:      &http.Client{Timeout: cfg.Timeout},
		cache:     ccache.New(ccache.Configure[Match]().MaxSize(cfg.CacheSize)),
		keywords:  Keywords,
		log:       logging.OrDiscard(log),
	}
}

// Stop releases the cache's background worker.
func (c *Client) Stop() {
	c.cache.Stop()
}

// Lookup returns the coordinates of address.
func (c *Client) Lookup(ctx context.Context, address string) (tile.GeoPoint, error) {
	m, err := c.Resolve(ctx, address)
	if err != nil {
		return tile.GeoPoint{}, err
	}
	return m.Point, nil
}

// Resolve is Lookup with details about how the address was matched.
func (c *Client) Resolve(ctx context.Context, address string) (Match, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Match{}, ErrEmptyQuery
	}

	key := strings.ToLower(address)
	if item := c.cache.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	log := c.log.WithField("address", address)

	for _, q := range Variants(address) {
		m, ok, err := c.search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return Match{}, ctx.Err()
			}
			log.WithError(err).WithField("query", q).Warn("geocoder request failed")
			continue
		}
		if ok {
			log.WithField("query", q).Debug("address resolved")
			c.cache.Set(key, m, c.ttl)
			return m, nil
		}
	}

	if m, ok := c.keyword(address); ok {
		log.WithField("keyword", m.Query).Debug("address resolved from keyword table")
		c.cache.Set(key, m, c.ttl)
		return m, nil
	}

	return Match{}, fmt.Errorf("%w: %q", ErrNotFound, address)
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *Client) search(ctx context.Context, q string) (Match, bool, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return Match{}, false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Match{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Match{}, false, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&places); err != nil {
		return Match{}, false, fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	if len(places) == 0 {
		return Match{}, false, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Match{}, false, fmt.Errorf("invalid latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Match{}, false, fmt.Errorf("invalid longitude %q: %w", places[0].Lon, err)
	}
	p := tile.GeoPoint{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return Match{}, false, err
	}

	return Match{Point: p, Query: q, Source: SourceGeocoder, DisplayName: places[0].DisplayName}, true, nil
}

// keyword checks the table, longest phrase first.
func (c *Client) keyword(address string) (Match, bool) {
	lower := strings.ToLower(address)

	phrases := make([]string, 0, len(c.keywords))
	for k := range c.keywords {
		phrases = append(phrases, k)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})

	for _, k := range phrases {
		if strings.Contains(lower, k) {
			return Match{Point: c.keywords[k], Query: k, Source: SourceKeyword}, true
		}
	}
	return Match{}, false
}

var postalCode = regexp.MustCompile(`〒?\s*\b\d{3}-\d{4}\b|\b\d{5}(?:-\d{4})?\b`)

// Variants returns the relaxed queries tried for address, in order and
// without duplicates:
//
//  1. the address as given
//  2. without its first comma-separated segment
//  3. with postal codes removed
//  4. its last two comma-separated segments
func Variants(address string) []string {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = normalizeSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(address)

	segments := splitSegments(address)
	if len(segments) > 1 {
		add(strings.Join(segments[1:], ", "))
	}

	if postalCode.MatchString(address) {
		add(strings.Join(splitSegments(postalCode.ReplaceAllString(address, "")), ", "))
	}

	if len(segments) > 2 {
		add(strings.Join(segments[len(segments)-2:], ", "))
	}

	return out
}

func splitSegments(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '、' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
