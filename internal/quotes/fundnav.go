package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/model"
)

// DefaultRelayURL is the public CORS relay the fund scraper goes through.
// The relay wraps the target page in a JSON envelope: {"contents": "<html>"}.
const DefaultRelayURL = "https://api.allorigins.win/get?url="

// navPattern finds the first number after the "淨值" (net asset value) label
// in the fund page text.
var navPattern = regexp.MustCompile(`(?s)淨值.*?(\d+\.?\d*)`)

// tagPattern strips markup so the NAV regex runs over page text, not
// attribute soup.
var tagPattern = regexp.MustCompile(`<[^>]*>`)

// NAVSource prices funds by fetching the asset's fund page and scanning the
// text for the net-asset-value figure. When a relay URL is configured the
// page is fetched through it and unwrapped from its JSON envelope; with an
// empty relay the page is fetched directly.
type NAVSource struct {
	cli      *http.Client
	relayURL string
}

// NewNAVSource creates a fund NAV scraper going through the given relay.
func NewNAVSource(relayURL string) *NAVSource {
	return &NAVSource{
		cli:      &http.Client{Timeout: 8 * time.Second},
		relayURL: relayURL,
	}
}

func (s *NAVSource) Name() string { return "fundnav" }

// Fetch scrapes the asset's DataURL for a NAV figure.
func (s *NAVSource) Fetch(ctx context.Context, asset model.Asset) (decimal.Decimal, error) {
	if asset.DataURL == "" {
		return decimal.Zero, ErrNoSource
	}

	addr := asset.DataURL
	if s.relayURL != "" {
		addr = s.relayURL + url.QueryEscape(asset.DataURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", "portfolio-engine/1.0")

	resp, err := s.cli.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("quotes: fund page http %d", resp.StatusCode)
	}

	page, err := s.readPage(resp.Body)
	if err != nil {
		return decimal.Zero, err
	}

	text := tagPattern.ReplaceAllString(page, " ")
	m := navPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, ErrNoQuote
	}

	nav, err := decimal.NewFromString(m[1])
	if err != nil || !nav.IsPositive() {
		return decimal.Zero, ErrNoQuote
	}
	return nav, nil
}

// readPage returns the HTML of the fund page, unwrapping the relay's JSON
// envelope when a relay is in use.
func (s *NAVSource) readPage(body io.Reader) (string, error) {
	if s.relayURL == "" {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	var envelope struct {
		Contents string `json:"contents"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return "", err
	}
	if envelope.Contents == "" {
		return "", ErrNoQuote
	}
	return envelope.Contents, nil
}
