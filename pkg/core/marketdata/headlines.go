package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher retrieves recent news headlines used as market context in agent
// prompts. All failures degrade to an empty context; market color is an
// enrichment, never a prerequisite.
type Fetcher struct {
	client  *http.Client
	baseURL string
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://news.google.com/search",
	}
}

// Headlines scrapes up to limit recent headlines for one symbol.
func (f *Fetcher) Headlines(ctx context.Context, symbol string, limit int) ([]string, error) {
	url := fmt.Sprintf("%s?q=%s%%20stock&hl=en-US&gl=US&ceid=US:en", f.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create headlines request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; strategy-arena/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("headlines fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("headlines fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse headlines page: %w", err)
	}

	var headlines []string
	doc.Find("article a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Text())
		if title == "" || len(title) < 20 {
			return true
		}
		headlines = append(headlines, title)
		return len(headlines) < limit
	})

	return headlines, nil
}

// MarketContext builds the free-text market context block injected into
// generation and critique prompts. Symbols whose headlines cannot be fetched
// are simply omitted.
func (f *Fetcher) MarketContext(ctx context.Context, symbols []string) string {
	var sb strings.Builder
	for _, symbol := range symbols {
		headlines, err := f.Headlines(ctx, symbol, 5)
		if err != nil || len(headlines) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("Recent headlines for %s:\n", symbol))
		for _, h := range headlines {
			sb.WriteString("- " + h + "\n")
		}
	}
	return sb.String()
}
