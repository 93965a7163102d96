package integrations

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"longhaul/internal/logging"
)

// PageScraper fetches a page over plain HTTP and extracts visible text.
// Used as the browser-scrape fallback when no Chrome instance is configured
// or launchable.
type PageScraper struct {
	client *http.Client
}

// NewPageScraper creates a scraper with a bounded timeout.
func NewPageScraper(timeout time.Duration) *PageScraper {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &PageScraper{client: &http.Client{Timeout: timeout}}
}

// Scrape fetches the URL and returns the page's visible text. The selector
// is honored only for "body" and "title"; CSS selection needs the browser
// path.
func (p *PageScraper) Scrape(ctx context.Context, url, selector string) (string, error) {
	timer := logging.StartTimer(logging.CategoryIntegrations, "HTTPScrape")
	defer timer.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build scrape request: %w", err)
	}
	req.Header.Set("User-Agent", "longhaul/0.3")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape fetch returned %d for %s", resp.StatusCode, url)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	if selector == "title" {
		if title := findTitle(doc); title != "" {
			return title, nil
		}
		return "", fmt.Errorf("no title element in %s", url)
	}

	text := extractText(doc)
	logging.IntegrationsDebug("http scrape of %s yielded %d bytes", url, len(text))
	return text, nil
}

// extractText walks the tree collecting visible text, skipping script and
// style subtrees.
func extractText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if node.Type == html.TextNode {
			trimmed := strings.TrimSpace(node.Data)
			if trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString("\n")
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if title := findTitle(child); title != "" {
			return title
		}
	}
	return ""
}
