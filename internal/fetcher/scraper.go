package fetcher

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Table is a rectangular frame extracted from an HTML table.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Empty reports whether the table holds no rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Column returns the index of the named header, or -1.
func (t Table) Column(name string) int {
	for i, header := range t.Headers {
		if header == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at (row, named column), or "" when absent.
func (t Table) Cell(row int, name string) string {
	col := t.Column(name)
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// ScraperOptions parameterise the page scraper.
type ScraperOptions struct {
	URL     string
	Timeout time.Duration
}

// Scraper fetches a page and extracts its first HTML table.
type Scraper struct {
	opts   ScraperOptions
	logger zerolog.Logger
	client *http.Client
}

// NewScraper constructs a page scraper.
func NewScraper(opts ScraperOptions, logger zerolog.Logger) *Scraper {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scraper{
		opts:   opts,
		logger: logger.With().Str("component", "scraper").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchTable retrieves the page and returns its first table with
// header-named columns. Pages without a table yield an empty table.
func (s *Scraper) FetchTable(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return Table{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Table{}, ctx.Err()
		}
		s.logger.Error().Err(err).Str("url", s.opts.URL).Msg("scrape request failed")
		return Table{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error().Int("status", resp.StatusCode).Str("url", s.opts.URL).Msg("scrape http error")
		return Table{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		s.logger.Error().Err(err).Str("url", s.opts.URL).Msg("parse page failed")
		return Table{}, nil
	}

	return extractFirstTable(doc), nil
}

func extractFirstTable(doc *goquery.Document) Table {
	node := doc.Find("table").First()
	if node.Length() == 0 {
		return Table{}
	}

	var table Table
	node.Find("th").Each(func(_ int, cell *goquery.Selection) {
		table.Headers = append(table.Headers, strings.TrimSpace(cell.Text()))
	})

	node.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		empty := true
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())
			if text != "" {
				empty = false
			}
			cells = append(cells, text)
		})
		if empty {
			return
		}
		// Ragged rows are padded to the header width so column lookups
		// stay positional.
		for len(cells) < len(table.Headers) {
			cells = append(cells, "")
		}
		table.Rows = append(table.Rows, cells)
	})

	return table
}

var _ TableFetcher = (*Scraper)(nil)
