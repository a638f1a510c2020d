// Package websearch executes web searches against DuckDuckGo. The
// instant-answer API is tried first; when it has nothing usable the HTML
// results page is scraped. Failures never propagate as errors: the caller
// always gets a result set, degraded to a single error-tagged entry when
// the search could not run.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	instantAnswerURL = "https://api.duckduckgo.com/"
	htmlSearchURL    = "https://html.duckduckgo.com/html/"
	maxResults       = 8
)

// Result is one search hit. Error is set on the degraded entry produced
// when the search itself failed.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor runs searches. The zero value is not usable; construct with New.
type Executor struct {
	httpClient *http.Client
	apiBase    string
	htmlBase   string
}

func New() *Executor {
	return &Executor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    instantAnswerURL,
		htmlBase:   htmlSearchURL,
	}
}

// Search runs one query and returns at most 8 results. Transport and parse
// failures come back as a single error-tagged result.
func (e *Executor) Search(ctx context.Context, query string) []Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{{Error: "empty search query"}}
	}

	if results := e.instantAnswer(ctx, query); len(results) > 0 {
		return results
	}

	results, err := e.scrapeHTML(ctx, query)
	if err != nil {
		return []Result{{Error: fmt.Sprintf("search failed: %v", err)}}
	}
	if len(results) == 0 {
		return []Result{{Error: "no results found"}}
	}
	return results
}

type instantAnswerResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (e *Executor) instantAnswer(ctx context.Context, query string) []Result {
	u := fmt.Sprintf("%s?q=%s&format=json&no_html=1&skip_disambig=1",
		e.apiBase, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	var parsed instantAnswerResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil
	}

	var results []Result
	if parsed.AbstractText != "" {
		results = append(results, Result{
			Title:   parsed.Heading,
			URL:     parsed.AbstractURL,
			Snippet: parsed.AbstractText,
		})
	}
	for _, topic := range parsed.RelatedTopics {
		if len(results) >= maxResults {
			break
		}
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		results = append(results, Result{
			Title:   topic.Text,
			URL:     topic.FirstURL,
			Snippet: topic.Text,
		})
	}
	return results
}

func (e *Executor) scrapeHTML(ctx context.Context, query string) ([]Result, error) {
	u := fmt.Sprintf("%s?q=%s", e.htmlBase, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; shellsage)")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseResultsPage(string(body)), nil
}

// parseResultsPage pulls results out of the DuckDuckGo HTML page by marker
// scanning. The page structure is simple enough that splitting on the
// result anchor class beats carrying an HTML parser.
func parseResultsPage(html string) []Result {
	var results []Result

	parts := strings.Split(html, "result__a")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if len(results) >= maxResults {
			break
		}

		// Extract URL
		urlStart := strings.Index(part, "href=\"")
		if urlStart == -1 {
			continue
		}
		urlStart += 6
		urlEnd := strings.Index(part[urlStart:], "\"")
		if urlEnd == -1 {
			continue
		}
		link := unwrapRedirect(part[urlStart : urlStart+urlEnd])

		// Extract title: the anchor text after the closing of the href tag
		titleStart := strings.Index(part, ">")
		title := ""
		if titleStart != -1 {
			titleEnd := strings.Index(part[titleStart+1:], "<")
			if titleEnd != -1 {
				title = part[titleStart+1 : titleStart+1+titleEnd]
			}
		}

		// Extract snippet
		snippet := ""
		if snippetStart := strings.Index(part, "result__snippet"); snippetStart != -1 {
			snippetPart := part[snippetStart:]
			if contentStart := strings.Index(snippetPart, ">"); contentStart != -1 {
				contentStart++
				if contentEnd := strings.Index(snippetPart[contentStart:], "</a>"); contentEnd != -1 {
					snippet = stripTags(snippetPart[contentStart : contentStart+contentEnd])
				}
			}
		}

		title = cleanHTMLEntities(strings.TrimSpace(title))
		snippet = cleanHTMLEntities(strings.TrimSpace(snippet))

		if title == "" && link == "" {
			continue
		}
		results = append(results, Result{Title: title, URL: link, Snippet: snippet})
	}
	return results
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg=<target> redirect links to
// the target URL.
func unwrapRedirect(link string) string {
	idx := strings.Index(link, "uddg=")
	if idx == -1 {
		return link
	}
	target := link[idx+5:]
	if ampIdx := strings.Index(target, "&"); ampIdx != -1 {
		target = target[:ampIdx]
	}
	if decoded, err := url.QueryUnescape(target); err == nil {
		return decoded
	}
	return target
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func cleanHTMLEntities(s string) string {
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return s
}
