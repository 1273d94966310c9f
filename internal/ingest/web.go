package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/jmylchreest/corpusctl/internal/httpclient"
	"github.com/jmylchreest/corpusctl/internal/models"
)

// webConfig is the opaque DataSource.Config payload for DataSourceTypeWeb.
type webConfig struct {
	Seeds []string `json:"seeds"`
	Depth int      `json:"depth"`
}

// webConnector pulls pages from a crawl: the configured seed URLs, and
// optionally same-origin links discovered within them up to Depth.
type webConnector struct {
	client *httpclient.Client
}

func newWebConnector(client *httpclient.Client) *webConnector {
	return &webConnector{client: client}
}

func (c *webConnector) Open(ctx context.Context, ds *models.DataSource) (ItemIterator, error) {
	var cfg webConfig
	if err := json.Unmarshal([]byte(ds.Config), &cfg); err != nil {
		return nil, fmt.Errorf("parsing web data source config: %w", err)
	}
	if len(cfg.Seeds) == 0 {
		return nil, fmt.Errorf("web data source config has no seeds")
	}

	visited := make(map[string]bool)
	queue := append([]string(nil), cfg.Seeds...)

	var items []*Item
	for depth := 0; depth <= cfg.Depth && len(queue) > 0; depth++ {
		var next []string
		for _, target := range queue {
			if visited[target] {
				continue
			}
			visited[target] = true

			body, contentType, links, err := c.fetch(ctx, target)
			if err != nil {
				// Per-item fetch failures surface as an empty-body Item so
				// the coordinator records a FAILED RawFile instead of
				// aborting the whole ingest batch.
				items = append(items, &Item{URI: target, Filename: filenameFromURI(target)})
				continue
			}
			items = append(items, &Item{
				URI:         target,
				Filename:    filenameFromURI(target),
				ContentType: contentType,
				Body:        io.NopCloser(bytes.NewReader(body)),
			})

			if depth < cfg.Depth {
				next = append(next, links...)
			}
		}
		queue = next
	}

	return newSliceIterator(items), nil
}

// fetch retrieves target and, if it is HTML, extracts same-origin links for
// the next crawl depth.
func (c *webConnector) fetch(ctx context.Context, target string) ([]byte, string, []string, error) {
	resp, err := c.client.Get(ctx, target)
	if err != nil {
		return nil, "", nil, err
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	var links []string
	if strings.Contains(contentType, "text/html") {
		links = extractLinks(target, buf)
	}

	return buf, contentType, links, nil
}

// extractLinks walks the HTML token stream for same-origin <a href> targets.
func extractLinks(base string, body []byte) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	var links []string
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return links
		}
		if tt != html.StartTagToken {
			continue
		}
		token := tokenizer.Token()
		if token.Data != "a" {
			continue
		}
		for _, attr := range token.Attr {
			if attr.Key != "href" {
				continue
			}
			ref, err := url.Parse(attr.Val)
			if err != nil {
				continue
			}
			resolved := baseURL.ResolveReference(ref)
			if resolved.Host == baseURL.Host {
				links = append(links, resolved.String())
			}
		}
	}
}

func filenameFromURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		name = parsed.Host
	}
	return name
}
