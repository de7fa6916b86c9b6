// Package serper provides the web search tool used by the research agent. It
// queries the Serper Google Search API and formats the organic results as
// plain text the model can read.
package serper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/germanamz/contentcrew/pkg/apiclient"
	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
)

const (
	// DefaultBaseURL is the public Serper endpoint.
	DefaultBaseURL = "https://google.serper.dev"
	// DefaultNumResults matches Serper's own default page size.
	DefaultNumResults = 10
	// ToolName is the name the model calls the tool by.
	ToolName = "search_internet"

	searchPath = "/search"
)

// ErrMissingAPIKey is returned when a search is attempted without a key.
var ErrMissingAPIKey = errors.New("serper: api key is not set")

// Result is one organic search hit.
type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Response is the subset of the Serper response the tool uses.
type Response struct {
	AnswerBox *struct {
		Title   string `json:"title"`
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox,omitempty"`
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"knowledgeGraph,omitempty"`
	Organic []Result `json:"organic"`
}

// Client runs searches.
type Client struct {
	api        apiclient.Client
	numResults int
}

// Option customises a Client.
type Option func(*Client)

// WithNumResults sets how many organic results to request and return.
// Values below 1 are ignored.
func WithNumResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.numResults = n
		}
	}
}

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.api.BaseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.api.HTTPClient = hc }
}

// New creates a Client. The key is sent in the X-API-KEY header.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{numResults: DefaultNumResults}
	c.api.BaseURL = DefaultBaseURL
	c.api.Auth = apiclient.Auth{Key: apiKey, Header: "X-API-KEY"}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NumResults returns the configured result count.
func (c *Client) NumResults() int { return c.numResults }

// Search runs a query and returns at most NumResults organic hits along with
// the raw response.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("serper: search query is empty")
	}
	if c.api.Auth.Key == "" {
		return nil, ErrMissingAPIKey
	}

	payload := struct {
		Q   string `json:"q"`
		Num int    `json:"num"`
	}{Q: query, Num: c.numResults}

	var resp Response
	if err := c.api.PostJSON(ctx, searchPath, payload, &resp); err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}

	if len(resp.Organic) > c.numResults {
		resp.Organic = resp.Organic[:c.numResults]
	}
	return &resp, nil
}

type toolInput struct {
	SearchQuery string `json:"search_query"`
}

// Tool returns the search_internet tool backed by c.
func (c *Client) Tool() toolbox.Tool {
	return toolbox.Tool{
		Name:        ToolName,
		Description: "Search the internet with a query. Returns titles, links and snippets of the top results.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"search_query":{"type":"string","description":"Mandatory search query you want to use to search the internet"}},"required":["search_query"]}`),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			in, err := toolbox.DecodeInput[toolInput](input)
			if err != nil {
				return "", fmt.Errorf("%s: %w", ToolName, err)
			}

			resp, err := c.Search(ctx, in.SearchQuery)
			if err != nil {
				return "", err
			}
			return Format(resp), nil
		},
	}
}

// ToolBox returns a ToolBox holding only the search tool.
func (c *Client) ToolBox() *toolbox.ToolBox {
	return toolbox.New(c.Tool())
}

// Format renders a response as text: the answer box and knowledge graph
// summary when present, then each organic result separated by "---".
func Format(resp *Response) string {
	var b strings.Builder

	if ab := resp.AnswerBox; ab != nil {
		answer := ab.Answer
		if answer == "" {
			answer = ab.Snippet
		}
		if answer != "" {
			fmt.Fprintf(&b, "Answer: %s\n\n", answer)
		}
	}

	if kg := resp.KnowledgeGraph; kg != nil && kg.Title != "" {
		fmt.Fprintf(&b, "Knowledge Graph: %s", kg.Title)
		if kg.Type != "" {
			fmt.Fprintf(&b, " (%s)", kg.Type)
		}
		if kg.Description != "" {
			fmt.Fprintf(&b, "\n%s", kg.Description)
		}
		b.WriteString("\n\n")
	}

	if len(resp.Organic) == 0 {
		b.WriteString("No results found.")
		return b.String()
	}

	b.WriteString("Search results:\n")
	for i, r := range resp.Organic {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "Title: %s\nLink: %s\nSnippet: %s", r.Title, r.Link, r.Snippet)
	}

	return b.String()
}
