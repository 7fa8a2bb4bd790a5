package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single gateway attempt.
const DefaultTimeout = 2 * time.Second

// DefaultGateways are tried in order for every pointer.
var DefaultGateways = []string{
	"https://gateway.pinata.cloud/ipfs/",
	"https://ipfs.io/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://dweb.link/ipfs/",
}

// Document is the off-chain skill descriptor. Every field is optional.
type Document struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Image       string   `json:"image,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Fetcher resolves content-addressed pointers through a list of gateways.
type Fetcher struct {
	client   *resty.Client
	gateways []string
	timeout  time.Duration
	logger   *zap.Logger
}

// Option is a functional option for configuring the fetcher
type Option func(*Fetcher)

// WithGateways replaces the gateway list.
func WithGateways(gateways []string) Option {
	return func(f *Fetcher) {
		if len(gateways) > 0 {
			f.gateways = append([]string(nil), gateways...)
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithHTTPClient allows using a custom http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = resty.NewWithClient(client)
	}
}

// NewFetcher creates a fetcher using DefaultGateways and DefaultTimeout
// unless overridden.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   resty.New(),
		gateways: append([]string(nil), DefaultGateways...),
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.client.SetRetryCount(0)
	return f
}

// Hash extracts the content hash from a pointer. It strips an ipfs:// scheme,
// or takes whatever follows an /ipfs/ path segment; anything else is
// returned verbatim.
func Hash(pointer string) string {
	pointer = strings.TrimSpace(pointer)
	if rest, ok := strings.CutPrefix(pointer, "ipfs://"); ok {
		return strings.TrimPrefix(rest, "ipfs/")
	}
	if idx := strings.Index(pointer, "/ipfs/"); idx >= 0 {
		return pointer[idx+len("/ipfs/"):]
	}
	return pointer
}

// URLs returns the candidate URLs for pointer, in the order they are tried.
func (f *Fetcher) URLs(pointer string) []string {
	hash := Hash(pointer)
	if hash == "" {
		return nil
	}
	urls := make([]string, 0, len(f.gateways))
	for _, gw := range f.gateways {
		urls = append(urls, strings.TrimSuffix(gw, "/")+"/"+hash)
	}
	return urls
}

// Fetch returns the first descriptor any gateway serves, or nil when every
// gateway fails. It never returns an error.
func (f *Fetcher) Fetch(ctx context.Context, pointer string) *Document {
	for i, u := range f.URLs(pointer) {
		doc, err := f.try(ctx, u)
		if err == nil {
			return doc
		}
		f.logger.Warn("metadata gateway failed",
			zap.String("url", u),
			zap.Int("attempt", i+1),
			zap.Error(err))
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (f *Fetcher) try(ctx context.Context, url string) (*Document, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.R().
		SetContext(attemptCtx).
		SetHeader("Accept", "application/json").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode())
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || body[0] != '{' {
		return nil, errors.New("descriptor is not a JSON object")
	}
	doc, dropped, err := decodeDocument(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	if len(dropped) > 0 {
		f.logger.Debug("ignoring mistyped descriptor fields",
			zap.String("url", url),
			zap.Strings("fields", dropped))
	}
	return doc, nil
}

// decodeDocument reads a descriptor field by field. A field of the wrong
// type is dropped and reported; the rest of the document still applies.
// Non-string entries in tags are skipped.
func decodeDocument(body []byte) (*Document, []string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, err
	}

	doc := &Document{}
	var dropped []string
	for key, dst := range map[string]*string{
		"name":        &doc.Name,
		"description": &doc.Description,
		"category":    &doc.Category,
		"image":       &doc.Image,
	} {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			dropped = append(dropped, key)
		}
	}

	if v, ok := raw["tags"]; ok && string(v) != "null" {
		var items []interface{}
		if err := json.Unmarshal(v, &items); err != nil {
			dropped = append(dropped, "tags")
		} else {
			doc.Tags = make([]string, 0, len(items))
			for _, item := range items {
				if tag, ok := item.(string); ok {
					doc.Tags = append(doc.Tags, tag)
				}
			}
		}
	}

	sort.Strings(dropped)
	return doc, dropped, nil
}
