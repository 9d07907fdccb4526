// Package catalog fetches and caches the published voice list. The
// list ships out-of-band so new voices appear without an app update;
// ultra voices are marked here and admission is decided by the feature
// gates at use time.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Voice is one entry in the published catalog.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Style    string `json:"style"`
	Gender   string `json:"gender"`
	Category string `json:"category"`
	Ultra    bool   `json:"ultra"`
}

type document struct {
	Version string  `json:"version"`
	Voices  []Voice `json:"voices"`
}

// DefaultRefreshInterval is how often the catalog re-fetches when
// auto-refresh is started.
const DefaultRefreshInterval = time.Minute

const maxCatalogBody = 4 << 20

// Catalog caches the published voice list and refreshes it in the
// background.
type Catalog struct {
	client  *http.Client
	baseURL string
	log     logrus.FieldLogger

	mu        sync.Mutex
	version   string
	voices    []Voice
	byID      map[string]Voice
	listeners map[int]func([]Voice)
	nextID    int

	runner  *cron.Cron
	started bool
}

// New builds a catalog over baseURL. client and log are optional.
func New(baseURL string, client *http.Client, log logrus.FieldLogger) *Catalog {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Catalog{
		client:    client,
		baseURL:   baseURL,
		log:       log,
		byID:      make(map[string]Voice),
		listeners: make(map[int]func([]Voice)),
	}
}

// Fetch pulls the catalog document once. A failed fetch keeps the
// previous list; the app works offline with whatever it last saw.
func (c *Catalog) Fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/catalog.json", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch voice catalog: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch voice catalog: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBody))
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode voice catalog: %w", err)
	}

	c.mu.Lock()
	changed := doc.Version != c.version
	c.version = doc.Version
	c.voices = doc.Voices
	c.byID = make(map[string]Voice, len(doc.Voices))
	for _, v := range doc.Voices {
		c.byID[v.ID] = v
	}
	fns := make([]func([]Voice), 0, len(c.listeners))
	if changed {
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
	}
	voices := append([]Voice(nil), doc.Voices...)
	c.mu.Unlock()

	if changed {
		c.log.WithFields(logrus.Fields{
			"version": doc.Version,
			"voices":  len(doc.Voices),
		}).Info("voice catalog updated")
	}
	for _, fn := range fns {
		fn(voices)
	}
	return nil
}

// Start begins periodic refresh. Idempotent.
func (c *Catalog) Start(interval time.Duration) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	runner := cron.New()
	_, _ = runner.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := c.Fetch(context.Background()); err != nil {
			c.log.WithError(err).Warn("voice catalog refresh failed")
		}
	})
	c.runner = runner
	c.mu.Unlock()
	runner.Start()
}

// Stop halts periodic refresh. Idempotent.
func (c *Catalog) Stop() {
	c.mu.Lock()
	runner := c.runner
	c.runner = nil
	c.started = false
	c.mu.Unlock()
	if runner != nil {
		runner.Stop()
	}
}

// Voices returns a copy of the current list.
func (c *Catalog) Voices() []Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Voice(nil), c.voices...)
}

// Voice looks up an entry by id.
func (c *Catalog) Voice(id string) (Voice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.byID[id]
	return v, ok
}

// Version returns the catalog version last fetched, or "".
func (c *Catalog) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Subscribe registers fn for catalog changes; the returned func
// removes it.
func (c *Catalog) Subscribe(fn func([]Voice)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}
