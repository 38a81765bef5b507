package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/provider"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"
)

// DefaultListURL serves plain "host:port" lines.
const DefaultListURL = "https://api.proxyscrape.com/v2/?request=getproxies&protocol=http&timeout=10000&country=US&ssl=all&anonymity=all"

// DefaultTestURL echoes the caller's address.
const DefaultTestURL = "https://httpbin.org/ip"

// Config controls where proxies come from and how they are probed.
type Config struct {
	ListURL     string
	Refresh     time.Duration
	TestURL     string
	TestTimeout time.Duration
	Workers     int
	HTTPClient  *http.Client
}

// Pool rotates through a fetched proxy list.
type Pool struct {
	cfg    Config
	client *http.Client
	now    func() time.Time

	// clientFor builds the probe client routed through one proxy.
	clientFor func(proxy *url.URL) *http.Client

	mu      sync.Mutex
	proxies []*url.URL
	fetched time.Time
	next    int
}

func NewPool(cfg Config) *Pool {
	if cfg.ListURL == "" {
		cfg.ListURL = DefaultListURL
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = 30 * time.Minute
	}
	if cfg.TestURL == "" {
		cfg.TestURL = DefaultTestURL
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = 5 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	p := &Pool{cfg: cfg, client: client, now: time.Now}
	p.clientFor = func(proxy *url.URL) *http.Client {
		return &http.Client{
			Timeout:   cfg.TestTimeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxy)},
		}
	}
	return p
}

// Refresh replaces the proxy list.
func (p *Pool) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.ListURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching proxy list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return provider.StatusError("proxyscrape", resp.StatusCode, string(body))
	}

	proxies, err := parseList(resp.Body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.proxies = proxies
	p.fetched = p.now()
	p.next = 0
	log.WithField("count", len(proxies)).Debug("Fetched proxy list")
	return nil
}

func parseList(r io.Reader) ([]*url.URL, error) {
	var proxies []*url.URL
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "http://" + line
		}
		u, err := url.Parse(line)
		if err != nil || u.Host == "" {
			continue
		}
		proxies = append(proxies, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading proxy list: %w", err)
	}
	return proxies, nil
}

func (p *Pool) stale() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies) == 0 || p.now().Sub(p.fetched) > p.cfg.Refresh
}

// Proxy returns the next proxy in rotation. It fits http.Transport.Proxy; an
// empty pool sends requests directly.
func (p *Pool) Proxy(req *http.Request) (*url.URL, error) {
	if p.stale() {
		if err := p.Refresh(req.Context()); err != nil {
			log.WithField("err", err).Warn("Proxy refresh failed")
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return nil, nil
	}
	proxy := p.proxies[p.next%len(p.proxies)]
	p.next = (p.next + 1) % len(p.proxies)
	return proxy, nil
}

// Transport is an http.Transport that rotates through the pool.
func (p *Pool) Transport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = p.Proxy
	return t
}

// Len returns the number of proxies held.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Result is the outcome of probing one proxy.
type Result struct {
	Proxy   string
	OK      bool
	Latency time.Duration
	Err     error
}

// Test fetches a fresh list and probes every proxy against the test URL.
// Failing proxies are dropped from the pool. Results keep list order.
func (p *Pool) Test(ctx context.Context) ([]Result, error) {
	if err := p.Refresh(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	proxies := append([]*url.URL(nil), p.proxies...)
	p.mu.Unlock()

	mapper := iter.Mapper[*url.URL, Result]{MaxGoroutines: p.cfg.Workers}
	results := mapper.Map(proxies, func(u **url.URL) Result {
		return p.probe(ctx, *u)
	})

	var working []*url.URL
	for i, r := range results {
		if r.OK {
			working = append(working, proxies[i])
		}
	}
	p.mu.Lock()
	p.proxies = working
	p.next = 0
	p.mu.Unlock()

	return results, ctx.Err()
}

func (p *Pool) probe(ctx context.Context, proxy *url.URL) Result {
	res := Result{Proxy: proxy.String()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.TestURL, nil)
	if err != nil {
		res.Err = err
		return res
	}

	start := p.now()
	resp, err := p.clientFor(proxy).Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	res.Latency = p.now().Sub(start)
	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("status %d", resp.StatusCode)
		return res
	}
	res.OK = true
	return res
}
