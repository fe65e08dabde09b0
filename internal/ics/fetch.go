package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"sync"
	"syscall"
	"time"

	"eventtz/internal/errdef"
	appLog "eventtz/internal/log"
)

const (
	maxFeedBytes  = 4 << 20
	maxCachedFeed = 64
)

var errBlockedHost = errors.New("feed host is not allowed")

// Fetcher downloads ICS feeds for import, honoring ETag / Last-Modified so a
// repeated import of an unchanged feed reuses the previous body.
//
// By default feeds on loopback, private, link-local and unspecified
// addresses are refused. The check runs on the dialed address, so it also
// covers redirects and DNS names resolving to such addresses.
type Fetcher struct {
	client       *http.Client
	allowPrivate bool

	mu    sync.Mutex
	cache map[string]cachedFeed
}

type cachedFeed struct {
	etag         string
	lastModified string
	body         []byte
	storedAt     time.Time
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// AllowPrivateHosts lets the Fetcher reach loopback and private networks,
// e.g. a calendar server on the same LAN.
func AllowPrivateHosts() FetcherOption {
	return func(f *Fetcher) { f.allowPrivate = true }
}

// NewFetcher returns a Fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	f := &Fetcher{cache: make(map[string]cachedFeed)}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{Timeout: timeout}
	if !f.allowPrivate {
		dialer.Control = refusePrivate
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil
	f.client = &http.Client{Timeout: timeout, Transport: transport}
	return f
}

// refusePrivate is a net.Dialer Control hook rejecting non-public addresses.
func refusePrivate(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return errBlockedHost
	}
	if !publicAddr(ap.Addr()) {
		return errBlockedHost
	}
	return nil
}

func publicAddr(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsValid() &&
		!a.IsLoopback() &&
		!a.IsPrivate() &&
		!a.IsLinkLocalUnicast() &&
		!a.IsLinkLocalMulticast() &&
		!a.IsInterfaceLocalMulticast() &&
		!a.IsMulticast() &&
		!a.IsUnspecified()
}

// Fetch returns the body of the feed at rawURL. Only http and https URLs are
// accepted; anything else is a bad request.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errdef.NewBadRequest("invalid feed URL %q", redactURL(rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	cached, hasCached := f.cache[u.String()]
	f.mu.Unlock()
	if hasCached {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		appLog.Error("ics fetch failed", err, "url", redactURL(rawURL))
		if errors.Is(err, errBlockedHost) {
			return nil, errdef.NewBadRequest("fetch feed: %w", errBlockedHost)
		}
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && hasCached:
		appLog.Debug("ics feed not modified", "url", redactURL(rawURL))
		return cached.body, nil
	case resp.StatusCode != http.StatusOK:
		return nil, errdef.NewBadRequest("fetch feed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if len(body) > maxFeedBytes {
		return nil, errdef.NewBadRequest("feed exceeds size limit")
	}

	etag, lastModified := resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")
	if etag != "" || lastModified != "" {
		f.store(u.String(), cachedFeed{etag: etag, lastModified: lastModified, body: body, storedAt: time.Now()})
	}

	appLog.Info("ics feed fetched", "url", redactURL(rawURL), "bytes", len(body))
	return body, nil
}

// store caches feed under key, evicting the oldest entry once the cache holds
// maxCachedFeed feeds.
func (f *Fetcher) store(key string, feed cachedFeed) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.cache[key]; !ok && len(f.cache) >= maxCachedFeed {
		var oldest string
		for k, c := range f.cache {
			if oldest == "" || c.storedAt.Before(f.cache[oldest].storedAt) {
				oldest = k
			}
		}
		delete(f.cache, oldest)
	}
	f.cache[key] = feed
}

// redactURL keeps only scheme and host; feed URLs often carry secret tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
