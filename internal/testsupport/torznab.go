package testsupport

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TorznabItem describes one item of a fake Torznab feed.
type TorznabItem struct {
	Title     string
	GUID      string
	Link      string
	Size      int64
	Seeders   int
	Peers     int
	InfoHash  string
	Published time.Time
	Freeleech bool
}

// TorznabFeed renders items as a Torznab RSS document.
func TorznabFeed(items ...TorznabItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed"><channel><title>fake</title>`)
	for i, item := range items {
		guid := item.GUID
		if guid == "" {
			guid = fmt.Sprintf("guid-%d", i)
		}
		link := item.Link
		if link == "" {
			link = fmt.Sprintf("http://fake.local/download/%d.torrent", i)
		}
		b.WriteString("<item>")
		fmt.Fprintf(&b, "<title>%s</title><guid>%s</guid><link>%s</link><size>%d</size>",
			html.EscapeString(item.Title), html.EscapeString(guid), html.EscapeString(link), item.Size)
		if !item.Published.IsZero() {
			fmt.Fprintf(&b, "<pubDate>%s</pubDate>", item.Published.UTC().Format(time.RFC1123Z))
		}
		fmt.Fprintf(&b, `<enclosure url="%s" length="%d" type="application/x-bittorrent"/>`, html.EscapeString(link), item.Size)
		fmt.Fprintf(&b, `<torznab:attr name="seeders" value="%d"/><torznab:attr name="peers" value="%d"/>`, item.Seeders, item.Peers)
		if item.InfoHash != "" {
			fmt.Fprintf(&b, `<torznab:attr name="infohash" value="%s"/>`, item.InfoHash)
		}
		if item.Freeleech {
			b.WriteString(`<torznab:attr name="downloadvolumefactor" value="0"/>`)
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

// TorznabServer is a fake Torznab endpoint.
type TorznabServer struct {
	*httptest.Server
	requests atomic.Int64

	mu   sync.Mutex
	last url.Values
}

// Requests returns how many search requests the server answered.
func (s *TorznabServer) Requests() int64 {
	return s.requests.Load()
}

// LastQuery returns the most recent query parameters, or nil.
func (s *TorznabServer) LastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NewTorznabServer serves respond's output for every request and closes the
// server on cleanup.
func NewTorznabServer(t testing.TB, respond func(query url.Values) (int, string)) *TorznabServer {
	t.Helper()

	srv := &TorznabServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.requests.Add(1)
		query := r.URL.Query()
		srv.mu.Lock()
		srv.last = query
		srv.mu.Unlock()
		status, body := respond(query)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}
