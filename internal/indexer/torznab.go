package indexer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"eventarr/internal/config"
	"eventarr/internal/release"
	"eventarr/internal/services"
)

const (
	torznabComponent = "indexer"
	maxFeedBytes     = 16 << 20
	defaultUserAgent = "eventarr/1"
	defaultFeedLimit = 100

	freeleechFlag    = "freeleech"
	halfleechFlag    = "halfleech"
	doubleUploadFlag = "double_upload"
	internalFlag     = "internal"
	sceneFlag        = "scene"
)

// Torznab queries a Torznab or Newznab API endpoint.
type Torznab struct {
	name       string
	baseURL    string
	apiKey     string
	protocol   release.Protocol
	categories []int
	timeout    time.Duration
	http       *http.Client
	limiter    *rate.Limiter
}

// NewTorznab builds a client for src. A nil client uses http.DefaultClient.
func NewTorznab(src config.Source, defaultTimeout time.Duration, client *http.Client) *Torznab {
	if client == nil {
		client = http.DefaultClient
	}
	protocol := release.ParseProtocol(src.Protocol)
	if protocol == release.ProtocolUnknown {
		protocol = release.ParseProtocol(src.Kind)
	}
	t := &Torznab{
		name:       src.Name,
		baseURL:    src.URL,
		apiKey:     src.APIKey,
		protocol:   protocol,
		categories: append([]int(nil), src.Categories...),
		timeout:    src.Timeout(defaultTimeout),
		http:       client,
	}
	if src.RequestsPerMinute > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(float64(src.RequestsPerMinute)/60.0), 1)
	}
	return t
}

// Name returns the configured source name.
func (t *Torznab) Name() string { return t.name }

// Protocol returns the download protocol of releases from this source.
func (t *Torznab) Protocol() release.Protocol { return t.protocol }

// Timeout returns the per-call timeout configured for this source.
func (t *Torznab) Timeout() time.Duration { return t.timeout }

// Search runs a free-text search and normalizes the feed.
func (t *Torznab) Search(ctx context.Context, q Query) ([]release.Release, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, services.Wrap(services.ErrTimeout, torznabComponent, "rate limit", t.name, err)
		}
	}

	endpoint, err := t.searchURL(q)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, torznabComponent, "build url", t.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, torznabComponent, "build request", t.name, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.1")

	resp, err := t.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, torznabComponent, "search", t.name, err)
		}
		return nil, services.Wrap(services.ErrSourceFailure, torznabComponent, "search", t.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, services.Wrap(services.ErrSourceFailure, torznabComponent, "search",
			fmt.Sprintf("%s returned %s: %s", t.name, resp.Status, strings.TrimSpace(string(snippet))), nil)
	}

	releases, err := t.decode(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, err
	}
	return releases, nil
}

func (t *Torznab) searchURL(q Query) (string, error) {
	u, err := url.Parse(t.baseURL)
	if err != nil {
		return "", err
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api"
	}
	v := u.Query()
	v.Set("t", "search")
	v.Set("q", q.Text())
	if t.apiKey != "" {
		v.Set("apikey", t.apiKey)
	}
	cats := q.Categories
	if len(cats) == 0 {
		cats = t.categories
	}
	if len(cats) > 0 {
		parts := make([]string, len(cats))
		for i, c := range cats {
			parts[i] = strconv.Itoa(c)
		}
		v.Set("cat", strings.Join(parts, ","))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("extended", "1")
	u.RawQuery = v.Encode()
	return u.String(), nil
}

type feedDocument struct {
	XMLName     xml.Name
	Code        string      `xml:"code,attr"`
	Description string      `xml:"description,attr"`
	Channel     feedChannel `xml:"channel"`
}

type feedChannel struct {
	Items []feedItem `xml:"item"`
}

type feedItem struct {
	Title     string        `xml:"title"`
	GUID      string        `xml:"guid"`
	Link      string        `xml:"link"`
	Size      int64         `xml:"size"`
	PubDate   string        `xml:"pubDate"`
	Enclosure feedEnclosure `xml:"enclosure"`
	Attrs     []feedAttr    `xml:"attr"`
}

type feedEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type feedAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (t *Torznab) decode(r io.Reader) ([]release.Release, error) {
	var doc feedDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, services.Wrap(services.ErrSourceFailure, torznabComponent, "decode feed", t.name, err)
	}
	if doc.XMLName.Local == "error" {
		return nil, services.Wrap(services.ErrSourceFailure, torznabComponent, "search",
			fmt.Sprintf("%s error %s: %s", t.name, doc.Code, doc.Description), nil)
	}

	releases := make([]release.Release, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		rel, ok := t.normalize(item)
		if !ok {
			continue
		}
		releases = append(releases, rel)
	}
	return releases, nil
}

func (t *Torznab) normalize(item feedItem) (release.Release, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return release.Release{}, false
	}
	attrs := make(map[string]string, len(item.Attrs))
	for _, attr := range item.Attrs {
		name := strings.ToLower(strings.TrimSpace(attr.Name))
		if name == "tag" {
			attrs["tag:"+strings.ToLower(strings.TrimSpace(attr.Value))] = "1"
			continue
		}
		attrs[name] = strings.TrimSpace(attr.Value)
	}

	rel := release.Release{
		GUID:        strings.TrimSpace(item.GUID),
		Title:       title,
		SourceName:  t.name,
		Protocol:    t.protocol,
		SizeBytes:   item.Size,
		DownloadURL: strings.TrimSpace(item.Enclosure.URL),
		InfoHash:    attrs["infohash"],
	}
	if rel.SizeBytes == 0 {
		rel.SizeBytes = item.Enclosure.Length
	}
	if rel.SizeBytes == 0 {
		rel.SizeBytes, _ = strconv.ParseInt(attrs["size"], 10, 64)
	}
	if rel.DownloadURL == "" {
		rel.DownloadURL = strings.TrimSpace(item.Link)
	}
	if magnet := attrs["magneturl"]; magnet != "" {
		if rel.DownloadURL == "" {
			rel.DownloadURL = magnet
		}
		if rel.InfoHash == "" {
			if hash, ok := magnetHash(magnet); ok {
				rel.InfoHash = hash
			}
		}
	}
	if published, ok := parsePubDate(item.PubDate); ok {
		rel.PublishedAt = published
	}
	if t.protocol == release.ProtocolTorrent {
		if seeders, err := strconv.Atoi(attrs["seeders"]); err == nil {
			rel.Seeders = &seeders
			if peers, err := strconv.Atoi(attrs["peers"]); err == nil {
				leechers := peers - seeders
				if leechers < 0 {
					leechers = 0
				}
				rel.Leechers = &leechers
			}
		}
	}
	rel.IndexerFlags = indexerFlags(attrs)
	rel.Enrich()
	return rel, true
}

func indexerFlags(attrs map[string]string) []string {
	var flags []string
	switch attrs["downloadvolumefactor"] {
	case "0":
		flags = append(flags, freeleechFlag)
	case "0.5":
		flags = append(flags, halfleechFlag)
	}
	if attrs["uploadvolumefactor"] == "2" {
		flags = append(flags, doubleUploadFlag)
	}
	if attrs["tag:internal"] != "" {
		flags = append(flags, internalFlag)
	}
	if attrs["tag:scene"] != "" {
		flags = append(flags, sceneFlag)
	}
	if attrs["tag:freeleech"] != "" && attrs["downloadvolumefactor"] != "0" {
		flags = append(flags, freeleechFlag)
	}
	return flags
}

var pubDateLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC3339, "Mon, 2 Jan 2006 15:04:05 -0700"}

func parsePubDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

