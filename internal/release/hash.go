package release

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// ContentHash returns a stable identity for a release. Torrents use the
// BitTorrent info hash (from the explicit hash or a magnet link); anything
// else falls back to a digest of source name plus GUID, download URL or title.
func ContentHash(r Release) string {
	if hash, ok := infoHash(r); ok {
		return hash
	}
	key := strings.TrimSpace(r.GUID)
	if key == "" {
		key = strings.TrimSpace(r.DownloadURL)
	}
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(r.Title))
	}
	sum := sha1.Sum([]byte(strings.ToLower(r.SourceName) + "\x00" + key))
	return "sha1:" + hex.EncodeToString(sum[:])
}

func infoHash(r Release) (string, bool) {
	if raw := strings.TrimSpace(r.InfoHash); raw != "" {
		var h metainfo.Hash
		if err := h.FromHexString(raw); err == nil {
			return "btih:" + h.HexString(), true
		}
	}
	for _, link := range []string{r.DownloadURL, r.GUID} {
		if !strings.HasPrefix(strings.ToLower(link), "magnet:") {
			continue
		}
		m, err := metainfo.ParseMagnetUri(link)
		if err == nil && m.InfoHash != (metainfo.Hash{}) {
			return "btih:" + m.InfoHash.HexString(), true
		}
	}
	return "", false
}
