package indexer

import "github.com/anacrolix/torrent/metainfo"

// magnetHash extracts the hex info hash from a magnet link.
func magnetHash(link string) (string, bool) {
	m, err := metainfo.ParseMagnetUri(link)
	if err != nil || m.InfoHash == (metainfo.Hash{}) {
		return "", false
	}
	return m.InfoHash.HexString(), true
}
