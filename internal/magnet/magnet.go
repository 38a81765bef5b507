package magnet

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// DefaultTrackers are appended to magnets built from a bare info hash.
var DefaultTrackers = []string{
	"udp://open.demonii.com:1337/announce",
	"udp://tracker.openbittorrent.com:80",
	"udp://tracker.coppersurfer.tk:6969",
	"udp://glotorrents.pw:6969/announce",
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://torrent.gresille.org:80/announce",
	"udp://p4p.arenabg.com:1337",
	"udp://tracker.leechers-paradise.org:6969",
}

var (
	btihRe = regexp.MustCompile(`(?i)btih:([a-f0-9]{40})`)
	hexRe  = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
)

// InfoHash returns the lower-case hex info hash of a magnet link.
func InfoHash(link string) (string, error) {
	link = strings.TrimSpace(link)
	if !strings.HasPrefix(link, "magnet:") {
		return "", fmt.Errorf("not a magnet link: %q", truncate(link))
	}

	if m, err := metainfo.ParseMagnetURI(link); err == nil && m.InfoHash != (metainfo.Hash{}) {
		return strings.ToLower(m.InfoHash.HexString()), nil
	}

	// Indexers sometimes emit magnets with unescaped display names that the
	// strict parser rejects.
	if match := btihRe.FindStringSubmatch(link); match != nil {
		return strings.ToLower(match[1]), nil
	}
	return "", fmt.Errorf("magnet has no btih hash: %q", truncate(link))
}

// Build constructs a magnet link from a hex info hash.
func Build(hash, name string, trackers []string) (string, error) {
	if !hexRe.MatchString(hash) {
		return "", fmt.Errorf("invalid info hash %q", hash)
	}
	var ih metainfo.Hash
	if err := ih.FromHexString(strings.ToLower(hash)); err != nil {
		return "", fmt.Errorf("invalid info hash %q: %w", hash, err)
	}
	m := metainfo.Magnet{
		InfoHash:    ih,
		DisplayName: name,
		Trackers:    trackers,
	}
	return m.String(), nil
}

// ValidHash reports whether s is a 40 character hex info hash.
func ValidHash(s string) bool {
	return hexRe.MatchString(s)
}

func truncate(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
