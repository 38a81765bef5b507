package media

import (
	"regexp"
	"strconv"
	"strings"

	ptn "github.com/razsteinmetz/go-ptn"
)

// Resolution is an ordered video quality tier.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	Resolution480
	Resolution720
	Resolution1080
	Resolution2160
)

var (
	// resolutionRe finds a resolution token anywhere in a release name.
	resolutionRe = regexp.MustCompile(`(?i)\b(2160p|4k|uhd|1080p|1080i|720p|576p|480p)\b`)

	// yearRe extracts a plausible release year.
	yearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

	// rejectRe matches releases that are never worth caching: samples and
	// theater recordings.
	rejectRe = regexp.MustCompile(`(?i)\b(sample|hdts|hd-ts|telesync|tele-sync|hdcam|camrip|cam|ts|tc|telecine|screener|scr)\b`)

	// blurayRe identifies disc sourced releases which rank above web sources.
	blurayRe = regexp.MustCompile(`(?i)\b(blu-?ray|bdrip|brrip|bdremux|remux)\b`)
)

// ParseResolution converts labels such as "1080p" or "4K" into a Resolution.
func ParseResolution(label string) Resolution {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "2160p", "4k", "uhd":
		return Resolution2160
	case "1080p", "1080i", "1080":
		return Resolution1080
	case "720p", "720":
		return Resolution720
	case "480p", "576p", "480", "sd":
		return Resolution480
	default:
		return ResolutionUnknown
	}
}

func (r Resolution) String() string {
	switch r {
	case Resolution2160:
		return "2160p"
	case Resolution1080:
		return "1080p"
	case Resolution720:
		return "720p"
	case Resolution480:
		return "480p"
	default:
		return "unknown"
	}
}

// Release is the parsed form of a torrent release name.
type Release struct {
	Title      string
	Year       string
	Resolution Resolution
	Quality    string
	BluRay     bool
	Rejected   bool
}

// ParseRelease extracts quality information from a release name. The parser
// tolerates names go-ptn cannot handle by falling back to token matching.
// Reject tokens only count after the title, so "Cam (2018)" is kept.
func ParseRelease(name string) Release {
	rel := Release{BluRay: blurayRe.MatchString(name)}

	if info, err := ptn.Parse(name); err == nil && info != nil {
		rel.Title = strings.TrimSpace(info.Title)
		rel.Resolution = ParseResolution(info.Resolution)
		rel.Quality = info.Quality
		if info.Year > 0 {
			rel.Year = strconv.Itoa(info.Year)
		}
	}

	if rel.Resolution == ResolutionUnknown {
		if m := resolutionRe.FindStringSubmatch(name); m != nil {
			rel.Resolution = ParseResolution(m[1])
		}
	}
	if rel.Year == "" {
		rel.Year = FirstYear(name)
	}
	if rel.Quality == "" && rel.BluRay {
		rel.Quality = "BluRay"
	}
	rel.Rejected = rejectRe.MatchString(releaseTags(name, rel.Title))
	if isTheaterSource(rel.Quality) && !rel.Rejected {
		// go-ptn read the title as a source tag
		rel.Quality = ""
	}
	return rel
}

// releaseTags returns the part of name after the title: everything after the
// first year that is not the leading token, else after the parsed title.
func releaseTags(name, title string) string {
	n := normalizeSeparators(name)
	if loc := yearRe.FindStringIndex(n); loc != nil && loc[0] > 0 {
		return n[loc[1]:]
	}
	title = strings.TrimSpace(title)
	if title != "" && len(title) <= len(n) && strings.EqualFold(n[:len(title)], title) {
		return n[len(title):]
	}
	return n
}

// IsSample reports whether a release or file name is a sample.
func IsSample(name string) bool {
	return strings.Contains(strings.ToLower(name), "sample")
}

// FirstYear returns the first four digit year in s, or "".
func FirstYear(s string) string {
	if m := yearRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func isTheaterSource(quality string) bool {
	switch strings.ToLower(quality) {
	case "cam", "camrip", "hdcam", "ts", "hdts", "telesync", "tc", "telecine", "scr", "screener":
		return true
	}
	return false
}

// normalizeSeparators turns dots and underscores into spaces so word
// boundaries work on scene style names.
func normalizeSeparators(name string) string {
	return strings.NewReplacer(".", " ", "_", " ", "[", " ", "]", " ").Replace(name)
}
