package playlist

import (
	"bufio"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Variant is one quality entry of a master playlist.
type Variant struct {
	Bandwidth int
	URI       string
}

// Segment is one media entry of a variant playlist.
type Segment struct {
	// URL is the absolute remote URL of the segment.
	URL string
	// LocalName is the filename derived from the URL path, always ending in ".ts".
	LocalName string
}

var (
	bandwidthRe = regexp.MustCompile(`BANDWIDTH=(\d+)`)
	absoluteRe  = regexp.MustCompile(`^https?://`)
	ordinalRe   = regexp.MustCompile(`(\d+)`)
)

// IsValid reports whether text looks like an m3u8 playlist at all.
func IsValid(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.HasPrefix(line, "#EXTM3U")
	}
	return false
}

// IsMaster reports whether text is a master playlist enumerating variants.
func IsMaster(text string) bool {
	return strings.Contains(text, "#EXT-X-STREAM-INF")
}

// ParseVariants extracts (bandwidth, uri) pairs from a master playlist in
// file order. Relative URIs are resolved against baseURL's directory.
func ParseVariants(text, baseURL string) []Variant {
	lines := splitLines(text)
	var variants []Variant
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "#EXT-X-STREAM-INF") {
			continue
		}
		bandwidth := 0
		if m := bandwidthRe.FindStringSubmatch(lines[i]); m != nil {
			bandwidth, _ = strconv.Atoi(m[1])
		}
		// The next non-comment line is the variant URI.
		j := i + 1
		for j < len(lines) && strings.HasPrefix(lines[j], "#") {
			j++
		}
		if j < len(lines) {
			variants = append(variants, Variant{
				Bandwidth: bandwidth,
				URI:       ResolveURL(baseURL, lines[j]),
			})
			i = j
		}
	}
	return variants
}

// ParseSegments extracts media segments from a variant playlist. Only ".ts"
// entries are considered; bare relative paths are resolved against the
// playlist URL's directory.
func ParseSegments(text, playlistURL string) []Segment {
	if !IsValid(text) {
		return nil
	}
	scanner := bufio.NewScanner(strings.NewReader(text))
	var segments []Segment
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasSuffix(line, ".ts") {
			continue
		}
		full := ResolveURL(playlistURL, line)
		segments = append(segments, Segment{URL: full, LocalName: LocalName(full)})
	}
	return segments
}

// LocalName derives the on-disk filename for a segment URL from its path
// component.
func LocalName(segmentURL string) string {
	name := segmentURL
	if u, err := url.Parse(segmentURL); err == nil {
		name = path.Base(u.Path)
	}
	if !strings.HasSuffix(name, ".ts") {
		name += ".ts"
	}
	return name
}

// Ordinal recovers the ordering index embedded in a segment filename, the
// first run of digits. ok is false when the name carries no digits; such
// files sort after all numbered ones.
func Ordinal(name string) (n int, ok bool) {
	m := ordinalRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ResolveURL resolves ref against the directory of base. Absolute refs are
// returned unchanged.
func ResolveURL(base, ref string) string {
	if absoluteRe.MatchString(ref) {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
