package playlist

import "testing"

const masterFixture = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=4000000,RESOLUTION=1920x1080,CODECS="avc1"
1080p60/playlist.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=852x480
480p30/playlist.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=600000,RESOLUTION=640x360
360p30/playlist.m3u8
`

const variantFixture = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:2
#EXTINF:2.000,
0.ts
#EXTINF:2.000,
1.ts
#EXTINF:2.000,
https://stream.example.com/abc/480p30/2.ts
`

func TestIsValid(t *testing.T) {
	if !IsValid("\n  \n#EXTM3U\n#EXTINF:2.0,\n0.ts") {
		t.Fatalf("expected leading blank lines to be skipped")
	}
	if IsValid("<html>not a playlist</html>") {
		t.Fatalf("html page accepted as playlist")
	}
	if IsValid("") {
		t.Fatalf("empty text accepted as playlist")
	}
}

func TestIsMaster(t *testing.T) {
	if !IsMaster(masterFixture) {
		t.Fatalf("master fixture not detected")
	}
	if IsMaster(variantFixture) {
		t.Fatalf("variant fixture detected as master")
	}
}

func TestParseVariants(t *testing.T) {
	variants := ParseVariants(masterFixture, "https://stream.example.com/abc/master.m3u8")
	if len(variants) != 3 {
		t.Fatalf("variants = %d, want 3", len(variants))
	}
	if variants[0].Bandwidth != 4000000 {
		t.Fatalf("bandwidth = %d, want 4000000", variants[0].Bandwidth)
	}
	if variants[1].URI != "https://stream.example.com/abc/480p30/playlist.m3u8" {
		t.Fatalf("unexpected resolved URI: %s", variants[1].URI)
	}
}

func TestParseVariantsMissingBandwidth(t *testing.T) {
	text := "#EXTM3U\n#EXT-X-STREAM-INF:RESOLUTION=852x480\nonly.m3u8\n"
	variants := ParseVariants(text, "https://h/x/master.m3u8")
	if len(variants) != 1 || variants[0].Bandwidth != 0 {
		t.Fatalf("unexpected variants: %+v", variants)
	}
}

func TestParseSegments(t *testing.T) {
	segs := ParseSegments(variantFixture, "https://stream.example.com/abc/480p30/playlist.m3u8")
	if len(segs) != 3 {
		t.Fatalf("segments = %d, want 3", len(segs))
	}
	if segs[0].URL != "https://stream.example.com/abc/480p30/0.ts" {
		t.Fatalf("relative segment not resolved: %s", segs[0].URL)
	}
	if segs[2].URL != "https://stream.example.com/abc/480p30/2.ts" {
		t.Fatalf("absolute segment rewritten: %s", segs[2].URL)
	}
	for i, want := range []string{"0.ts", "1.ts", "2.ts"} {
		if segs[i].LocalName != want {
			t.Fatalf("local name = %q, want %q", segs[i].LocalName, want)
		}
	}
}

func TestParseSegmentsIgnoresNonTS(t *testing.T) {
	text := "#EXTM3U\n#EXTINF:2.0,\n0.ts\n#EXTINF:2.0,\ninit.mp4\n"
	segs := ParseSegments(text, "https://h/p/playlist.m3u8")
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
}

func TestParseSegmentsRejectsInvalid(t *testing.T) {
	if segs := ParseSegments("not a playlist", "https://h/p.m3u8"); segs != nil {
		t.Fatalf("expected nil for invalid text, got %+v", segs)
	}
}

func TestLocalName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://h/a/b/42.ts", "42.ts"},
		{"https://h/a/b/42.ts?token=x", "42.ts"},
		{"https://h/a/b/chunk", "chunk.ts"},
	}
	for _, c := range cases {
		if got := LocalName(c.in); got != c.want {
			t.Fatalf("LocalName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestOrdinal(t *testing.T) {
	if n, ok := Ordinal("17.ts"); !ok || n != 17 {
		t.Fatalf("Ordinal(17.ts) = %d,%v", n, ok)
	}
	if n, ok := Ordinal("seg_042.ts"); !ok || n != 42 {
		t.Fatalf("Ordinal(seg_042.ts) = %d,%v", n, ok)
	}
	if _, ok := Ordinal("init.ts"); ok {
		t.Fatalf("digitless name reported an ordinal")
	}
}

func TestResolveURL(t *testing.T) {
	if got := ResolveURL("https://h/a/playlist.m3u8", "0.ts"); got != "https://h/a/0.ts" {
		t.Fatalf("resolve = %s", got)
	}
	if got := ResolveURL("https://h/a/playlist.m3u8", "https://other/0.ts"); got != "https://other/0.ts" {
		t.Fatalf("absolute ref changed: %s", got)
	}
}
