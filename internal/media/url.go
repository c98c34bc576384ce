package media

import (
	"fmt"
	"regexp"
	"strings"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/)([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtube\.com/watch\?.*[?&]v=([A-Za-z0-9_-]{6,})`),
}

// ExtractVideoID pulls the video ID out of the supported YouTube URL forms.
// An unrecognized reference is a pre-flight validation failure.
func ExtractVideoID(url string) (string, error) {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("unrecognized video URL: %s", url)
}

// NormalizeURL strips playlist parameters and rewrites mobile hosts so the
// same video always maps to the same task record.
func NormalizeURL(url string) string {
	for _, param := range []string{"&list=", "&index=", "&start_radio=", "&t=", "&pp="} {
		if i := strings.Index(url, param); i >= 0 {
			url = url[:i]
		}
	}
	url = strings.Replace(url, "m.youtube.com", "www.youtube.com", 1)
	return url
}
