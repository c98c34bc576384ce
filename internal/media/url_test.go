package media

import "testing"

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url    string
		wantID string
		wantOK bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/jNQXAC9IVRw", "jNQXAC9IVRw", true},
		{"https://www.youtube.com/shorts/jNQXAC9IVRw", "jNQXAC9IVRw", true},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://example.com/video.mp4", "", false},
		{"not a url", "", false},
		{"", "", false},
	}

	for _, c := range cases {
		id, err := ExtractVideoID(c.url)
		if c.wantOK && (err != nil || id != c.wantID) {
			t.Errorf("ExtractVideoID(%q) = %q, %v; want %q", c.url, id, err, c.wantID)
		}
		if !c.wantOK && err == nil {
			t.Errorf("ExtractVideoID(%q) succeeded, want error", c.url)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{
			"https://www.youtube.com/watch?v=abc12345&list=PLx&index=3",
			"https://www.youtube.com/watch?v=abc12345",
		},
		{
			"https://www.youtube.com/watch?v=abc12345&start_radio=1",
			"https://www.youtube.com/watch?v=abc12345",
		},
		{
			"https://m.youtube.com/watch?v=abc12345",
			"https://www.youtube.com/watch?v=abc12345",
		},
		{
			"https://www.youtube.com/watch?v=abc12345",
			"https://www.youtube.com/watch?v=abc12345",
		},
	}

	for _, c := range cases {
		if got := NormalizeURL(c.in); got != c.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
