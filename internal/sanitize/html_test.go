package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextStripsAllMarkup(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain event name passes through",
			input: "Winter Hackathon 2026",
			want:  "Winter Hackathon 2026",
		},
		{
			name:  "script content is dropped entirely",
			input: "Tech Meetup <script>alert(1)</script>",
			want:  "Tech Meetup ",
		},
		{
			name:  "formatting tags keep their text",
			input: "<b>Pune</b> Convention <i>Centre</i>",
			want:  "Pune Convention Centre",
		},
		{
			name:  "event handlers go with their element",
			input: `<img src=x onerror="alert(1)">Auditorium B`,
			want:  "Auditorium B",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Text(tt.input))
		})
	}
}

func TestHTMLKeepsSafeFormatting(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "description formatting survives",
			input: "<p>Doors open at <b>6pm</b>. Bring <em>your own laptop</em>.</p>",
			want:  "<p>Doors open at <b>6pm</b>. Bring <em>your own laptop</em>.</p>",
		},
		{
			name:  "lists survive",
			input: "<ul><li>Round 1: quiz</li><li>Round 2: build</li></ul>",
			want:  "<ul><li>Round 1: quiz</li><li>Round 2: build</li></ul>",
		},
		{
			name:  "links get rel=nofollow",
			input: `<a href="https://example.com/agenda">Agenda</a>`,
			want:  `<a href="https://example.com/agenda" rel="nofollow">Agenda</a>`,
		},
		{
			name:  "script tags vanish",
			input: "<p>Schedule<script>steal()</script></p>",
			want:  "<p>Schedule</p>",
		},
		{
			name:  "javascript hrefs are removed",
			input: `<a href="javascript:alert(1)">Register</a>`,
			want:  "Register",
		},
		{
			name:  "style attributes are removed",
			input: `<p style="background:url(javascript:x())">Venue map</p>`,
			want:  "<p>Venue map</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HTML(tt.input))
		})
	}
}

func TestNoPolicyLetsActiveContentThrough(t *testing.T) {
	vectors := []string{
		`<script>alert(1)</script>`,
		`<img src=x onerror=alert(1)>`,
		`<svg onload=alert(1)>`,
		`<iframe src="https://evil.example"></iframe>`,
		`<a href="javascript:alert(1)">x</a>`,
		`<details ontoggle=alert(1)><summary>x</summary></details>`,
		`<object data="javascript:alert(1)">`,
	}

	for _, vector := range vectors {
		for name, clean := range map[string]string{"Text": Text(vector), "HTML": HTML(vector)} {
			require.NotContains(t, clean, "<script", "%s(%q)", name, vector)
			require.NotContains(t, clean, "javascript:", "%s(%q)", name, vector)
			require.False(t, strings.Contains(clean, "onerror=") || strings.Contains(clean, "onload=") || strings.Contains(clean, "ontoggle="),
				"%s(%q) kept an event handler: %q", name, vector, clean)
		}
	}
}

func BenchmarkText(b *testing.B) {
	input := "Concert at <b>The Riverside Amphitheatre</b> <script>x()</script>"
	for i := 0; i < b.N; i++ {
		Text(input)
	}
}

func BenchmarkHTML(b *testing.B) {
	input := strings.Repeat("<p>Doors open at <b>6pm</b>. <a href='https://example.com'>Details</a>.</p>", 10)
	for i := 0; i < b.N; i++ {
		HTML(input)
	}
}
