package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const watchBaseURL = "https://www.youtube.com"

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`^([A-Za-z0-9_-]{11})$`),
}

// ExtractVideoID pulls the 11-character video id out of the common
// YouTube URL shapes; a bare id is accepted as-is.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("could not extract a video id from %q", raw)
}

// Client fetches video transcripts through YouTube's public caption
// endpoints: the watch page lists caption tracks, each track serves
// timed text as XML.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: watchBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// captionTracks is embedded as a JSON array in the watch page markup.
var captionTracksRegex = regexp.MustCompile(`"captionTracks":(\[.+?\])`)

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
}

type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// FetchTranscript returns the full transcript for a video as one text,
// preferring an English caption track. Minute markers like [3:00] are
// inserted near minute boundaries so long transcripts keep temporal
// context after chunking.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	trackURL, err := c.captionTrackURL(ctx, videoID)
	if err != nil {
		return "", err
	}

	body, err := c.get(ctx, trackURL)
	if err != nil {
		return "", fmt.Errorf("fetch caption track: %w", err)
	}

	var transcript timedText
	if err := xml.Unmarshal(body, &transcript); err != nil {
		return "", fmt.Errorf("decode caption track: %w", err)
	}
	if len(transcript.Texts) == 0 {
		return "", fmt.Errorf("no transcript available for this video")
	}

	var b strings.Builder
	for _, segment := range transcript.Texts {
		text := strings.TrimSpace(html.UnescapeString(segment.Body))
		if text == "" {
			continue
		}
		minutes := int(segment.Start) / 60
		if minutes > 0 && segment.Start-float64(minutes*60) < 5 {
			fmt.Fprintf(&b, "\n[%d:00] ", minutes)
		}
		b.WriteString(text)
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String()), nil
}

func (c *Client) captionTrackURL(ctx context.Context, videoID string) (string, error) {
	page, err := c.get(ctx, c.baseURL+"/watch?v="+videoID)
	if err != nil {
		return "", fmt.Errorf("fetch watch page: %w", err)
	}

	m := captionTracksRegex.FindSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("no transcript available for this video")
	}

	var tracks []captionTrack
	if err := json.Unmarshal(m[1], &tracks); err != nil {
		return "", fmt.Errorf("decode caption tracks: %w", err)
	}
	if len(tracks) == 0 {
		return "", fmt.Errorf("no transcript available for this video")
	}

	track := tracks[0]
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") {
			track = t
			break
		}
	}

	if strings.HasPrefix(track.BaseURL, "/") {
		return c.baseURL + track.BaseURL, nil
	}
	return track.BaseURL, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}
