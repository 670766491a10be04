package transcription

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoCaptions      = errors.New("no captions available for this video")
	ErrEmptyTranscript = errors.New("transcript is empty")
)

const (
	defaultBaseURL   = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	playerResponseMarker = "ytInitialPlayerResponse = "
	maxWatchPageBytes    = 6 << 20
	maxCaptionBytes      = 2 << 20
)

// Source fetches the full transcript of a video as one text blob.
type Source interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// YouTubeSource reads caption tracks referenced by the watch page.
type YouTubeSource struct {
	BaseURL   string
	Languages []string
	client    *http.Client
}

func NewYouTubeSource(client *http.Client, languages []string) *YouTubeSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &YouTubeSource{
		BaseURL:   defaultBaseURL,
		Languages: languages,
		client:    client,
	}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type playerResponse struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

func (s *YouTubeSource) Fetch(ctx context.Context, videoID string) (string, error) {
	log := logrus.WithField("video_id", videoID)

	tracks, err := s.captionTracks(ctx, videoID)
	if err != nil {
		return "", err
	}

	track, ok := pickBestTrack(tracks, s.Languages)
	if !ok {
		return "", errors.Wrap(ErrNoCaptions, "all caption tracks require a PoToken")
	}
	log.WithFields(logrus.Fields{
		"language": track.LanguageCode,
		"kind":     track.Kind,
		"tracks":   len(tracks),
	}).Debug("Selected caption track")

	text, err := s.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyTranscript
	}

	log.WithField("chars", len(text)).Info("Transcript fetched")
	return text, nil
}

func (s *YouTubeSource) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	watchURL := strings.TrimRight(s.BaseURL, "/") + "/watch?v=" + url.QueryEscape(videoID)

	body, err := s.get(ctx, watchURL, maxWatchPageBytes)
	if err != nil {
		return nil, errors.Wrap(err, "watch page")
	}

	idx := strings.Index(string(body), playerResponseMarker)
	if idx < 0 {
		return nil, errors.New("player response not found in watch page")
	}
	raw := extractJSON(body[idx+len(playerResponseMarker):])
	if raw == nil {
		return nil, errors.New("failed to extract player response")
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, errors.Wrap(err, "decode player response")
	}

	if player.Captions == nil || len(player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			return nil, errors.Wrap(ErrNoCaptions, player.PlayabilityStatus.Reason)
		}
		return nil, ErrNoCaptions
	}
	return player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

func (s *YouTubeSource) fetchTimedText(ctx context.Context, trackURL string) (string, error) {
	body, err := s.get(ctx, trackURL, maxCaptionBytes)
	if err != nil {
		return "", errors.Wrap(err, "caption track")
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", errors.Wrap(err, "parse caption track")
	}

	lines := make([]string, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, " "), nil
}

func (s *YouTubeSource) get(ctx context.Context, target string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// needsPoToken reports whether a track URL only works with a browser PoToken.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack prefers a manual track in a preferred language, then an
// auto-generated one, then any English track, then the first track. Tracks
// that need a PoToken are skipped; ok is false when none is left.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// extractJSON returns the object starting at b[0] by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
