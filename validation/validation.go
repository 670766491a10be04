package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// videoIDPatterns are tried in order; the first one that matches wins.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?v=([^&\n?]*)`),
	regexp.MustCompile(`youtu\.be/([^&\n?]*)`),
	regexp.MustCompile(`youtube\.com/embed/([^&\n?]*)`),
	regexp.MustCompile(`youtube\.com/shorts/([^&\n?]*)`),
}

// ExtractVideoID returns the video id embedded in a YouTube URL.
func ExtractVideoID(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	for _, re := range videoIDPatterns {
		m := re.FindStringSubmatch(rawURL)
		if m == nil || m[1] == "" {
			continue
		}
		return m[1], true
	}
	return "", false
}

// ValidateURL is a syntactic check only. It never touches the network.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &ValidationError{Message: "URL is required"}
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return errors.WithStack(&ValidationError{Message: "invalid URL format"})
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Message: "URL must start with http or https"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Message: "URL must have a host"}
	}

	return nil
}
