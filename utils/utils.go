package utils

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nijaru/yt-summary/summary"
	"github.com/sirupsen/logrus"
)

func HandleError(w http.ResponseWriter, message string, statusCode int) {
	RespondWithJSON(w, statusCode, map[string]string{"error": message})
}

func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
	}
}

// FormatSummary renders an envelope as plain text for terminals.
func FormatSummary(env summary.ResultEnvelope) string {
	if !env.IsSuccess() || env.Summary == nil {
		return env.Message
	}

	var b strings.Builder
	b.WriteString("Main Topic\n")
	b.WriteString(env.Summary.MainTopic)
	b.WriteString("\n")

	writeList(&b, "Key Points", env.Summary.KeyPoints)
	writeList(&b, "Important Details", env.Summary.ImportantDetails)
	writeList(&b, "Takeaways", env.Summary.Takeaways)
	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	b.WriteString("\n")
	b.WriteString(heading)
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("• ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}
