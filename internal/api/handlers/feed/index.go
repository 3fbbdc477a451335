package feed

import (
	"html/template"
	"log"
	"net/http"
	"strings"

	"Astrofeed/internal/config"
	"Astrofeed/internal/core/feeds"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Astrofeed</title>
</head>
<body>
  <h1>Astrofeed</h1>
  <p>Curated astronomy feeds for Bluesky, served by {{.ServiceDID}}.</p>
  <table border="1" cellpadding="4">
    <tr><th>Feed</th><th>Rules</th></tr>
    {{range .Feeds}}
    <tr><td>{{.Name}}</td><td>{{.Rules}}</td></tr>
    {{end}}
  </table>
</body>
</html>
`))

type indexFeed struct {
	Name  string
	Rules string
}

type indexData struct {
	ServiceDID string
	Feeds      []indexFeed
}

// IndexHandler serves the human-readable feed listing at /.
type IndexHandler struct {
	cfg *config.Config
}

// NewIndexHandler creates the index page handler.
func NewIndexHandler(cfg *config.Config) *IndexHandler {
	return &IndexHandler{cfg: cfg}
}

// HandleIndex renders the configured feeds with their rules.
func (h *IndexHandler) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	data := indexData{ServiceDID: h.cfg.ServiceDID}
	for _, f := range feeds.All {
		data.Feeds = append(data.Feeds, indexFeed{Name: f.Name, Rules: describeRules(f)})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Printf("Failed to render index page: %v", err)
	}
}

func describeRules(f feeds.Feed) string {
	if f.MatchAll {
		return "every post from a signed-up author"
	}

	var parts []string
	if len(f.Emoji) > 0 {
		parts = append(parts, "emoji: "+strings.Join(f.Emoji, " "))
	}
	if len(f.Words) > 0 {
		parts = append(parts, "words: "+strings.Join(f.Words, ", "))
	}
	return strings.Join(parts, " | ")
}
