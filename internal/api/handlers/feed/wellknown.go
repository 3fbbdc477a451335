package feed

import (
	"net/http"
	"strings"

	"Astrofeed/internal/config"
)

// WellKnownHandler serves the did:web document for the service identity.
type WellKnownHandler struct {
	cfg *config.Config
}

// NewWellKnownHandler creates the /.well-known/did.json handler.
func NewWellKnownHandler(cfg *config.Config) *WellKnownHandler {
	return &WellKnownHandler{cfg: cfg}
}

// HandleDIDDoc serves the DID document. It is only valid when the service
// identity actually resolves to this host; otherwise the document would
// assert an identity we cannot back, so 404.
func (h *WellKnownHandler) HandleDIDDoc(w http.ResponseWriter, _ *http.Request) {
	if !strings.HasSuffix(h.cfg.ServiceDID, h.cfg.Hostname) {
		writeError(w, http.StatusNotFound, "NotFound", "DID document not available on this host")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       h.cfg.ServiceDID,
		"service": []map[string]string{
			{
				"id":              "#bsky_fg",
				"type":            "BskyFeedGenerator",
				"serviceEndpoint": "https://" + h.cfg.Hostname,
			},
		},
	})
}
