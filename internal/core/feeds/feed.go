package feeds

import "fmt"

// Feed is one curated feed with its classification rules. A feed with no
// rules at all (MatchAll) includes every post from a valid author; it backs
// the aggregate feed. Emoji are matched as substrings of the raw post text,
// words as whole tokens of the normalized text.
type Feed struct {
	// Name is the short feed name. It doubles as the posts table column
	// suffix (feed_<name>), so it must stay lowercase ASCII.
	Name string

	// RKey is the record key of the published app.bsky.feed.generator record.
	RKey string

	// Description is shown on the index page.
	Description string

	MatchAll bool
	Emoji    []string
	Words    []string
}

// Topical reports whether a match on this feed should cascade into the
// general astronomy feed.
func (f Feed) Topical() bool {
	return !f.MatchAll && f.Name != "astro"
}

// All is the list of classifier-driven feeds, in publication order.
var All = []Feed{
	{
		Name:        "all",
		RKey:        "all",
		Description: "Every post from signed-up astronomers",
		MatchAll:    true,
	},
	{
		Name:        "astro",
		RKey:        "astro",
		Description: "Astronomy and astrophysics",
		Emoji:       []string{"🔭", "🌌"},
		Words: []string{
			"astronomy", "#astronomy", "astro", "#astro",
			"astrophysics", "#astrophysics", "astrophysical",
			"telescope", "telescopes", "observatory", "observatories",
			"nebula", "nebulae", "supernova", "supernovae",
			"quasar", "quasars",
		},
	},
	{
		Name:        "astrophotography",
		RKey:        "astrophotography",
		Description: "Astrophotography and imaging",
		Words: []string{
			"astrophotography", "#astrophotography",
			"astrophoto", "#astrophoto", "astroimaging", "#astroimaging",
		},
	},
	{
		Name:        "cosmology",
		RKey:        "cosmology",
		Description: "Cosmology and the large-scale universe",
		Words: []string{
			"cosmology", "#cosmology", "cosmological",
			"redshift", "#bigbang",
		},
	},
	{
		Name:        "exoplanets",
		RKey:        "exoplanets",
		Description: "Exoplanets and planet formation",
		Emoji:       []string{"🪐"},
		Words: []string{
			"exoplanet", "exoplanets", "#exoplanet", "#exoplanets",
			"protoplanetary", "circumstellar",
		},
	},
	{
		Name:        "planetary",
		RKey:        "planetary",
		Description: "Planetary science and the solar system",
		Words: []string{
			"#planetaryscience", "planetology",
			"#marsrover", "#ocworlds", "asteroid", "asteroids",
			"comet", "comets",
		},
	},
	{
		Name:        "radio",
		RKey:        "radio",
		Description: "Radio astronomy",
		Emoji:       []string{"📡"},
		Words: []string{
			"radioastronomy", "#radioastronomy",
			"pulsar", "pulsars", "interferometry", "#seti",
		},
	},
	{
		Name:        "solar",
		RKey:        "solar",
		Description: "Solar physics and heliophysics",
		Emoji:       []string{"🌞"},
		Words: []string{
			"heliophysics", "#heliophysics", "#solarastronomy",
			"sunspot", "sunspots", "#aurora", "coronal",
		},
	},
	{
		Name:        "history",
		RKey:        "history",
		Description: "History of astronomy",
		Words: []string{
			"#astrohistory", "#historyofastronomy",
		},
	},
	{
		Name:        "questions",
		RKey:        "questions",
		Description: "Questions for astronomers",
		Words: []string{
			"#askanastronomer", "#astroquestion", "#astroquestions",
		},
	},
}

// SignupRKey is the record key of the signup feed, which is served from
// bot_actions rather than from classified posts.
const SignupRKey = "signup"

// SignupName is the internal short name the skeleton handler dispatches on.
const SignupName = "signup"

const generatorCollection = "app.bsky.feed.generator"

var byName = func() map[string]Feed {
	m := make(map[string]Feed, len(All))
	for _, f := range All {
		m[f.Name] = f
	}
	return m
}()

// ByName looks up a classifier feed by its short name.
func ByName(name string) (Feed, bool) {
	f, ok := byName[name]
	return f, ok
}

// URI returns the at:// URI of a feed generator record published under the
// given DID.
func URI(publisherDID, rkey string) string {
	return fmt.Sprintf("at://%s/%s/%s", publisherDID, generatorCollection, rkey)
}

// PublishedURIs returns the full list of feed URIs this service answers for,
// in a stable order. The signup feed is last.
func PublishedURIs(publisherDID string) []string {
	uris := make([]string, 0, len(All)+1)
	for _, f := range All {
		uris = append(uris, URI(publisherDID, f.RKey))
	}
	uris = append(uris, URI(publisherDID, SignupRKey))
	return uris
}

// ResolveURI maps a requested feed URI back to an internal short name.
// The second return is false for URIs this service does not serve.
func ResolveURI(publisherDID, uri string) (string, bool) {
	for _, f := range All {
		if uri == URI(publisherDID, f.RKey) {
			return f.Name, true
		}
	}
	if uri == URI(publisherDID, SignupRKey) {
		return SignupName, true
	}
	return "", false
}
