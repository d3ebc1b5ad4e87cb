package quiz

// Persona is one predefined result profile. The catalog is immutable after
// package initialization; callers receive copies.
type Persona struct {
	ID          string
	Name        string
	Mindset     string
	CharacterID string
	Explanation string
	Image       string
	ShareImage  string
}

const (
	charactersDir = "/static/characters"
	shareDir      = "/static/sharegraphics"
)

// scoreBand maps an inclusive score range to a persona. Bands are ordered
// low-to-high, non-overlapping, and cover 0..100; the first match wins.
type scoreBand struct {
	min, max  int
	personaID string
}

var defaultPersonas = []Persona{
	{
		ID:          "macbot",
		Name:        "M.A.C.-Bot",
		Mindset:     "skeptic",
		CharacterID: "mac",
		Explanation: "You favour thoughtful, evidence-based approaches to AI adoption, prioritising fundamentals and proven results over trends.",
		Image:       charactersDir + "/AIP_MAC.png",
		ShareImage:  shareDir + "/aip_im_mac.png",
	},
	{
		ID:          "nova",
		Name:        "Nova",
		Mindset:     "observer",
		CharacterID: "nova",
		Explanation: "You combine curiosity about AI's potential with healthy scepticism, preferring observation and analysis before commitment.",
		Image:       charactersDir + "/AIP_Nova.png",
		ShareImage:  shareDir + "/aip_im_nova.png",
	},
	{
		ID:          "groc",
		Name:        "Groc",
		Mindset:     "realist",
		CharacterID: "groc",
		Explanation: "You balance optimism about AI's future with practical implementation concerns, recognising potential while prioritising preparation.",
		Image:       charactersDir + "/AIP_Groc.png",
		ShareImage:  shareDir + "/aip_im_groc.png",
	},
	{
		ID:          "jetpackjim",
		Name:        "Jetpack Jim",
		Mindset:     "enthusiast",
		CharacterID: "jim",
		Explanation: "You are enthusiastic about AI's transformational potential and favour quick adoption for competitive advantage.",
		Image:       charactersDir + "/AIP_Jim.png",
		ShareImage:  shareDir + "/aip_im_jim.png",
	},
	{
		ID:          "vega",
		Name:        "Vega Callisto",
		Mindset:     "optimist",
		CharacterID: "vega",
		Explanation: "You are highly optimistic about AI's revolutionary potential, from R&D through to patient care.",
		Image:       charactersDir + "/AIP_Vega.png",
		ShareImage:  shareDir + "/aip_im_vega.png",
	},
	{
		ID:          "dangerousdan",
		Name:        "Dangerous Dan",
		Mindset:     "progressive",
		CharacterID: "dan",
		Explanation: "You fully embrace AI as revolutionary for pharmaceuticals and readily adopt cutting-edge technologies.",
		Image:       charactersDir + "/AIP_Dan.png",
		ShareImage:  shareDir + "/aip_im_dan.png",
	},
}

var defaultBands = []scoreBand{
	{min: 0, max: 16, personaID: "macbot"},
	{min: 17, max: 33, personaID: "nova"},
	{min: 34, max: 50, personaID: "groc"},
	{min: 51, max: 67, personaID: "jetpackjim"},
	{min: 68, max: 84, personaID: "vega"},
	{min: 85, max: 100, personaID: "dangerousdan"},
}

// Personas returns the catalog in band order.
func Personas() []Persona {
	cp := make([]Persona, len(defaultPersonas))
	copy(cp, defaultPersonas)
	return cp
}

// PersonaByID looks up a catalog entry.
func PersonaByID(id string) (Persona, bool) {
	for _, p := range defaultPersonas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}
