package pokeapi

// NamedResource is a name plus the URL of its full representation.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListResponse is one page of GET /pokemon.
type ListResponse struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []NamedResource `json:"results"`
}

// Detail is the subset of GET /pokemon/{name} the proxy uses.
type Detail struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Height         int       `json:"height"`
	Weight         int       `json:"weight"`
	BaseExperience int       `json:"base_experience"`
	Sprites        Sprites   `json:"sprites"`
	Stats          []Stat    `json:"stats"`
	Types          []Type    `json:"types"`
	Abilities      []Ability `json:"abilities"`
}

type Sprites struct {
	FrontDefault *string       `json:"front_default"`
	FrontShiny   *string       `json:"front_shiny"`
	BackDefault  *string       `json:"back_default"`
	BackShiny    *string       `json:"back_shiny"`
	Other        *OtherSprites `json:"other,omitempty"`
}

type OtherSprites struct {
	OfficialArtwork *Artwork `json:"official-artwork,omitempty"`
}

type Artwork struct {
	FrontDefault *string `json:"front_default"`
}

type Stat struct {
	BaseStat int           `json:"base_stat"`
	Effort   int           `json:"effort"`
	Stat     NamedResource `json:"stat"`
}

type Type struct {
	Slot int           `json:"slot"`
	Type NamedResource `json:"type"`
}

type Ability struct {
	Ability  NamedResource `json:"ability"`
	IsHidden bool          `json:"is_hidden"`
	Slot     int           `json:"slot"`
}
