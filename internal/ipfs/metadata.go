package ipfs

// ExternalURL is the fixed external link embedded in every metadata
// document.
const ExternalURL = "https://vanta.app"

// Attribute is one display trait on a metadata document.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the token metadata document uploaded alongside the
// artifact.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	ExternalURL string      `json:"external_url"`
	Attributes  []Attribute `json:"attributes"`
}

// NewMetadata builds a metadata document for an uploaded artifact.
func NewMetadata(name, description, imageURI string, attributes []Attribute) Metadata {
	if attributes == nil {
		attributes = []Attribute{}
	}
	return Metadata{
		Name:        name,
		Description: description,
		Image:       imageURI,
		ExternalURL: ExternalURL,
		Attributes:  attributes,
	}
}
