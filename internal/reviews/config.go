package reviews

// Config is either Configured with upstream credentials or Unconfigured.
// An unconfigured source is a normal state that yields an empty summary.
type Config interface {
	isConfig()
}

type Configured struct {
	BaseURL string
	APIKey  string
	PlaceID string
}

type Unconfigured struct{}

func (Configured) isConfig()   {}
func (Unconfigured) isConfig() {}

// NewConfig returns Configured only when both credentials are present.
func NewConfig(baseURL, apiKey, placeID string) Config {
	if apiKey == "" || placeID == "" {
		return Unconfigured{}
	}
	return Configured{BaseURL: baseURL, APIKey: apiKey, PlaceID: placeID}
}
