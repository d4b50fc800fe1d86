package database

// Service is a tracked platform.
type Service struct {
	ID          int64
	Name        string
	Slug        string
	Description *string
	Category    *string
	CreatedAt   *string
	UpdatedAt   *string
}

// Event is a stored enshittification event.
type Event struct {
	ID             int64
	ServiceID      int64
	Title          string
	Description    string
	EventDate      string
	Severity       string
	EventType      string
	SourceURL      *string
	Confidence     string
	AgreedBy       []string
	ConsensusScore int
	SourceStatus   *string
	CreatedAt      *string
}

// EventWithService is an event joined with the platform it belongs to.
type EventWithService struct {
	Event
	ServiceName string
	ServiceSlug string
}

// ServiceSummary is a row of the recently researched platforms list.
type ServiceSummary struct {
	Name       string
	Slug       string
	EventCount int
	UpdatedAt  *string
}

// Provider is a stored AI provider. The API key stays encrypted here.
type Provider struct {
	ID              string
	Name            string
	BaseURL         string
	APIKeyEncrypted string
	Model           string
	Enabled         bool
	Priority        int
	MaxTokens       int
	Temperature     float64
	CreatedAt       *string
	UpdatedAt       *string
}

// Lead statuses.
const (
	LeadOpen       = "open"
	LeadResearched = "researched"
	LeadDismissed  = "dismissed"
)

// Lead is a news headline that may warrant researching a platform.
type Lead struct {
	ID            int64
	URL           string
	Title         string
	Source        *string
	Platform      string
	PublishedDate *string
	Status        string
	CollectedAt   *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Services         int
	Events           int
	VerifiedEvents   int
	DisputedEvents   int
	Providers        int
	EnabledProviders int
	OpenLeads        int
	UncheckedSources int
	SchemaVersion    int
}
