package ingest

// Payload is the wire shape of one message as delivered by the backend.
// Field names follow the backend's camelCase JSON.
type Payload struct {
	MessageID     string                `json:"messageId" validate:"required,max=256"`
	CampaignID    string                `json:"campaignId" validate:"max=256"`
	ExpiresAt     *int64                `json:"expiresAt,omitempty" validate:"omitempty,gt=0"`
	Trigger       map[string]any        `json:"trigger,omitempty"`
	Content       *ContentPayload       `json:"content" validate:"required"`
	CustomPayload map[string]any        `json:"customPayload,omitempty"`
	SaveToInbox   bool                  `json:"saveToInbox,omitempty"`
	InboxMetadata *InboxMetadataPayload `json:"inboxMetadata,omitempty"`
	Read          bool                  `json:"read,omitempty"`
	Priority      float64               `json:"priorityLevel,omitempty" validate:"gte=0"`
}

// ContentPayload carries the union of every content variant's fields. Type
// selects which ones are used; a missing type means html.
type ContentPayload struct {
	Type string `json:"type,omitempty"`

	// html
	HTML            string                  `json:"html,omitempty"`
	DisplaySettings *DisplaySettingsPayload `json:"inAppDisplaySettings,omitempty"`

	// alert and banner
	Title     string          `json:"title,omitempty" validate:"max=512"`
	Body      string          `json:"body,omitempty"`
	Buttons   []ButtonPayload `json:"buttons,omitempty" validate:"omitempty,max=4,dive"`
	Text      string          `json:"text,omitempty" validate:"max=512"`
	Icon      string          `json:"icon,omitempty"`
	Position  string          `json:"position,omitempty" validate:"omitempty,oneof=top bottom"`
	ActionURL string          `json:"actionUrl,omitempty"`
}

// DisplaySettingsPayload holds the html chrome: edge insets and background.
type DisplaySettingsPayload struct {
	Top     *PaddingPayload    `json:"top,omitempty"`
	Left    *PaddingPayload    `json:"left,omitempty"`
	Bottom  *PaddingPayload    `json:"bottom,omitempty"`
	Right   *PaddingPayload    `json:"right,omitempty"`
	BgColor *BackgroundPayload `json:"bgColor,omitempty"`
}

// PaddingPayload is one edge. DisplayOption "AutoExpand" sizes the edge to
// the content and wins over Percentage.
type PaddingPayload struct {
	Percentage    *int   `json:"percentage,omitempty" validate:"omitempty,inset_percentage"`
	DisplayOption string `json:"displayOption,omitempty"`
}

// BackgroundPayload is the overlay background. Alpha is clamped on decode.
type BackgroundPayload struct {
	Alpha *float64 `json:"alpha,omitempty"`
}

// ButtonPayload is one alert button.
type ButtonPayload struct {
	Title  string `json:"title" validate:"required"`
	Action string `json:"action,omitempty"`
}

// InboxMetadataPayload holds the inbox list-row strings.
type InboxMetadataPayload struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Icon     string `json:"icon,omitempty"`
}
