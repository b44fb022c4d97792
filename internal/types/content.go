package types

// ContentKind tags the variant carried by a Content value.
type ContentKind string

const (
	ContentHTML      ContentKind = "html"
	ContentAlert     ContentKind = "alert"
	ContentBanner    ContentKind = "banner"
	ContentInboxHTML ContentKind = "inboxHtml"
)

// IsKnown reports whether the kind is one this module has a variant for.
// Unknown kinds are still carried through so that newer payloads survive a
// round trip; they simply have no renderer.
func (k ContentKind) IsKnown() bool {
	switch k {
	case ContentHTML, ContentAlert, ContentBanner, ContentInboxHTML:
		return true
	default:
		return false
	}
}

// Content describes what to render for a message. It is a tagged union: Kind
// selects which of the variant pointers is populated and the rest are nil.
// Use the New*Content constructors so the tag and variant always agree.
//
// Content values are treated as immutable once a message is built.
type Content struct {
	Kind ContentKind `json:"type"`

	HTML   *HTMLContent   `json:"html,omitempty"`
	Inbox  *InboxHTML     `json:"inbox_html,omitempty"`
	Alert  *AlertContent  `json:"alert,omitempty"`
	Banner *BannerContent `json:"banner,omitempty"`
}

// Padding is one edge inset of an HTML message. Auto lets the rendering
// surface size that edge to the content; otherwise Percentage (0-100) of the
// screen is used.
type Padding struct {
	Percentage int  `json:"percentage"`
	Auto       bool `json:"auto,omitempty"`
}

// Insets are the per-edge paddings of an HTML in-app message.
type Insets struct {
	Top    Padding `json:"top"`
	Left   Padding `json:"left"`
	Bottom Padding `json:"bottom"`
	Right  Padding `json:"right"`
}

// HTMLContent is the payload of an html message plus its display chrome.
type HTMLContent struct {
	Insets          Insets  `json:"insets"`
	BackgroundAlpha float64 `json:"background_alpha"`
	HTML            string  `json:"html"`
}

// InboxHTML is an html message as shown in the inbox list. The list-row
// fields are optional.
type InboxHTML struct {
	HTMLContent
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Icon     string `json:"icon,omitempty"`
}

// ActionButton is one button on an alert.
type ActionButton struct {
	Title  string `json:"title"`
	Action string `json:"action"`
}

// AlertContent is a native alert dialog.
type AlertContent struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Buttons []ActionButton `json:"buttons,omitempty"`
}

// BannerPosition is where a banner is anchored on screen.
type BannerPosition string

const (
	BannerTop    BannerPosition = "top"
	BannerBottom BannerPosition = "bottom"
)

// BannerContent is a compact, non-modal banner.
type BannerContent struct {
	Text      string         `json:"text"`
	Icon      string         `json:"icon,omitempty"`
	Position  BannerPosition `json:"position"`
	ActionURL string         `json:"action_url,omitempty"`
}

// clampAlpha keeps a background alpha within [0, 1].
func clampAlpha(a float64) float64 {
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}

// NewHTMLContent builds html content. The background alpha is clamped to [0, 1].
func NewHTMLContent(html string, insets Insets, backgroundAlpha float64) Content {
	return Content{
		Kind: ContentHTML,
		HTML: &HTMLContent{
			Insets:          insets,
			BackgroundAlpha: clampAlpha(backgroundAlpha),
			HTML:            html,
		},
	}
}

// NewInboxHTMLContent builds inbox html content from html content and list
// metadata. A nil meta leaves the list-row fields empty.
func NewInboxHTMLContent(html HTMLContent, meta *InboxMetadata) Content {
	html.BackgroundAlpha = clampAlpha(html.BackgroundAlpha)
	inbox := &InboxHTML{HTMLContent: html}
	if meta != nil {
		inbox.Title = meta.Title
		inbox.Subtitle = meta.Subtitle
		inbox.Icon = meta.Icon
	}
	return Content{Kind: ContentInboxHTML, Inbox: inbox}
}

// NewAlertContent builds alert content.
func NewAlertContent(title, body string, buttons ...ActionButton) Content {
	return Content{
		Kind:  ContentAlert,
		Alert: &AlertContent{Title: title, Body: body, Buttons: buttons},
	}
}

// NewBannerContent builds banner content. An empty position defaults to top.
func NewBannerContent(text, icon string, position BannerPosition, actionURL string) Content {
	if position == "" {
		position = BannerTop
	}
	return Content{
		Kind: ContentBanner,
		Banner: &BannerContent{
			Text:      text,
			Icon:      icon,
			Position:  position,
			ActionURL: actionURL,
		},
	}
}

// NewUnknownContent carries a content kind this module has no variant for.
func NewUnknownContent(kind ContentKind) Content {
	return Content{Kind: kind}
}

// HTMLBody returns the html variant fields for html and inboxHtml content.
func (c Content) HTMLBody() (HTMLContent, bool) {
	switch c.Kind {
	case ContentHTML:
		if c.HTML != nil {
			return *c.HTML, true
		}
	case ContentInboxHTML:
		if c.Inbox != nil {
			return c.Inbox.HTMLContent, true
		}
	}
	return HTMLContent{}, false
}
