package types

import (
	"net/url"
	"strings"
)

// ActionType categorizes a user interaction inside displayed content.
type ActionType string

const (
	ActionOpenURL ActionType = "openUrl"
	ActionCustom  ActionType = "custom"
	ActionDismiss ActionType = "dismiss"
)

// ActionResult is delivered to action handlers and show callbacks after the
// user taps a link or button.
type ActionResult struct {
	Type ActionType `json:"action_type"`
	Data string     `json:"data"`
}

const (
	customActionScheme = "action"
	dismissHost        = "dismiss"
)

// DefaultDismissSchemes are used when a parser is built without any.
var DefaultDismissSchemes = []string{"app"}

// ActionURLParser maps clicked links to ActionResults. Links of the form
// <scheme>://dismiss close the message for each configured dismiss scheme.
type ActionURLParser struct {
	dismissSchemes map[string]bool
}

// NewActionURLParser creates a parser recognizing the given dismiss schemes,
// case-insensitively. With none, DefaultDismissSchemes apply.
func NewActionURLParser(dismissSchemes ...string) *ActionURLParser {
	set := make(map[string]bool, len(dismissSchemes))
	for _, scheme := range dismissSchemes {
		if scheme = strings.ToLower(strings.TrimSpace(scheme)); scheme != "" && scheme != customActionScheme {
			set[scheme] = true
		}
	}
	if len(set) == 0 {
		for _, scheme := range DefaultDismissSchemes {
			set[scheme] = true
		}
	}
	return &ActionURLParser{dismissSchemes: set}
}

var defaultActionURLParser = NewActionURLParser()

// ParseActionURL parses raw with the default dismiss schemes.
func ParseActionURL(raw string) ActionResult {
	return defaultActionURLParser.Parse(raw)
}

// Parse maps a clicked link to an ActionResult:
//
//	action://name       -> custom, data "name"
//	<scheme>://dismiss  -> dismiss, for a configured dismiss scheme
//	anything else       -> openUrl, data is the link itself
func (p *ActionURLParser) Parse(raw string) ActionResult {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" {
		return ActionResult{Type: ActionOpenURL, Data: trimmed}
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == customActionScheme:
		name := u.Host
		if name == "" {
			name = strings.TrimPrefix(u.Opaque, "//")
		}
		if path := strings.Trim(u.Path, "/"); path != "" {
			name = name + "/" + path
		}
		return ActionResult{Type: ActionCustom, Data: name}
	case p.dismissSchemes[scheme] && strings.EqualFold(u.Host, dismissHost):
		return ActionResult{Type: ActionDismiss}
	default:
		return ActionResult{Type: ActionOpenURL, Data: trimmed}
	}
}
