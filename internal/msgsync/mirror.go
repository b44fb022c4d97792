package msgsync

import "inappkit/internal/types"

// MirrorToInbox derives the inbox list from in-app messages that are saved
// to the inbox. html content is converted to inboxHtml carrying the inbox
// metadata; other content kinds are kept as they are. The read flag comes
// from the in-app payload.
func MirrorToInbox(msgs []types.InAppMessage) []types.InboxMessage {
	out := make([]types.InboxMessage, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.SaveToInbox() {
			continue
		}
		c := msg.Clone()
		if c.Content.Kind == types.ContentHTML && c.Content.HTML != nil {
			c.Content = types.NewInboxHTMLContent(*c.Content.HTML, c.InboxMetadata)
		}
		out = append(out, types.InboxMessage{
			MessageCore: c.MessageCore,
			State:       types.MessageState{Read: msg.State.Read},
		})
	}
	return out
}
