package msgsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inappkit/internal/types"
)

func TestMirrorToInbox(t *testing.T) {
	meta := &types.InboxMetadata{Title: "Deal", Subtitle: "Today only", Icon: "deal.png"}

	saved := types.InAppMessage{
		MessageCore: types.MessageCore{
			MessageID:     "html",
			Content:       types.NewHTMLContent("<p>deal</p>", types.Insets{}, 0.3),
			CustomPayload: map[string]any{"k": "v"},
		},
		InboxMetadata: meta,
		State:         types.MessageState{Read: true, Processed: true},
	}
	alert := types.InAppMessage{
		MessageCore:   types.MessageCore{MessageID: "alert", Content: types.NewAlertContent("a", "b")},
		InboxMetadata: &types.InboxMetadata{},
	}
	transient := types.InAppMessage{
		MessageCore: types.MessageCore{MessageID: "transient", Content: types.NewHTMLContent("<p/>", types.Insets{}, 0)},
	}

	out := MirrorToInbox([]types.InAppMessage{saved, transient, alert})
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, "html", first.MessageID)
	require.Equal(t, types.ContentInboxHTML, first.Content.Kind)
	assert.Equal(t, "Deal", first.Content.Inbox.Title)
	assert.Equal(t, "Today only", first.Content.Inbox.Subtitle)
	assert.Equal(t, "deal.png", first.Content.Inbox.Icon)
	assert.Equal(t, "<p>deal</p>", first.Content.Inbox.HTML)
	assert.Equal(t, 0.3, first.Content.Inbox.BackgroundAlpha)
	assert.Equal(t, types.MessageState{Read: true}, first.State, "only the read flag carries over")

	first.CustomPayload["k"] = "changed"
	assert.Equal(t, "v", saved.CustomPayload["k"], "mirror shares no maps with the source")

	assert.Equal(t, "alert", out[1].MessageID)
	assert.Equal(t, types.ContentAlert, out[1].Content.Kind)
}
