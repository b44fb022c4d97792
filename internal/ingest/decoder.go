// Package ingest turns raw backend payloads into validated messages.
//
// Payloads are JSON, optionally zstd-compressed. Decoding never guesses at
// malformed fields: anything that fails validation is reported as a
// *types.AppError with a validation_* code and the sync layer skips it. The
// one lenient field is the trigger, which falls back to immediate.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"inappkit/internal/types"
)

// zstdMagic is the frame header of a zstd stream.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// maxDecompressedSize bounds a single decompressed payload.
const maxDecompressedSize = 4 << 20

// autoExpand is the displayOption value that sizes an edge to its content.
const autoExpand = "AutoExpand"

// defaultBackgroundAlpha applies when a payload carries no bgColor.
const defaultBackgroundAlpha = 0.5

// Decoder converts raw payloads into in-app messages. It is safe for
// concurrent use.
type Decoder struct {
	validator *Validator
	clock     types.Clock

	// decoderPool provides reusable zstd decoders.
	decoderPool sync.Pool
}

// NewDecoder creates a Decoder. ReceivedAt on decoded messages is taken from
// clock.
func NewDecoder(clock types.Clock) *Decoder {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Decoder{
		validator: NewValidator(),
		clock:     clock,
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil,
					zstd.WithDecoderConcurrency(1),
					zstd.WithDecoderMaxMemory(maxDecompressedSize),
				)
				if err != nil {
					// Cannot fail with nil input and these options.
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
	}
}

// Decode parses one message payload.
func (d *Decoder) Decode(data []byte) (types.InAppMessage, error) {
	raw, err := d.decompress(data)
	if err != nil {
		return types.InAppMessage{}, err
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.InAppMessage{}, unmarshalError(err)
	}
	return d.FromPayload(p)
}

// FromPayload validates an already parsed payload and builds the message.
func (d *Decoder) FromPayload(p Payload) (types.InAppMessage, error) {
	if err := d.validator.ValidateStruct(p); err != nil {
		return types.InAppMessage{}, err
	}

	content, err := buildContent(p.Content, p.InboxMetadata)
	if err != nil {
		return types.InAppMessage{}, err
	}

	msg := types.InAppMessage{
		MessageCore: types.MessageCore{
			MessageID:     p.MessageID,
			CampaignID:    p.CampaignID,
			Content:       content,
			CustomPayload: p.CustomPayload,
			ReceivedAt:    d.clock.Now(),
			Priority:      p.Priority,
		},
		Trigger: types.ParseTrigger(p.Trigger),
		State:   types.MessageState{Read: p.Read},
	}
	if p.ExpiresAt != nil {
		t := time.UnixMilli(*p.ExpiresAt).UTC()
		msg.ExpiresAt = &t
	}
	if p.SaveToInbox || p.InboxMetadata != nil {
		meta := types.InboxMetadata{}
		if p.InboxMetadata != nil {
			meta = types.InboxMetadata(*p.InboxMetadata)
		}
		msg.InboxMetadata = &meta
	}
	return msg, nil
}

// decompress returns data unchanged unless it starts with a zstd frame.
func (d *Decoder) decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}

	decoder := d.decoderPool.Get().(*zstd.Decoder)
	defer d.decoderPool.Put(decoder)

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPayload,
			"payload could not be decompressed", fmt.Errorf("zstd decompression failed: %w", err))
	}
	return out, nil
}

// unmarshalError maps a JSON error to an AppError. A non-boolean read flag
// gets its own code.
func unmarshalError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "read" {
			return types.NewAppError(types.ErrCodeValidationInvalidReadFlag, "read must be a boolean", err)
		}
		if typeErr.Field == "expiresAt" {
			return types.NewAppError(types.ErrCodeValidationInvalidExpiry, "expiresAt must be epoch milliseconds", err)
		}
		return types.NewAppError(types.ErrCodeValidationInvalidPayload,
			fmt.Sprintf("%s has the wrong type", typeErr.Field), err)
	}
	return types.NewAppError(types.ErrCodeValidationInvalidPayload, "payload is not valid JSON", err)
}

func buildContent(c *ContentPayload, meta *InboxMetadataPayload) (types.Content, error) {
	kind := types.ContentKind(strings.TrimSpace(c.Type))
	if kind == "" {
		kind = types.ContentHTML
	}

	switch kind {
	case types.ContentHTML, types.ContentInboxHTML:
		if strings.TrimSpace(c.HTML) == "" {
			return types.Content{}, contentError(kind, "html body is empty")
		}
		html := htmlContent(c)
		if kind == types.ContentInboxHTML {
			body, _ := html.HTMLBody()
			row := &types.InboxMetadata{}
			if meta != nil {
				*row = types.InboxMetadata(*meta)
			}
			return types.NewInboxHTMLContent(body, row), nil
		}
		return html, nil
	case types.ContentAlert:
		if c.Title == "" && c.Body == "" {
			return types.Content{}, contentError(kind, "alert needs a title or body")
		}
		buttons := make([]types.ActionButton, 0, len(c.Buttons))
		for _, b := range c.Buttons {
			buttons = append(buttons, types.ActionButton{Title: b.Title, Action: b.Action})
		}
		return types.NewAlertContent(c.Title, c.Body, buttons...), nil
	case types.ContentBanner:
		if strings.TrimSpace(c.Text) == "" {
			return types.Content{}, contentError(kind, "banner text is empty")
		}
		return types.NewBannerContent(c.Text, c.Icon, types.BannerPosition(c.Position), c.ActionURL), nil
	default:
		return types.NewUnknownContent(kind), nil
	}
}

func htmlContent(c *ContentPayload) types.Content {
	var insets types.Insets
	alpha := defaultBackgroundAlpha
	if s := c.DisplaySettings; s != nil {
		insets = types.Insets{
			Top:    padding(s.Top),
			Left:   padding(s.Left),
			Bottom: padding(s.Bottom),
			Right:  padding(s.Right),
		}
		if s.BgColor != nil && s.BgColor.Alpha != nil {
			alpha = *s.BgColor.Alpha
		}
	}
	return types.NewHTMLContent(c.HTML, insets, alpha)
}

func padding(p *PaddingPayload) types.Padding {
	if p == nil {
		return types.Padding{}
	}
	if strings.EqualFold(p.DisplayOption, autoExpand) {
		return types.Padding{Auto: true}
	}
	if p.Percentage != nil {
		return types.Padding{Percentage: *p.Percentage}
	}
	return types.Padding{}
}

func contentError(kind types.ContentKind, msg string) error {
	return types.NewAppError(types.ErrCodeValidationInvalidContent, msg, nil).
		WithDetails(map[string]any{"content_type": string(kind)})
}
