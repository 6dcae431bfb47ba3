package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AttachmentType discriminates the Attachment variants.
type AttachmentType string

// Attachment variants.
const (
	AttachmentImage    AttachmentType = "image"
	AttachmentVideo    AttachmentType = "video"
	AttachmentAudio    AttachmentType = "audio"
	AttachmentDocument AttachmentType = "document"
)

// IsValid returns true if the attachment type is recognised.
func (t AttachmentType) IsValid() bool {
	switch t {
	case AttachmentImage, AttachmentVideo, AttachmentAudio, AttachmentDocument:
		return true
	default:
		return false
	}
}

// Attachment is a media item linked to a document.
// It is a closed set: only the variants in this package implement it.
type Attachment interface {
	// Type returns the variant discriminator.
	Type() AttachmentType

	// Validate reports missing required fields.
	Validate() error

	attachment()
}

// ImageAttachment is a still image.
type ImageAttachment struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// VideoAttachment is a video clip.
type VideoAttachment struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	ThumbnailURL    string  `json:"thumbnailUrl,omitempty"`
}

// AudioAttachment is an audio clip with an optional transcript.
type AudioAttachment struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	Transcript      string  `json:"transcript,omitempty"`
}

// DocumentAttachment is a file such as a PDF or spreadsheet.
type DocumentAttachment struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	MIMEType string `json:"mimeType,omitempty"`
}

// Type implements Attachment.
func (ImageAttachment) Type() AttachmentType {
	return AttachmentImage
}

// Type implements Attachment.
func (VideoAttachment) Type() AttachmentType {
	return AttachmentVideo
}

// Type implements Attachment.
func (AudioAttachment) Type() AttachmentType {
	return AttachmentAudio
}

// Type implements Attachment.
func (DocumentAttachment) Type() AttachmentType {
	return AttachmentDocument
}

func (ImageAttachment) attachment() {}

func (VideoAttachment) attachment() {}

func (AudioAttachment) attachment() {}

func (DocumentAttachment) attachment() {}

var errAttachmentURL = errors.New("url is required")

// Validate implements Attachment.
func (a ImageAttachment) Validate() error {
	if a.URL == "" {
		return fmt.Errorf("%w: image: %w", ErrInvalidInput, errAttachmentURL)
	}
	if a.Width < 0 || a.Height < 0 {
		return fmt.Errorf("%w: image: negative dimensions", ErrInvalidInput)
	}
	return nil
}

// Validate implements Attachment.
func (a VideoAttachment) Validate() error {
	if a.URL == "" {
		return fmt.Errorf("%w: video: %w", ErrInvalidInput, errAttachmentURL)
	}
	if a.DurationSeconds < 0 {
		return fmt.Errorf("%w: video: negative duration", ErrInvalidInput)
	}
	return nil
}

// Validate implements Attachment.
func (a AudioAttachment) Validate() error {
	if a.URL == "" {
		return fmt.Errorf("%w: audio: %w", ErrInvalidInput, errAttachmentURL)
	}
	if a.DurationSeconds < 0 {
		return fmt.Errorf("%w: audio: negative duration", ErrInvalidInput)
	}
	return nil
}

// Validate implements Attachment.
func (a DocumentAttachment) Validate() error {
	if a.URL == "" {
		return fmt.Errorf("%w: document: %w", ErrInvalidInput, errAttachmentURL)
	}
	if a.FileName == "" {
		return fmt.Errorf("%w: document: file name is required", ErrInvalidInput)
	}
	return nil
}

// attachmentEnvelope is the wire form of an Attachment.
type attachmentEnvelope struct {
	Type AttachmentType  `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalAttachments encodes attachments as a JSON array of type/data envelopes.
// A nil or empty slice encodes as "[]".
func MarshalAttachments(items []Attachment) ([]byte, error) {
	envelopes := make([]attachmentEnvelope, 0, len(items))
	for _, a := range items {
		if a == nil {
			continue
		}
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal %s attachment: %w", a.Type(), err)
		}
		envelopes = append(envelopes, attachmentEnvelope{Type: a.Type(), Data: data})
	}
	return json.Marshal(envelopes)
}

// UnmarshalAttachments decodes the output of MarshalAttachments.
// Empty input yields no attachments. Unknown types are an error.
func UnmarshalAttachments(data []byte) ([]Attachment, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var envelopes []attachmentEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}

	items := make([]Attachment, 0, len(envelopes))
	for i, env := range envelopes {
		a, err := decodeAttachment(env)
		if err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i, err)
		}
		items = append(items, a)
	}
	return items, nil
}

func decodeAttachment(env attachmentEnvelope) (Attachment, error) {
	var (
		a   Attachment
		err error
	)
	switch env.Type {
	case AttachmentImage:
		var v ImageAttachment
		err = json.Unmarshal(env.Data, &v)
		a = v
	case AttachmentVideo:
		var v VideoAttachment
		err = json.Unmarshal(env.Data, &v)
		a = v
	case AttachmentAudio:
		var v AudioAttachment
		err = json.Unmarshal(env.Data, &v)
		a = v
	case AttachmentDocument:
		var v DocumentAttachment
		err = json.Unmarshal(env.Data, &v)
		a = v
	default:
		return nil, fmt.Errorf("%w: attachment type %q", ErrUnsupportedType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s attachment: %w", env.Type, err)
	}
	return a, nil
}

// ValidateAttachments returns the joined validation errors of all items.
func ValidateAttachments(items []Attachment) error {
	var errs []error
	for i, a := range items {
		if a == nil {
			errs = append(errs, fmt.Errorf("%w: attachment %d is nil", ErrInvalidInput, i))
			continue
		}
		if err := a.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("attachment %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
