package message

import (
	"encoding/json"
	"mime"
	"net/url"
	"path"
)

// Kind identifies an outbound message type
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindLocation Kind = "location"
	KindButtons  Kind = "buttons"
	KindList     Kind = "list"
)

// MediaRef points to externally hosted media by URL
type MediaRef struct {
	URL string `json:"url"`
}

// Text is a plain text message payload
type Text struct {
	Text string `json:"text"`
}

// Image is an image payload with an optional caption
type Image struct {
	Image   MediaRef `json:"image"`
	Caption string   `json:"caption,omitempty"`
}

// Document is a file attachment payload. Mimetype is derived from the URL
// extension and omitted when it cannot be resolved; the caption doubles as
// the displayed file name.
type Document struct {
	Document MediaRef `json:"document"`
	Mimetype string   `json:"mimetype,omitempty"`
	FileName string   `json:"fileName,omitempty"`
}

// Audio is a voice-note payload, always flagged as push-to-talk
type Audio struct {
	Audio MediaRef `json:"audio"`
	PTT   bool     `json:"ptt"`
}

// Video is a video payload, delivered with looping playback
type Video struct {
	Video       MediaRef `json:"video"`
	Caption     string   `json:"caption,omitempty"`
	GifPlayback bool     `json:"gifPlayback"`
}

// Coordinates carries a geographic point in the transport's wire naming
type Coordinates struct {
	DegreesLatitude  float64 `json:"degreesLatitude"`
	DegreesLongitude float64 `json:"degreesLongitude"`
}

// Location is a map-pin payload
type Location struct {
	Location Coordinates `json:"location"`
}

// Buttons is an interactive button-set payload. Button specs arrive from the
// caller as opaque JSON and are passed through untouched.
type Buttons struct {
	Text       string          `json:"text"`
	Footer     string          `json:"footer"`
	Buttons    json.RawMessage `json:"buttons"`
	HeaderType int             `json:"headerType"`
}

// List is an interactive list payload, sections passed through as opaque JSON
type List struct {
	Text       string          `json:"text"`
	Footer     string          `json:"footer"`
	Title      string          `json:"title"`
	ButtonText string          `json:"buttonText"`
	Sections   json.RawMessage `json:"sections"`
}

// NewText builds a text payload
func NewText(text string) Text {
	return Text{Text: text}
}

// NewImage builds an image payload
func NewImage(url, caption string) Image {
	return Image{Image: MediaRef{URL: url}, Caption: caption}
}

// NewDocument builds a document payload, resolving the mimetype from the URL
func NewDocument(url, fileName string) Document {
	return Document{
		Document: MediaRef{URL: url},
		Mimetype: TypeByURL(url),
		FileName: fileName,
	}
}

// NewAudio builds a push-to-talk audio payload
func NewAudio(url string) Audio {
	return Audio{Audio: MediaRef{URL: url}, PTT: true}
}

// NewVideo builds a video payload
func NewVideo(url, caption string) Video {
	return Video{Video: MediaRef{URL: url}, Caption: caption, GifPlayback: true}
}

// NewLocation builds a location payload
func NewLocation(lat, long float64) Location {
	return Location{Location: Coordinates{DegreesLatitude: lat, DegreesLongitude: long}}
}

// NewButtons builds a button-set payload
func NewButtons(text, footer string, buttons json.RawMessage) Buttons {
	return Buttons{Text: text, Footer: footer, Buttons: buttons, HeaderType: 1}
}

// NewList builds a list payload
func NewList(text, title, footer, buttonText string, sections json.RawMessage) List {
	return List{Text: text, Footer: footer, Title: title, ButtonText: buttonText, Sections: sections}
}

// Address appends the transport addressing suffix to a recipient number
func Address(number, suffix string) string {
	return number + suffix
}

// TypeByURL resolves a media type from a URL's file extension. Returns ""
// when the extension is unknown; document sends tolerate a missing mimetype
// rather than failing the request.
func TypeByURL(rawURL string) string {
	ext := path.Ext(rawURL)
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		ext = path.Ext(u.Path)
	}
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}
