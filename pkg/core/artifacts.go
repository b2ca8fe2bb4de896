// Package core provides the execution model types for todo-runner:
// the Session/Element contract, the error taxonomy and step results.
package core

// Attachment represents a debug artifact captured during step execution
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, dom
	ContentType string `json:"contentType"` // MIME type: image/png, text/html
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentDOM        = "dom"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeHTML = "text/html"
	ContentTypeText = "text/plain"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewDOMAttachment creates a page markup attachment
func NewDOMAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentDOM,
		ContentType: ContentTypeHTML,
		Path:        path,
		Body:        data,
	}
}

// ArtifactConfig controls when and what artifacts are captured
type ArtifactConfig struct {
	// When to capture (named screenshot steps are always captured)
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"` // Default: true

	// What to capture on failure
	Screenshot bool `yaml:"screenshot" json:"screenshot"` // Default: true
	DOM        bool `yaml:"dom" json:"dom"`               // Default: true
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure: true,
		Screenshot:       true,
		DOM:              true,
	}
}
