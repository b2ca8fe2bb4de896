package core

import (
	"testing"
)

func TestNewScreenshotAttachment(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4E, 0x47} // PNG header
	attachment := NewScreenshotAttachment("screenshots/01_initial_state_10-00-00.png", data)

	if attachment.Name != AttachmentScreenshot {
		t.Errorf("Name = %s, want %s", attachment.Name, AttachmentScreenshot)
	}
	if attachment.ContentType != ContentTypePNG {
		t.Errorf("ContentType = %s, want %s", attachment.ContentType, ContentTypePNG)
	}
	if len(attachment.Body) != 4 {
		t.Errorf("Body length = %d, want 4", len(attachment.Body))
	}
}

func TestNewDOMAttachment(t *testing.T) {
	attachment := NewDOMAttachment("assets/step-003.html", []byte("<div></div>"))

	if attachment.Name != AttachmentDOM {
		t.Errorf("Name = %s, want %s", attachment.Name, AttachmentDOM)
	}
	if attachment.ContentType != ContentTypeHTML {
		t.Errorf("ContentType = %s, want %s", attachment.ContentType, ContentTypeHTML)
	}
}

func TestDefaultArtifactConfig(t *testing.T) {
	cfg := DefaultArtifactConfig()

	if !cfg.CaptureOnFailure {
		t.Error("CaptureOnFailure should be true by default")
	}
	if !cfg.Screenshot {
		t.Error("Screenshot should be true by default")
	}
	if !cfg.DOM {
		t.Error("DOM should be true by default")
	}
}
