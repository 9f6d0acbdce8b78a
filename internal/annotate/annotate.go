// Package annotate implements the AI vision collaborators that produce
// tags for one image: Google Gemini and Mistral Pixtral.
//
// Both providers receive the same fixed prompt and return a
// comma-separated list, which is split into individual tags. Provider
// errors carry a transient/fatal classification: authentication failures
// and exhausted quotas stop the whole batch, everything else is retried
// naturally on the next run.
package annotate

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"photo-tagger/internal/logging"
	"photo-tagger/internal/mediatypes"
)

// Prompt is the instruction sent to every provider.
const Prompt = "Analyze this image and identify up to 15 distinct objects, people, animals, food items, " +
	"scenes, activities, or things present in the photo. " +
	"Return ONLY a comma-separated list of these items. " +
	"Examples: dog, beach, baby, cake, sunrise, beer, car, tree, person, building. " +
	"Be specific and concise. Do not include any other text, just the comma-separated list."

// jpegPayloadQuality is the re-encode quality for downscaled payloads.
const jpegPayloadQuality = 85

// ProviderError is a classified failure from an annotation provider.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Hard     bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.Status, e.Message)
}

// Fatal reports whether this error should terminate the batch.
func (e *ProviderError) Fatal() bool {
	return e.Hard
}

// classify decides whether an HTTP failure is a hard-stop condition.
// 401/403 mean the credentials are bad for every subsequent call; a 429
// that mentions quota means the provider's daily budget is spent.
func classify(provider string, status int, body string) *ProviderError {
	message := strings.TrimSpace(body)
	if len(message) > 300 {
		message = message[:300]
	}

	hard := status == 401 || status == 403
	if status == 429 && strings.Contains(strings.ToLower(message), "quota") {
		hard = true
	}

	return &ProviderError{
		Provider: provider,
		Status:   status,
		Message:  message,
		Hard:     hard,
	}
}

// parseTags splits a provider reply into cleaned tag strings.
func parseTags(reply string) []string {
	parts := strings.Split(reply, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.Trim(strings.TrimSpace(p), ".")
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// imagePayload loads the image bytes to send to a provider. Images whose
// longest side exceeds maxDim are downscaled and re-encoded as JPEG for
// the payload only; the file on disk is never modified. Formats the
// decoder does not understand (HEIC) are sent as-is.
func imagePayload(path string, maxDim int) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !mediatypes.IsTaggable(ext) {
		return nil, "", fmt.Errorf("unsupported format %q for %s", ext, path)
	}
	mime := mediatypes.GetMimeType(ext)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	if maxDim <= 0 {
		return raw, mime, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		// HEIC and friends: ship the original bytes and let the provider decode
		logging.Debug("Payload decode failed for %s, sending original bytes: %v", path, err)
		return raw, mime, nil
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return raw, mime, nil
	}

	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegPayloadQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode payload: %w", err)
	}

	logging.Debug("Downscaled payload for %s: %dx%d -> %dx%d (%d -> %d bytes)",
		path, bounds.Dx(), bounds.Dy(),
		resized.Bounds().Dx(), resized.Bounds().Dy(), len(raw), buf.Len())
	return buf.Bytes(), "image/jpeg", nil
}
