package audio

import "net/url"

// WAVContentType is the content type of every materialized buffer.
const WAVContentType = "audio/wav"

// StorageKey derives the object key for a track. The same id always yields the same key.
func StorageKey(prefix, trackID string) string {
	return prefix + url.PathEscape(trackID) + ".wav"
}
