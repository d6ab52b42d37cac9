package documents

// WriteResult reports where a binary document landed, for the caller to
// record in the page store and crawl statistics.
type WriteResult struct {
	path        string
	contentHash string
	deduped     bool
}

func NewWriteResult(path string, contentHash string, deduped bool) WriteResult {
	return WriteResult{path: path, contentHash: contentHash, deduped: deduped}
}

func (w WriteResult) Path() string {
	return w.path
}

func (w WriteResult) ContentHash() string {
	return w.contentHash
}

// Deduped reports whether this document's content hash matched a
// previously written document, so no new file was created.
func (w WriteResult) Deduped() bool {
	return w.deduped
}
