package documents

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/fileutil"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
Responsibilities
- Save non-HTML fetch results under <outputDir>/documents/
- Enforce the 50MB document size cap
- Deduplicate identical bodies fetched from different URLs by content hash

A Writer never fetches; it only persists bytes the orchestrator has
already classified as binary and already has in memory.
*/

// maxDocumentBytes is the hard cap on a single binary
// document; bodies larger than this are dropped, not written.
const maxDocumentBytes = 50 * 1024 * 1024

type Writer interface {
	Write(
		outputDir string,
		sourceURL url.URL,
		body []byte,
		hashAlgo hashutil.HashAlgo,
	) (WriteResult, failure.ClassifiedError)
}

type LocalWriter struct {
	metadataSink metadata.MetadataSink
	mu           *sync.Mutex
	hashToPath   map[string]string
}

func NewLocalWriter(metadataSink metadata.MetadataSink) LocalWriter {
	return LocalWriter{
		metadataSink: metadataSink,
		mu:           &sync.Mutex{},
		hashToPath:   make(map[string]string),
	}
}

func (w *LocalWriter) Write(
	outputDir string,
	sourceURL url.URL,
	body []byte,
	hashAlgo hashutil.HashAlgo,
) (WriteResult, failure.ClassifiedError) {
	result, err := w.write(outputDir, sourceURL, body, hashAlgo)
	if err != nil {
		w.metadataSink.RecordError(
			time.Now(),
			"documents",
			"LocalWriter.Write",
			mapDocumentErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, sourceURL.String()),
			},
		)
		return WriteResult{}, err
	}
	w.metadataSink.RecordArtifact(
		metadata.ArtifactDocument,
		result.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, result.Path()),
			metadata.NewAttr(metadata.AttrURL, sourceURL.String()),
			metadata.NewAttr(metadata.AttrField, result.ContentHash()),
		},
	)
	return result, nil
}

func (w *LocalWriter) write(
	outputDir string,
	sourceURL url.URL,
	body []byte,
	hashAlgo hashutil.HashAlgo,
) (WriteResult, *DocumentError) {
	if len(body) > maxDocumentBytes {
		return WriteResult{}, &DocumentError{
			Message: fmt.Sprintf("document too large: %d bytes (max %d)", len(body), maxDocumentBytes),
			Cause:   ErrCauseOversize,
		}
	}

	contentHash, hashErr := hashutil.HashBytes(body, hashAlgo)
	if hashErr != nil {
		return WriteResult{}, &DocumentError{
			Message: hashErr.Error(),
			Cause:   ErrCauseHashComputation,
		}
	}

	w.mu.Lock()
	if existingPath, found := w.hashToPath[contentHash]; found {
		w.mu.Unlock()
		return NewWriteResult(existingPath, contentHash, true), nil
	}
	w.mu.Unlock()

	documentsDir := filepath.Join(outputDir, "documents")
	if ensureErr := fileutil.EnsureDir(documentsDir); ensureErr != nil {
		var fileErr *fileutil.FileError
		errors.As(ensureErr, &fileErr)
		return WriteResult{}, &DocumentError{
			Message: ensureErr.Error(),
			Cause:   ErrCausePathError,
		}
	}

	filename := buildDocumentFilename(sourceURL, contentHash)
	fullPath := filepath.Join(documentsDir, filename)

	if writeErr := os.WriteFile(fullPath, body, 0644); writeErr != nil {
		cause := ErrCauseWriteFailure
		if errors.Is(writeErr, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
		}
		return WriteResult{}, &DocumentError{
			Message: writeErr.Error(),
			Cause:   cause,
		}
	}

	relPath := filepath.Join("documents", filename)

	w.mu.Lock()
	w.hashToPath[contentHash] = relPath
	w.mu.Unlock()

	return NewWriteResult(relPath, contentHash, false), nil
}

// buildDocumentFilename derives a filesystem-safe, collision-resistant
// name from the source URL, disambiguated with a short content-hash
// suffix (mirrors internal/assets' buildAssetPath scheme).
func buildDocumentFilename(sourceURL url.URL, contentHash string) string {
	safeName := urlutil.SafeFilename(sourceURL)
	if i := strings.LastIndex(safeName, "/"); i >= 0 {
		safeName = safeName[i+1:]
	}
	// SafeFilename drops the last segment's extension; take it from the URL.
	ext := ""
	last := sourceURL.Path[strings.LastIndex(sourceURL.Path, "/")+1:]
	if strings.LastIndex(last, ".") > 0 {
		ext = fileutil.GetFileExtension(last)
	}
	suffix := contentHash
	if len(suffix) > 12 {
		suffix = suffix[:12]
	}
	if ext == "" {
		return fmt.Sprintf("%s-%s", safeName, suffix)
	}
	return fmt.Sprintf("%s-%s.%s", safeName, suffix, ext)
}
