package assets_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/docs-crawler/internal/assets"
	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

// sinkSpy records what the resolver reports without influencing it.
type sinkSpy struct {
	metadata.NoopSink

	mu             sync.Mutex
	assetFetches   int
	artifactPaths  []string
	errorDetails   []string
	errorCauses    []metadata.ErrorCause
	fetchStatuses  []int
	fetchRetryCnts []int
}

func (s *sinkSpy) RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assetFetches++
	s.fetchStatuses = append(s.fetchStatuses, httpStatus)
	s.fetchRetryCnts = append(s.fetchRetryCnts, retryCount)
}

func (s *sinkSpy) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifactPaths = append(s.artifactPaths, path)
}

func (s *sinkSpy) RecordError(observedAt time.Time, packageName string, action string, cause metadata.ErrorCause, details string, attrs []metadata.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorDetails = append(s.errorDetails, details)
	s.errorCauses = append(s.errorCauses, cause)
}

func testRetryParam(maxAttempts int) retry.RetryParam {
	return retry.NewRetryParam(
		time.Millisecond,
		0,
		42,
		maxAttempts,
		timeutil.NewBackoffParam(time.Millisecond, 2.0, 5*time.Millisecond),
	)
}

func conversionWithImages(markdown string, imageRefs ...string) mdconvert.ConversionResult {
	var refs []mdconvert.LinkRef
	for _, raw := range imageRefs {
		refs = append(refs, mdconvert.NewLinkRef(raw, mdconvert.KindImage))
	}
	return mdconvert.NewConversionResult([]byte(markdown), refs)
}

func resolveParams(t *testing.T) assets.ResolveParam {
	t.Helper()
	return assets.NewResolveParam(t.TempDir(), 1024*1024, hashutil.HashAlgoSHA256)
}

func pageURLFor(t *testing.T, server *httptest.Server) url.URL {
	t.Helper()
	u, err := url.Parse(server.URL + "/docs/page")
	require.NoError(t, err)
	return *u
}

func imageServer(t *testing.T, images map[string][]byte) (*httptest.Server, *int64) {
	t.Helper()
	var requests int64
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		body, ok := images[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestResolveDownloadsAndRewritesImageRef(t *testing.T) {
	server, _ := imageServer(t, map[string][]byte{
		"/img/logo.png": []byte("png-bytes-logo"),
	})

	sink := &sinkSpy{}
	resolver := assets.NewLocalResolver(sink, server.Client(), "test-agent")
	params := resolveParams(t)

	markdown := "![logo](/img/logo.png)\n\nBody text."
	doc, err := resolver.Resolve(
		context.Background(),
		pageURLFor(t, server),
		conversionWithImages(markdown, "/img/logo.png"),
		params,
		testRetryParam(1),
	)
	require.Nil(t, err)

	content := string(doc.Content())
	require.NotContains(t, content, "](/img/logo.png)")
	require.Contains(t, content, "](assets/images/logo-")
	require.Empty(t, doc.MissingAssets())
	require.Len(t, doc.LocalAssets(), 1)

	// The asset landed on disk under the shared assets directory.
	written, readErr := os.ReadFile(filepath.Join(params.OutputDir(), doc.LocalAssets()[0]))
	require.NoError(t, readErr)
	require.Equal(t, "png-bytes-logo", string(written))

	require.Equal(t, 1, sink.assetFetches)
	require.Len(t, sink.artifactPaths, 1)
}

// The same image referenced from two URLs is written once; the second
// reference reuses the first write's path via the content hash.
func TestResolveDeduplicatesIdenticalContentAcrossURLs(t *testing.T) {
	sameBytes := []byte("identical-image-bytes")
	server, _ := imageServer(t, map[string][]byte{
		"/img/one.png": sameBytes,
		"/img/two.png": sameBytes,
	})

	sink := &sinkSpy{}
	resolver := assets.NewLocalResolver(sink, server.Client(), "test-agent")
	params := resolveParams(t)

	markdown := "![a](/img/one.png) ![b](/img/two.png)"
	doc, err := resolver.Resolve(
		context.Background(),
		pageURLFor(t, server),
		conversionWithImages(markdown, "/img/one.png", "/img/two.png"),
		params,
		testRetryParam(1),
	)
	require.Nil(t, err)

	// Both refs rewritten to the single written file.
	require.Len(t, sink.artifactPaths, 1, "identical content must be written exactly once")
	content := string(doc.Content())
	require.Contains(t, content, "](assets/images/one-")
	require.NotContains(t, content, "](/img/two.png)")
	require.Len(t, resolver.WrittenAssets(), 2, "both URLs map to the shared content hash")
}

// A second Resolve for a page referencing an already-written asset must
// not refetch it.
func TestResolveSkipsAlreadyWrittenAssets(t *testing.T) {
	server, requests := imageServer(t, map[string][]byte{
		"/img/logo.png": []byte("png-bytes-logo"),
	})

	sink := &sinkSpy{}
	resolver := assets.NewLocalResolver(sink, server.Client(), "test-agent")
	params := resolveParams(t)

	for i := 0; i < 3; i++ {
		_, err := resolver.Resolve(
			context.Background(),
			pageURLFor(t, server),
			conversionWithImages("![logo](/img/logo.png)", "/img/logo.png"),
			params,
			testRetryParam(1),
		)
		require.Nil(t, err)
	}

	require.Equal(t, int64(1), *requests, "an already-written asset must not be refetched")
}

// A failed download is reported, the original ref stays in the markdown,
// and the page itself still resolves.
func TestResolveMissingAssetKeepsOriginalRef(t *testing.T) {
	server, _ := imageServer(t, map[string][]byte{})

	sink := &sinkSpy{}
	resolver := assets.NewLocalResolver(sink, server.Client(), "test-agent")
	params := resolveParams(t)

	markdown := "![gone](/img/gone.png)"
	doc, err := resolver.Resolve(
		context.Background(),
		pageURLFor(t, server),
		conversionWithImages(markdown, "/img/gone.png"),
		params,
		testRetryParam(1),
	)
	require.Nil(t, err, "missing assets are reported, not fatal")

	require.Contains(t, string(doc.Content()), "](/img/gone.png)", "failed download keeps the original ref")
	require.Len(t, doc.MissingAssets(), 1)
	require.NotEmpty(t, sink.errorDetails)
	require.Contains(t, strings.Join(sink.errorDetails, "\n"), "missing asset")
}

func TestResolveRejectsOversizeAsset(t *testing.T) {
	big := make([]byte, 4096)
	server, _ := imageServer(t, map[string][]byte{"/img/huge.png": big})

	sink := &sinkSpy{}
	resolver := assets.NewLocalResolver(sink, server.Client(), "test-agent")
	params := assets.NewResolveParam(t.TempDir(), 1024, hashutil.HashAlgoSHA256)

	doc, err := resolver.Resolve(
		context.Background(),
		pageURLFor(t, server),
		conversionWithImages("![huge](/img/huge.png)", "/img/huge.png"),
		params,
		testRetryParam(1),
	)
	require.Nil(t, err)
	require.Len(t, doc.MissingAssets(), 1, "an oversize asset is dropped, not written")
	require.Empty(t, sink.artifactPaths)
}

func TestResolveTracksUnparseableURLs(t *testing.T) {
	server, _ := imageServer(t, map[string][]byte{})

	sink := &sinkSpy{}
	resolver := assets.NewLocalResolver(sink, server.Client(), "test-agent")

	doc, err := resolver.Resolve(
		context.Background(),
		pageURLFor(t, server),
		conversionWithImages("![bad](http://%zz)", "http://%zz"),
		resolveParams(t),
		testRetryParam(1),
	)
	require.Nil(t, err)
	require.Equal(t, []string{"http://%zz"}, doc.UnparseableURLs())
}

// Concurrent pages resolving distinct assets share one resolver; the
// written-asset and hash-to-path maps must stay consistent under the
// parallel access the crawl workers produce.
func TestResolveIsSafeForConcurrentPages(t *testing.T) {
	images := make(map[string][]byte)
	for i := 0; i < 8; i++ {
		images[fmt.Sprintf("/img/p%d.png", i)] = []byte(fmt.Sprintf("bytes-%d", i))
	}
	server, _ := imageServer(t, images)

	sink := &sinkSpy{}
	resolver := assets.NewLocalResolver(sink, server.Client(), "test-agent")
	params := resolveParams(t)

	page := pageURLFor(t, server)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref := fmt.Sprintf("/img/p%d.png", i)
			_, err := resolver.Resolve(
				context.Background(),
				page,
				conversionWithImages("!["+ref+"]("+ref+")", ref),
				params,
				testRetryParam(1),
			)
			if err != nil {
				errs[i] = err
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, resolver.WrittenAssets(), 8)
	require.Equal(t, 8, sink.assetFetches)
}
