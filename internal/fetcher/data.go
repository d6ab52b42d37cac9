package fetcher

import (
	"net/url"
	"time"
)

// HTTP boundary

// ProgressFunc receives (received, total) byte counts as a body streams
// in; total is 0 when the server sent no Content-Length. It is called
// after each chunk and once more at completion.
type ProgressFunc func(received, total int64)

type FetchParam struct {
	fetchUrl           url.URL
	userAgent          string
	timeout            time.Duration
	conditionalHeaders map[string]string
	onProgress         ProgressFunc
}

func NewFetchParam(fetchUrl url.URL, userAgent string) FetchParam {
	return FetchParam{
		fetchUrl:  fetchUrl,
		userAgent: userAgent,
		timeout:   30 * time.Second,
	}
}

// WithTimeout overrides the default 30s fetch timeout.
func (f FetchParam) WithTimeout(timeout time.Duration) FetchParam {
	f.timeout = timeout
	return f
}

// WithConditionalHeaders attaches If-None-Match / If-Modified-Since headers
// built by the change detector for revalidation.
func (f FetchParam) WithConditionalHeaders(headers map[string]string) FetchParam {
	f.conditionalHeaders = headers
	return f
}

// WithProgress installs a streaming progress callback for this fetch.
func (f FetchParam) WithProgress(onProgress ProgressFunc) FetchParam {
	f.onProgress = onProgress
	return f
}

func (f FetchParam) URL() url.URL {
	return f.fetchUrl
}

type FetchResult struct {
	url       url.URL
	body      []byte
	meta      ResponseMeta
	fetchedAt time.Time
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

func (f *FetchResult) SizeByte() uint64 {
	return uint64(len(f.body))
}

// TransferredSizeByte reports bytes actually read off the wire, which may
// differ from SizeByte for a 304 response with an empty body.
func (f *FetchResult) TransferredSizeByte() uint64 {
	return f.meta.transferredSizeByte
}

func (f *FetchResult) Headers() map[string]string {
	return f.meta.responseHeaders
}

func (f *FetchResult) ContentType() string {
	return f.meta.responseHeaders["Content-Type"]
}

// NotModified reports whether the server answered 304.
func (f *FetchResult) NotModified() bool {
	return f.meta.statusCode == 304
}

func (f *FetchResult) FetchedAt() time.Time {
	return f.fetchedAt
}

type ResponseMeta struct {
	statusCode          int
	transferredSizeByte uint64
	responseHeaders     map[string]string
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	url url.URL,
	body []byte,
	statusCode int,
	contentType string,
	responseHeaders map[string]string,
	fetchedAt time.Time,
) FetchResult {
	if responseHeaders == nil {
		responseHeaders = map[string]string{}
	}
	if contentType != "" {
		responseHeaders["Content-Type"] = contentType
	}
	return FetchResult{
		url:       url,
		body:      body,
		fetchedAt: fetchedAt,
		meta: ResponseMeta{
			statusCode:          statusCode,
			transferredSizeByte: uint64(len(body)),
			responseHeaders:     responseHeaders,
		},
	}
}
