package documents_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohmanhakim/docs-crawler/internal/documents"
)

func TestIsBinaryContentType(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"application/pdf", true},
		{"application/pdf; charset=binary", true},
		{"application/msword", true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"application/zip", true},
		{"application/octet-stream", true},
		{"image/png", true},
		{"audio/mpeg", true},
		{"video/mp4", true},
		{"text/html", false},
		{"text/html; charset=utf-8", false},
		{"application/json", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, documents.IsBinaryContentType(tc.contentType), tc.contentType)
	}
}

func TestHasBinaryExtension(t *testing.T) {
	assert.True(t, documents.HasBinaryExtension("whitepaper.pdf"))
	assert.True(t, documents.HasBinaryExtension("/files/report.DOCX"))
	assert.False(t, documents.HasBinaryExtension("page.html"))
	assert.False(t, documents.HasBinaryExtension("index"))
}
