package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeChunk(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    string
		wantErr error
	}{
		{
			name: "valid delta",
			line: `data: {"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`,
			want: "hello",
		},
		{
			name: "delta with unicode",
			line: `data: {"candidates":[{"content":{"parts":[{"text":"안녕하세요"}]}}]}`,
			want: "안녕하세요",
		},
		{
			name:    "blank line",
			line:    "",
			wantErr: errNoData,
		},
		{
			name:    "comment line",
			line:    ": keep-alive",
			wantErr: errNoData,
		},
		{
			name:    "event field",
			line:    "event: message",
			wantErr: errNoData,
		},
		{
			name:    "data prefix with empty payload",
			line:    "data: ",
			wantErr: errNoData,
		},
		{
			name:    "malformed json",
			line:    `data: {"candidates":[`,
			wantErr: errMalformedChunk,
		},
		{
			name: "no candidates decodes as empty delta",
			line: `data: {"candidates":[]}`,
			want: "",
		},
		{
			name: "candidate without parts decodes as empty delta",
			line: `data: {"candidates":[{"content":{"parts":[]}}]}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeChunk([]byte(tt.line))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildContents(t *testing.T) {
	t.Run("question only", func(t *testing.T) {
		contents := buildContents("why?", nil, "")
		assert.Len(t, contents, 1)
		assert.Equal(t, "user", contents[0].Role)
		assert.Equal(t, "why?", contents[0].Parts[0].Text)
	})

	t.Run("rag context becomes leading turn with acknowledgement", func(t *testing.T) {
		contents := buildContents("why?", nil, "doc excerpt")
		assert.Len(t, contents, 3)
		assert.Equal(t, "user", contents[0].Role)
		assert.Contains(t, contents[0].Parts[0].Text, "doc excerpt")
		assert.Equal(t, "model", contents[1].Role)
		assert.Equal(t, ragAcknowledgement, contents[1].Parts[0].Text)
		assert.Equal(t, "why?", contents[2].Parts[0].Text)
	})

	t.Run("blank rag context is omitted", func(t *testing.T) {
		contents := buildContents("why?", nil, "   ")
		assert.Len(t, contents, 1)
	})
}
