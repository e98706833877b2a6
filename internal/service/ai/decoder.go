package ai

import (
	"bytes"
	"encoding/json"
	"errors"
)

var dataPrefix = []byte("data: ")

var (
	// errNoData marks lines that carry no event payload (blank lines,
	// comments, other SSE fields). They are skipped silently.
	errNoData = errors.New("ai: not a data line")
	// errMalformedChunk marks data lines whose payload cannot be parsed.
	// A malformed chunk never aborts the stream; it decodes as an empty
	// delta and is logged by the caller.
	errMalformedChunk = errors.New("ai: malformed chunk")
)

type streamPayload struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// decodeChunk extracts the text delta from one raw line of the upstream
// event stream.
func decodeChunk(line []byte) (string, error) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return "", errNoData
	}
	payload := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
	if len(payload) == 0 {
		return "", errNoData
	}

	var parsed streamPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", errMalformedChunk
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
