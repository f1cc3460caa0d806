package fetcher

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// relayStatus is the status block of an AllOrigins /get envelope.
type relayStatus struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	HTTPCode    int    `json:"http_code"`
}

type unwrapped struct {
	body        []byte
	contentType string
	statusCode  int
	enveloped   bool
}

// unwrapRelay detects the relay's response shape. A JSON object with a
// "contents" field is an envelope; a JSON object with only a relay "status"
// is a broken envelope; anything else is the origin payload verbatim.
func unwrapRelay(body []byte) (unwrapped, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return unwrapped{body: body}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		// not JSON after all, e.g. a text payload that starts with a brace
		return unwrapped{body: body}, nil
	}

	rawContents, hasContents := fields["contents"]
	rawStatus, hasStatus := fields["status"]

	if !hasContents {
		if hasStatus && isRelayStatus(rawStatus) {
			return unwrapped{}, fmt.Errorf("%w: status without contents", ErrEnvelopeMalformed)
		}
		return unwrapped{body: body}, nil
	}

	var contents *string
	if err := json.Unmarshal(rawContents, &contents); err != nil {
		return unwrapped{}, fmt.Errorf("%w: contents is not a string", ErrEnvelopeMalformed)
	}
	if contents == nil {
		return unwrapped{}, fmt.Errorf("%w: contents is null", ErrEnvelopeMalformed)
	}

	out := unwrapped{enveloped: true}

	if hasStatus {
		var st relayStatus
		if err := json.Unmarshal(rawStatus, &st); err == nil {
			out.statusCode = st.HTTPCode
			out.contentType = st.ContentType
		}
	}

	payload, err := decodeDataURL(*contents)
	if err != nil {
		return unwrapped{}, err
	}
	out.body = payload

	return out, nil
}

func isRelayStatus(raw json.RawMessage) bool {
	var st relayStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return false
	}
	return st.HTTPCode != 0 || st.URL != ""
}

// decodeDataURL returns s unchanged unless it is a base64 data URL, which the
// relay produces for binary or non-UTF-8 payloads.
func decodeDataURL(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return []byte(s), nil
	}

	meta, data, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data url without payload", ErrEnvelopeMalformed)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return []byte(data), nil
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 contents: %w", ErrEnvelopeMalformed, err)
	}
	return decoded, nil
}
