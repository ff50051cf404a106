package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxRESTResponseBodyBytes = 1 << 20

// CallJSON issues one JSON request against a provider API using the
// supplied bearer token and decodes the JSON response body. Non-2xx
// statuses are returned as errors carrying the status code.
func CallJSON(ctx context.Context, doer HTTPDoer, method, endpoint, bearerToken string, payload map[string]any) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("providers: encode request payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("providers: build request: %w", err)
	}
	if strings.TrimSpace(bearerToken) != "" {
		request.Header.Set("Authorization", "Bearer "+strings.TrimSpace(bearerToken))
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")

	if doer == nil {
		doer = http.DefaultClient
	}
	response, err := doer.Do(request)
	if err != nil {
		return nil, fmt.Errorf("providers: request failed: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxRESTResponseBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("providers: read response: %w", err)
	}
	if len(raw) > maxRESTResponseBodyBytes {
		return nil, fmt.Errorf("providers: response exceeds %d bytes", maxRESTResponseBodyBytes)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("providers: endpoint returned %d: %s", response.StatusCode, summarizeBody(raw))
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("providers: decode response: %w", err)
	}
	return decoded, nil
}

func summarizeBody(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	if trimmed == "" {
		return "empty body"
	}
	return trimmed
}
