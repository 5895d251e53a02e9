package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const jsonExtractionTimeout = time.Second

// extractJsonData applies a jq expression to a JSON response body and
// returns the first output value re-serialized as JSON. An empty expression,
// a non-JSON body, or an expression producing no output all yield ("", nil);
// only genuinely broken expressions report an error.
func extractJsonData(ctx context.Context, expression string, body []byte) (string, error) {
	if expression == "" || len(body) == 0 {
		return "", nil
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return "", fmt.Errorf("parsing extraction expression: %w", err)
	}

	// Guard against pathological expressions; the body is already in memory
	// so a tight deadline is enough.
	ctx, cancel := context.WithTimeout(ctx, jsonExtractionTimeout)
	defer cancel()

	iter := query.RunWithContext(ctx, parsed)
	value, ok := iter.Next()
	if !ok {
		return "", nil
	}
	if err, isErr := value.(error); isErr {
		return "", fmt.Errorf("running extraction expression: %w", err)
	}

	serialized, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("serializing extracted value: %w", err)
	}
	return string(serialized), nil
}
