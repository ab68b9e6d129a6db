package utils

import (
	"fmt"
	"net/http"
	"strconv"
)

// QueryBool parses an optional boolean query parameter; absent means nil.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q", name, raw)
	}
	return &val, nil
}
