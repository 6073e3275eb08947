package app

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedOption is returned for a bootstrap payload that is not a JSON
// object of the expected shape.
var ErrMalformedOption = errors.New("malformed option value")

// Bootstrap is the payload of the bootstrap option: the seed the entity key
// is derived from, and its initial domain fields.
//
//	{"seed": "1", "status": {"latitude": 37.79, "longitude": -122.39, "temperature": 65}}
type Bootstrap[F any] struct {
	Seed   string `json:"seed"`
	Status F      `json:"status"`
}

// ParseBootstrap decodes a bootstrap payload. Unknown JSON fields are
// ignored; a missing status leaves the fields zero.
func ParseBootstrap[F any](value string) (*Bootstrap[F], error) {
	var b Bootstrap[F]
	if err := json.Unmarshal([]byte(value), &b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOption, err)
	}
	return &b, nil
}
