// Package input reads the movie list that seeds a harvest.
package input

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadMovies reads a movie list from path. See ParseMovies for the format.
func LoadMovies(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read movies file: %w", err)
	}
	movies, err := ParseMovies(data)
	if err != nil {
		return nil, fmt.Errorf("parse movies file %s: %w", path, err)
	}
	return movies, nil
}

// ParseMovies accepts either a JSON array of movie slugs or a JSON object
// whose keys are the slugs. Object keys are returned in document order.
// Blank slugs are dropped and duplicates keep their first position.
func ParseMovies(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, errors.New("expected a JSON array or object")
	}

	var raw []string
	switch delim {
	case '[':
		for dec.More() {
			var slug string
			if err := dec.Decode(&slug); err != nil {
				return nil, fmt.Errorf("decode movie slug: %w", err)
			}
			raw = append(raw, slug)
		}
	case '{':
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("read movie key: %w", err)
			}
			key, _ := keyTok.(string)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("decode value for %q: %w", key, err)
			}
			raw = append(raw, key)
		}
	default:
		return nil, errors.New("expected a JSON array or object")
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read closing token: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after movie list")
	}

	seen := make(map[string]struct{}, len(raw))
	movies := make([]string, 0, len(raw))
	for _, slug := range raw {
		slug = strings.TrimSpace(slug)
		if slug == "" {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		movies = append(movies, slug)
	}
	return movies, nil
}
