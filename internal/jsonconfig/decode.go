// Package jsonconfig decodes a configuration document into a generic
// tree of maps, slices, strings, numbers, and booleans, rejecting any
// JSON object that repeats a key. encoding/json's map-based Unmarshal
// silently keeps the last occurrence of a duplicate key; spec.md §6
// requires rejection at parse time, so this package walks the
// token-level Decoder by hand instead.
package jsonconfig

import (
	"encoding/json"
	"fmt"
	"io"
)

// Decode reads a full JSON document from r and returns its generic
// tree representation, or an error if any object in the document
// repeats a key.
func Decode(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	val, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	root, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("configuration: top level must be a JSON object")
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("configuration: trailing data after top-level object")
	}
	return root, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("configuration: unexpected delimiter %q", t)
		}
	default:
		return tok, nil
	}
}

func decodeObject(dec *json.Decoder) (map[string]any, error) {
	obj := make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("configuration: object key must be a string, got %v", keyTok)
		}
		if _, dup := obj[key]; dup {
			return nil, fmt.Errorf("configuration: duplicate key %q", key)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj[key] = val
	}
	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	var arr []any
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	// Consume the closing ']'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
