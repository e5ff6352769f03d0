// Package store persists named collections of JSON records.
//
// Two backends implement RecordStore: FileStore keeps each collection in its
// own pretty-printed JSON file and replaces it atomically on every save;
// BoltStore keeps the same JSON documents as values in a single BoltDB file.
package store

import (
	"bytes"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrCorruptData is returned when a persisted collection cannot be decoded.
	// Nothing is discarded: the caller sees the error and the file is left alone.
	ErrCorruptData = errors.New("corrupt data")

	// ErrIOFailure is returned when reading or writing the underlying storage fails.
	ErrIOFailure = errors.New("io failure")
)

// RecordStore loads and saves whole collections. A collection that does not
// exist yet loads as empty and is created on the spot.
type RecordStore interface {
	// Load decodes the named collection into dst, which must point to a slice.
	Load(name string, dst any) error
	// Save replaces the named collection with records. A failed Save leaves
	// the previously stored collection in place.
	Save(name string, records any) error
	// Locked runs fn while holding the store's cross-process lock, if it has one.
	Locked(fn func() error) error
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

var emptyCollection = []byte("[]\n")

func encodeRecords(records any) ([]byte, error) {
	data, err := jsonAPI.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	if bytes.Equal(data, []byte("null")) {
		return emptyCollection, nil
	}
	return append(data, '\n'), nil
}

func decodeRecords(data []byte, dst any, source string) error {
	if len(bytes.TrimSpace(data)) == 0 || !jsoniter.ConfigFastest.Valid(data) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrCorruptData, source)
	}
	if err := jsonAPI.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptData, source, err)
	}
	return nil
}
