package pathsync

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang/snappy"
)

// snappyPrefix marks a stored value as snappy-compressed JSON. Uncompressed
// values are stored as plain JSON so cached snapshots stay readable.
const snappyPrefix = "snappy:"

// compressThreshold is the minimum encoded size before compression kicks in.
const compressThreshold = 512

// Codec serializes snapshots for the local store. Time fields round-trip as
// ISO-8601 via encoding/json's RFC 3339 handling of time.Time.
type Codec struct {
	// Compress enables snappy block compression for values above a small
	// size threshold.
	Compress bool
}

// Encode serializes v to a string suitable for LocalStore.Set.
func (c Codec) Encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("codec: marshal: %w", err)
	}

	if c.Compress && len(data) >= compressThreshold {
		compressed := snappy.Encode(nil, data)
		return snappyPrefix + base64.StdEncoding.EncodeToString(compressed), nil
	}
	return string(data), nil
}

// Decode deserializes a value produced by Encode into v.
func (c Codec) Decode(value string, v any) error {
	data := []byte(value)

	if strings.HasPrefix(value, snappyPrefix) {
		compressed, err := base64.StdEncoding.DecodeString(value[len(snappyPrefix):])
		if err != nil {
			return fmt.Errorf("codec: decode base64: %w", err)
		}
		data, err = snappy.Decode(nil, compressed)
		if err != nil {
			return fmt.Errorf("codec: decompress: %w", err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}
