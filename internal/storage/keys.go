// ABOUTME: Key layout for tables, records, and index entries inside the engine.
// ABOUTME: Keys are "/"-separated bucket paths with the record key last.
package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

var separator = []byte("/")

// bucket combines bucket names and a final key into a full engine key.
type bucket struct {
	path [][]byte
}

func makeBucket(path ...string) *bucket {
	b := &bucket{path: make([][]byte, len(path))}
	for i, p := range path {
		b.path[i] = []byte(p)
	}
	return b
}

// sub returns a child bucket.
func (b *bucket) sub(name string) *bucket {
	path := make([][]byte, len(b.path)+1)
	copy(path, b.path)
	path[len(b.path)] = []byte(name)
	return &bucket{path: path}
}

// key returns a key inside the bucket.
func (b *bucket) key(k string) []byte {
	p := b.prefix()
	full := make([]byte, len(p)+len(k))
	copy(full, p)
	copy(full[len(p):], k)
	return full
}

// prefix returns the bucket path with a trailing separator.
func (b *bucket) prefix() []byte {
	joined := bytes.Join(b.path, separator)
	out := make([]byte, len(joined)+len(separator))
	copy(out, joined)
	copy(out[len(joined):], separator)
	return out
}

var (
	metaBucket  = makeBucket("meta")
	tableBucket = metaBucket.sub("table")
	dataBucket  = makeBucket("data")
	indexBucket = makeBucket("index")

	versionKey = metaBucket.key("version")
)

func recordKey(table, date string) []byte {
	return dataBucket.sub(table).key(date)
}

func recordPrefix(table string) []byte {
	return dataBucket.sub(table).prefix()
}

func indexValueBucket(table, index string, value any) (*bucket, error) {
	enc, err := encodeIndexValue(value)
	if err != nil {
		return nil, err
	}
	return indexBucket.sub(table).sub(index).sub(enc), nil
}

func indexEntryKey(table, index string, value any, date string) ([]byte, error) {
	b, err := indexValueBucket(table, index, value)
	if err != nil {
		return nil, err
	}
	return b.key(date), nil
}

// encodeIndexValue tags a scalar with its kind and hex-encodes it so the
// result never contains the separator. "1" and 1.0 index differently.
func encodeIndexValue(value any) (string, error) {
	var tagged string
	switch v := value.(type) {
	case string:
		tagged = "s" + v
	case bool:
		tagged = "b" + strconv.FormatBool(v)
	default:
		f, ok := numeric(v)
		if !ok {
			return "", fmt.Errorf("%w: index value %T is not a string, number, or bool", ErrInvalidRecord, value)
		}
		if math.IsNaN(f) {
			return "", fmt.Errorf("%w: NaN cannot be indexed", ErrInvalidRecord)
		}
		tagged = "n" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return hex.EncodeToString([]byte(tagged)), nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
