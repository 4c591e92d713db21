package database

import (
	"encoding/hex"
)

var bucketSeparator = byte('/')

// Key is a full database key composed of a bucket path and a suffix
// within it.
type Key struct {
	bucket *Bucket
	suffix []byte
}

// Bytes returns the full key as a byte slice.
func (k *Key) Bytes() []byte {
	bucketPath := k.bucket.Path()
	keyBytes := make([]byte, len(bucketPath)+len(k.suffix))
	copy(keyBytes, bucketPath)
	copy(keyBytes[len(bucketPath):], k.suffix)
	return keyBytes
}

func (k *Key) String() string {
	return hex.EncodeToString(k.Bytes())
}

// Bucket returns the key's bucket.
func (k *Key) Bucket() *Bucket {
	return k.bucket
}

// Suffix returns the key within its bucket.
func (k *Key) Suffix() []byte {
	return k.suffix
}

func newKey(bucket *Bucket, suffix []byte) *Key {
	return &Key{bucket: bucket, suffix: suffix}
}

// Bucket is a database key space. Buckets nest: a sub-bucket's path is its
// parent's path extended with the sub-bucket's name and a separator.
type Bucket struct {
	path []byte
}

// MakeBucket creates a new Bucket with the given path. Pass nil for the
// root bucket.
func MakeBucket(path []byte) *Bucket {
	if len(path) == 0 {
		return &Bucket{}
	}
	return &Bucket{path: append(append([]byte{}, path...), bucketSeparator)}
}

// Bucket returns the sub-bucket of the current bucket defined by
// bucketBytes.
func (b *Bucket) Bucket(bucketBytes []byte) *Bucket {
	newPath := make([]byte, 0, len(b.path)+len(bucketBytes)+1)
	newPath = append(newPath, b.path...)
	newPath = append(newPath, bucketBytes...)
	newPath = append(newPath, bucketSeparator)
	return &Bucket{path: newPath}
}

// Key returns the key with the given suffix inside the current bucket.
func (b *Bucket) Key(suffix []byte) *Key {
	return newKey(b, suffix)
}

// Path returns the full path of the current bucket.
func (b *Bucket) Path() []byte {
	return b.path
}
