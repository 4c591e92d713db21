package ldb

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/plasmalabs/rootchaind/infrastructure/db/database"
)

func prepareDatabaseForTest(t *testing.T) *LevelDB {
	t.Helper()
	ldb, err := NewLevelDB(t.TempDir(), 8)
	if err != nil {
		t.Fatalf("NewLevelDB: %s", err)
	}
	t.Cleanup(func() {
		if err := ldb.Close(); err != nil {
			t.Fatalf("Close: %s", err)
		}
	})
	return ldb
}

func TestLevelDBPutGetDelete(t *testing.T) {
	ldb := prepareDatabaseForTest(t)
	bucket := database.MakeBucket([]byte("test"))
	key := bucket.Key([]byte("key1"))
	value := []byte("value1")

	if err := ldb.Put(key, value); err != nil {
		t.Fatalf("Put: %s", err)
	}
	got, err := ldb.Get(key)
	if err != nil {
		t.Fatalf("Get: %s", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("Get returned %x, want %x", got, value)
	}
	has, err := ldb.Has(key)
	if err != nil {
		t.Fatalf("Has: %s", err)
	}
	if !has {
		t.Fatalf("Has returned false for an existing key")
	}

	if err := ldb.Delete(key); err != nil {
		t.Fatalf("Delete: %s", err)
	}
	_, err = ldb.Get(key)
	if !database.IsNotFoundError(err) {
		t.Fatalf("Get after delete: got %s, want ErrNotFound", err)
	}
	has, err = ldb.Has(key)
	if err != nil {
		t.Fatalf("Has: %s", err)
	}
	if has {
		t.Fatalf("Has returned true for a deleted key")
	}

	// Deleting a nonexistent key is not an error.
	if err := ldb.Delete(bucket.Key([]byte("never-put"))); err != nil {
		t.Fatalf("Delete of a nonexistent key: %s", err)
	}
}

func TestLevelDBTransactionCommit(t *testing.T) {
	ldb := prepareDatabaseForTest(t)
	bucket := database.MakeBucket([]byte("test"))
	key := bucket.Key([]byte("key1"))
	value := []byte("value1")

	tx, err := ldb.Begin()
	if err != nil {
		t.Fatalf("Begin: %s", err)
	}
	if err := tx.Put(key, value); err != nil {
		t.Fatalf("Put: %s", err)
	}

	// Uncommitted writes are invisible outside the transaction.
	if _, err := ldb.Get(key); !database.IsNotFoundError(err) {
		t.Fatalf("Get before commit: got %s, want ErrNotFound", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %s", err)
	}
	got, err := ldb.Get(key)
	if err != nil {
		t.Fatalf("Get after commit: %s", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("Get returned %x, want %x", got, value)
	}

	// A closed transaction rejects further use.
	if err := tx.Put(key, value); err == nil {
		t.Fatalf("Put into a committed transaction did not error")
	}
	if err := tx.RollbackUnlessClosed(); err != nil {
		t.Fatalf("RollbackUnlessClosed on a committed transaction: %s", err)
	}
}

func TestLevelDBTransactionRollback(t *testing.T) {
	ldb := prepareDatabaseForTest(t)
	bucket := database.MakeBucket([]byte("test"))
	key := bucket.Key([]byte("key1"))

	tx, err := ldb.Begin()
	if err != nil {
		t.Fatalf("Begin: %s", err)
	}
	if err := tx.Put(key, []byte("value1")); err != nil {
		t.Fatalf("Put: %s", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %s", err)
	}
	if _, err := ldb.Get(key); !database.IsNotFoundError(err) {
		t.Fatalf("Get after rollback: got %s, want ErrNotFound", err)
	}
}

func TestLevelDBTransactionSnapshotReads(t *testing.T) {
	ldb := prepareDatabaseForTest(t)
	bucket := database.MakeBucket([]byte("test"))
	key := bucket.Key([]byte("key1"))

	if err := ldb.Put(key, []byte("before")); err != nil {
		t.Fatalf("Put: %s", err)
	}
	tx, err := ldb.Begin()
	if err != nil {
		t.Fatalf("Begin: %s", err)
	}
	defer func() {
		_ = tx.RollbackUnlessClosed()
	}()

	// Writes made after the transaction began are not visible to it.
	if err := ldb.Put(key, []byte("after")); err != nil {
		t.Fatalf("Put: %s", err)
	}
	got, err := tx.Get(key)
	if err != nil {
		t.Fatalf("Get: %s", err)
	}
	if !bytes.Equal(got, []byte("before")) {
		t.Fatalf("transaction read %q, want the snapshot value %q", got, "before")
	}
}

func TestLevelDBCursor(t *testing.T) {
	ldb := prepareDatabaseForTest(t)
	bucket := database.MakeBucket([]byte("test"))
	otherBucket := database.MakeBucket([]byte("other"))

	entries := map[string]string{
		"a": "1",
		"b": "2",
		"c": "3",
	}
	for k, v := range entries {
		if err := ldb.Put(bucket.Key([]byte(k)), []byte(v)); err != nil {
			t.Fatalf("Put: %s", err)
		}
	}
	// An entry outside the bucket must not appear in the iteration.
	if err := ldb.Put(otherBucket.Key([]byte("x")), []byte("9")); err != nil {
		t.Fatalf("Put: %s", err)
	}

	cursor, err := ldb.Cursor(bucket)
	if err != nil {
		t.Fatalf("Cursor: %s", err)
	}
	defer func() {
		if err := cursor.Close(); err != nil {
			t.Fatalf("Close: %s", err)
		}
	}()

	seen := make(map[string]string)
	for cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			t.Fatalf("Key: %s", err)
		}
		value, err := cursor.Value()
		if err != nil {
			t.Fatalf("Value: %s", err)
		}
		seen[string(key.Suffix())] = string(value)
	}
	if len(seen) != len(entries) {
		t.Fatalf("cursor visited %d entries, want %d", len(seen), len(entries))
	}
	for k, v := range entries {
		if seen[k] != v {
			t.Fatalf("cursor saw %q=%q, want %q", k, seen[k], v)
		}
	}
}

func TestLevelDBCursorKeysAreSuffixed(t *testing.T) {
	ldb := prepareDatabaseForTest(t)
	bucket := database.MakeBucket([]byte("parent")).Bucket([]byte("child"))

	for i := 0; i < 3; i++ {
		suffix := []byte(fmt.Sprintf("key%d", i))
		if err := ldb.Put(bucket.Key(suffix), []byte{byte(i)}); err != nil {
			t.Fatalf("Put: %s", err)
		}
	}

	cursor, err := ldb.Cursor(bucket)
	if err != nil {
		t.Fatalf("Cursor: %s", err)
	}
	defer func() {
		_ = cursor.Close()
	}()

	i := 0
	for cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			t.Fatalf("Key: %s", err)
		}
		expected := fmt.Sprintf("key%d", i)
		if string(key.Suffix()) != expected {
			t.Fatalf("cursor key suffix %q, want %q", key.Suffix(), expected)
		}
		i++
	}
	if i != 3 {
		t.Fatalf("cursor visited %d entries, want 3", i)
	}
}
