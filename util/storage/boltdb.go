package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"github.com/boltdb/bolt"
	"time"
)

const DEFAULT_BUCKET = "default"
const SPECIAL_BUCKET = "special"
const BAG_ROOT = "bag root"

// FileRecord is what we remember about one payload file between runs:
// enough to tell whether it has changed since its digests were last
// computed.
type FileRecord struct {
	Size int64
	// ModTime is in nanoseconds since the Unix epoch.
	ModTime int64
	// Digests maps algorithm suffix to hex digest.
	Digests map[string]string
}

// Matches returns true if size and modTime are what the record says.
func (record *FileRecord) Matches(size int64, modTime time.Time) bool {
	return record.Size == size && record.ModTime == modTime.UnixNano()
}

// BoltDB represents a bolt database, which is a single-file key-value
// store. We use it as a fixity cache that sits next to a bag: one
// FileRecord per payload file, keyed by the file's path within the
// bag. A bag may hold a million files, which is too many records to
// keep in memory just to answer "has this file changed?".
type BoltDB struct {
	db       *bolt.DB
	filePath string
}

// NewBoltDB opens a bolt database, creating the DB file if it doesn't
// already exist. The DB file is a key-value store that resides in a
// single file on disk. Gives up after one second if another process
// holds the file.
func NewBoltDB(filePath string) (boltDB *BoltDB, err error) {
	db, err := bolt.Open(filePath, 0644, &bolt.Options{Timeout: time.Second})
	if err == nil {
		boltDB = &BoltDB{
			db:       db,
			filePath: filePath,
		}
		err = boltDB.initBuckets()
	}
	return boltDB, err
}

// Initialize a default bucket for the bolt DB. Since we're creating
// the DB for just one bag, and paths within the bag are unique, we
// can put all file records in one bucket.
func (boltDB *BoltDB) initBuckets() error {
	err := boltDB.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(DEFAULT_BUCKET))
		if err != nil {
			return fmt.Errorf("Error creating default bucket: %s", err)
		}
		_, err = tx.CreateBucketIfNotExists([]byte(SPECIAL_BUCKET))
		if err != nil {
			return fmt.Errorf("Error creating special bucket: %s", err)
		}
		return nil
	})
	return err
}

// FilePath returns the path to the bolt DB file.
func (boltDB *BoltDB) FilePath() string {
	return boltDB.filePath
}

// Close closes the bolt database.
func (boltDB *BoltDB) Close() {
	boltDB.db.Close()
}

// BagRoot returns the absolute path of the bag this cache describes.
func (boltDB *BoltDB) BagRoot() string {
	return boltDB.getSpecial(BAG_ROOT)
}

// SetBagRoot records the absolute path of the bag.
func (boltDB *BoltDB) SetBagRoot(root string) error {
	return boltDB.saveSpecial(BAG_ROOT, root)
}

// Save saves a value to the bolt database.
func (boltDB *BoltDB) Save(key string, value interface{}) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(DEFAULT_BUCKET)).Put([]byte(key), data)
	})
}

// SaveFileRecords saves all records in a single transaction.
func (boltDB *BoltDB) SaveFileRecords(records map[string]*FileRecord) error {
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(DEFAULT_BUCKET))
		for key, record := range records {
			data, err := encode(record)
			if err != nil {
				return err
			}
			if err = bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFileRecord returns the FileRecord saved under key. If key is not
// found, this returns nil and no error.
func (boltDB *BoltDB) GetFileRecord(key string) (*FileRecord, error) {
	var err error
	record := &FileRecord{}
	err = boltDB.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(DEFAULT_BUCKET))
		value := bucket.Get([]byte(key))
		if len(value) > 0 {
			decoder := gob.NewDecoder(bytes.NewBuffer(value))
			err = decoder.Decode(record)
		} else {
			record = nil
		}
		return err
	})
	return record, err
}

// Clear deletes every file record. The bag root is kept.
func (boltDB *BoltDB) Clear() error {
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(DEFAULT_BUCKET)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(DEFAULT_BUCKET))
		return err
	})
}

// ForEach calls the specified function for each key in the database's
// default bucket.
func (boltDB *BoltDB) ForEach(fn func(k, v []byte) error) error {
	return boltDB.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(DEFAULT_BUCKET)).ForEach(fn)
	})
}

// Keys returns a list of all keys in the database.
func (boltDB *BoltDB) Keys() []string {
	keys := make([]string, 0)
	boltDB.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(DEFAULT_BUCKET))
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys
}

func encode(value interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	encoder := gob.NewEncoder(buf)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// saveSpecial is for internal use, to save special keys, like the
// bag root key.
func (boltDB *BoltDB) saveSpecial(key string, value string) error {
	err := boltDB.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(SPECIAL_BUCKET))
		err := bucket.Put([]byte(key), []byte(value))
		return err
	})
	return err
}

// getSpecial is for internal use, to retrieve special keys, like the
// bag root key.
func (boltDB *BoltDB) getSpecial(key string) string {
	var value string
	_ = boltDB.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(SPECIAL_BUCKET))
		value = string(bucket.Get([]byte(key)))
		return nil
	})
	return value
}
