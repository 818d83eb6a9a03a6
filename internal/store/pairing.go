package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

var (
	bucketPairing = []byte("pairing")
	keyDevice     = []byte("device")
)

// PairingStore keeps the single paired-device slot in a bbolt file.
type PairingStore struct {
	db *bolt.DB
}

var _ airquality.Pairing = (*PairingStore)(nil)

// OpenPairing opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
func OpenPairing(path string) (*PairingStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating pairing db directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening pairing db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPairing)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket %s: %w", bucketPairing, err)
	}
	return &PairingStore{db: db}, nil
}

// Load returns the paired device. ok is false when the slot is empty.
func (p *PairingStore) Load() (airquality.DeviceRef, bool, error) {
	var (
		ref   airquality.DeviceRef
		found bool
	)
	err := p.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPairing).Get(keyDevice)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &ref)
	})
	if err != nil {
		return airquality.DeviceRef{}, false, fmt.Errorf("decoding paired device: %w", err)
	}
	return ref, found, nil
}

// Save overwrites the slot.
func (p *PairingStore) Save(ref airquality.DeviceRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encoding paired device: %w", err)
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPairing).Put(keyDevice, data)
	})
}

// Clear empties the slot. Clearing an empty slot is not an error.
func (p *PairingStore) Clear() error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPairing).Delete(keyDevice)
	})
}

func (p *PairingStore) Close() error {
	return p.db.Close()
}
