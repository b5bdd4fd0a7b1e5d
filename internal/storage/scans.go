package storage

import (
	"encoding/json"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hakim/vulnpipe/internal/models"
)

// SaveScan upserts a scan record and keeps the per-target index in
// step. Calling it again with the same ID overwrites the record, which
// is how the orchestrator checkpoints progress through the run.
func (s *Store) SaveScan(meta *models.ScanMeta) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}

		scans := tx.Bucket([]byte(bucketScans))
		if err := scans.Put([]byte(meta.ID), data); err != nil {
			return err
		}

		index := tx.Bucket([]byte(bucketByTgt))
		targetKey := []byte(meta.Target)

		var ids []string
		if existing := index.Get(targetKey); existing != nil {
			if err := json.Unmarshal(existing, &ids); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if id == meta.ID {
				return nil
			}
		}
		ids = append(ids, meta.ID)

		indexData, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		return index.Put(targetKey, indexData)
	})
}

// GetScan returns the record for id, or nil when unknown.
func (s *Store) GetScan(id string) (*models.ScanMeta, error) {
	var meta *models.ScanMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketScans)).Get([]byte(id))
		if data == nil {
			return nil
		}
		meta = &models.ScanMeta{}
		return json.Unmarshal(data, meta)
	})

	return meta, err
}

// ListScans returns every record for target, newest first. An empty
// target lists all recorded scans.
func (s *Store) ListScans(target string) ([]*models.ScanMeta, error) {
	var scans []*models.ScanMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketScans))

		if target == "" {
			return bucket.ForEach(func(_, data []byte) error {
				var meta models.ScanMeta
				if err := json.Unmarshal(data, &meta); err != nil {
					return err
				}
				scans = append(scans, &meta)
				return nil
			})
		}

		data := tx.Bucket([]byte(bucketByTgt)).Get([]byte(target))
		if data == nil {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		for _, id := range ids {
			scanData := bucket.Get([]byte(id))
			if scanData == nil {
				continue
			}
			var meta models.ScanMeta
			if err := json.Unmarshal(scanData, &meta); err != nil {
				return err
			}
			scans = append(scans, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(scans, func(i, j int) bool {
		return scans[i].StartedAt.After(scans[j].StartedAt)
	})
	return scans, nil
}

// GetLatestScan returns the most recent record for target, or nil.
func (s *Store) GetLatestScan(target string) (*models.ScanMeta, error) {
	scans, err := s.ListScans(target)
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, nil
	}
	return scans[0], nil
}

// UpdateScanStatus moves a scan to a new status, stamping CompletedAt
// on the first transition to a terminal state. Unknown ids are a no-op.
func (s *Store) UpdateScanStatus(id string, status models.ScanStatus) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		scans := tx.Bucket([]byte(bucketScans))
		data := scans.Get([]byte(id))
		if data == nil {
			return nil
		}

		var meta models.ScanMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}

		meta.Status = status
		if (status == models.StatusComplete || status == models.StatusFailed) && meta.CompletedAt == nil {
			now := time.Now()
			meta.CompletedAt = &now
		}

		updated, err := json.Marshal(&meta)
		if err != nil {
			return err
		}
		return scans.Put([]byte(id), updated)
	})
}
