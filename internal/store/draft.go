package store

import (
	"database/sql"
	"time"
)

// The draft snapshot methods satisfy draft.Snapshotter so in-progress exam
// authoring survives a server restart.

// SaveDraft upserts a draft snapshot blob.
func (s *Store) SaveDraft(id string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO draft_snapshots (id, data, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		id, string(data), time.Now(),
	)
	return err
}

// LoadDraft returns the snapshot blob for a draft ID.
func (s *Store) LoadDraft(id string) ([]byte, bool, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM draft_snapshots WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(data), true, nil
}

// ClearDraft removes a draft snapshot.
func (s *Store) ClearDraft(id string) error {
	_, err := s.db.Exec(`DELETE FROM draft_snapshots WHERE id = ?`, id)
	return err
}

// ListDraftIDs returns the IDs of all stored draft snapshots, most recently
// saved first.
func (s *Store) ListDraftIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM draft_snapshots ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
