package migrate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/libractl/internal/util"
)

// LedgerEntry records one document pushed to the remote store.
type LedgerEntry struct {
	Collection string    `json:"collection"` // remote collection
	Key        string    `json:"key"`        // local record id
	DocID      string    `json:"doc_id"`     // remote document id
	Timestamp  time.Time `json:"timestamp"`
}

// Ledger is a JSONL append-only migration log.
type Ledger struct {
	path string
}

// DefaultLedgerPath returns the ledger path inside dataDir.
func DefaultLedgerPath(dataDir string) string {
	return filepath.Join(dataDir, "migrated.jsonl")
}

// OpenLedger opens (or creates) the ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &Ledger{path: path}, nil
}

// Append adds an entry to the ledger.
func (l *Ledger) Append(e LedgerEntry) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	e.Timestamp = time.Now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(data))
	return err
}

// Contains reports whether key has already been pushed to collection.
func (l *Ledger) Contains(collection, key string) (bool, error) {
	done, err := l.Done()
	if err != nil {
		return false, err
	}
	return done[ledgerKey(collection, key)], nil
}

// Done returns the set of migrated collection/key pairs.
func (l *Ledger) Done() (map[string]bool, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(entries))
	for _, e := range entries {
		done[ledgerKey(e.Collection, e.Key)] = true
	}
	return done, nil
}

// Entries returns all ledger entries.
func (l *Ledger) Entries() ([]LedgerEntry, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []LedgerEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e LedgerEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

func ledgerKey(collection, key string) string {
	return collection + "/" + key
}
