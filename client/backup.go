package client

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nuvex/nuvex/internal/xerrors"
	"github.com/nuvex/nuvex/storage/engine"
)

const backupVersion = "1.0.0"
const backupDir = "nuvex-backups"

// BackupType distinguishes a full snapshot from an incremental one. The
// incremental marker is recorded in the envelope but does not filter keys
// in this revision — see DESIGN.md's Open Question decision on incremental
// backup.
type BackupType string

const (
	BackupFull        BackupType = "full"
	BackupIncremental BackupType = "incremental"
)

// BackupOptions configures a single Backup call.
type BackupOptions struct {
	Type       BackupType
	Compressed bool
}

// BackupMetadata is the envelope's top-level "metadata" object.
type BackupMetadata struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"createdAt"`
	KeyCount       int        `json:"keyCount"`
	KeysSkipped    int        `json:"keysSkipped"`
	Version        string     `json:"version"`
	Type           BackupType `json:"type"`
	LastBackupTime *time.Time `json:"lastBackupTime"`
	Compression    bool       `json:"compression"`
	TotalKeys      int        `json:"totalKeys"`
}

// BackupEntry is one value within the envelope's "data" map.
type BackupEntry struct {
	Value          interface{}      `json:"value"`
	LayerInfo      *BackupLayerInfo `json:"layerInfo"`
	CreatedAt      time.Time        `json:"createdAt"`
	Version        string           `json:"version"`
	BackupType     BackupType       `json:"backupType,omitempty"`
	LastBackupTime *time.Time       `json:"lastBackupTime,omitempty"`
}

// BackupLayerInfo is the envelope's per-entry layer/ttl pair.
type BackupLayerInfo struct {
	Layer string `json:"layer"`
	TTL   *int64 `json:"ttl,omitempty"`
}

// Envelope is the full backup file contents (spec.md §6's JSON shape).
type Envelope struct {
	Metadata BackupMetadata         `json:"metadata"`
	Data     map[string]BackupEntry `json:"data"`
}

var lastBackupMu sync.Mutex
var lastBackupAt map[string]time.Time // keyed by backup directory, for simplicity one process-wide entry is enough

func init() { lastBackupAt = make(map[string]time.Time) }

// Backup snapshots every non-internal key into an envelope and writes it to
// <cwd>/nuvex-backups/<backupId>.json[.gz], returning the backup ID.
func (c *Client) Backup(ctx context.Context, opts BackupOptions) (string, error) {
	if err := c.requireEngine(); err != nil {
		return "", err
	}
	if opts.Type == "" {
		opts.Type = BackupFull
	}

	keys := c.engine.Keys("")
	id := uuid.NewString()
	now := time.Now().UTC()

	lastBackupMu.Lock()
	prev, hadPrev := lastBackupAt[backupDir]
	lastBackupMu.Unlock()
	var lastBackupTime *time.Time
	if hadPrev {
		t := prev
		lastBackupTime = &t
	}

	data := make(map[string]BackupEntry, len(keys))
	skipped := 0
	for _, k := range keys {
		v, ok, err := c.engine.Get(ctx, k, engine.GetOptions{})
		if err != nil || !ok {
			skipped++
			continue
		}
		entry := BackupEntry{
			Value:     v,
			CreatedAt: now,
			Version:   backupVersion,
		}
		if opts.Type == BackupIncremental {
			entry.BackupType = BackupIncremental
			entry.LastBackupTime = lastBackupTime
		}
		if infos := c.engine.GetLayerInfo(ctx, k); len(infos) > 0 {
			entry.LayerInfo = &BackupLayerInfo{Layer: infos[0].Layer.String()}
			if infos[0].TTL != nil {
				ms := int64(*infos[0].TTL / time.Millisecond)
				entry.LayerInfo.TTL = &ms
			}
		}
		data[k] = entry
	}

	envelope := Envelope{
		Metadata: BackupMetadata{
			ID:             id,
			CreatedAt:      now,
			KeyCount:       len(data),
			KeysSkipped:    skipped,
			Version:        backupVersion,
			Type:           opts.Type,
			LastBackupTime: lastBackupTime,
			Compression:    opts.Compressed,
			TotalKeys:      len(keys),
		},
		Data: data,
	}

	if err := writeEnvelope(id, envelope, opts.Compressed); err != nil {
		return "", err
	}

	lastBackupMu.Lock()
	lastBackupAt[backupDir] = now
	lastBackupMu.Unlock()

	return id, nil
}

func writeEnvelope(id string, envelope Envelope, compressed bool) error {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return xerrors.Wrap(err, xerrors.BackupIO, "client: creating backup directory failed")
	}

	name := id + ".json"
	if compressed {
		name += ".gz"
	}
	path := filepath.Join(backupDir, name)

	buf, err := json.Marshal(envelope)
	if err != nil {
		return xerrors.Wrap(err, xerrors.BackupIO, "client: marshaling backup envelope failed")
	}

	f, err := os.Create(path)
	if err != nil {
		return xerrors.Wrap(err, xerrors.BackupIO, "client: creating backup file failed")
	}
	defer f.Close()

	if !compressed {
		if _, err := f.Write(buf); err != nil {
			return xerrors.Wrap(err, xerrors.BackupIO, "client: writing backup file failed")
		}
		return nil
	}

	gw := gzip.NewWriter(f)
	if _, err := gw.Write(buf); err != nil {
		return xerrors.Wrap(err, xerrors.BackupIO, "client: writing compressed backup failed")
	}
	return gw.Close()
}

// RestoreOptions configures a single Restore call.
type RestoreOptions struct {
	// Clear wipes every existing key before writing the envelope's entries.
	Clear bool
	// DryRun reports the keys Restore would write without writing them.
	DryRun bool
}

// entrySetOptions rebuilds the SetOptions an entry was originally captured
// with, from its BackupLayerInfo (layer + TTL in milliseconds).
func entrySetOptions(entry BackupEntry) engine.SetOptions {
	opts := engine.SetOptions{}
	if entry.LayerInfo == nil {
		return opts
	}
	if tag, ok := engine.ParseLayerTag(entry.LayerInfo.Layer); ok {
		opts.Layer = &tag
	}
	if entry.LayerInfo.TTL != nil {
		opts.TTL = time.Duration(*entry.LayerInfo.TTL) * time.Millisecond
	}
	return opts
}

// Restore reads the envelope at <cwd>/nuvex-backups/<backupId>.json[.gz]
// (trying the plain file first, then the gzip-suffixed one), optionally
// clears every existing key, then writes each entry back through Set with
// its captured layer and TTL preserved. DryRun performs neither the clear
// nor the writes, only reporting how many keys would be restored.
func (c *Client) Restore(ctx context.Context, backupID string, opts RestoreOptions) (int, error) {
	if err := c.requireEngine(); err != nil {
		return 0, err
	}

	envelope, err := readEnvelope(backupID)
	if err != nil {
		return 0, err
	}

	if opts.DryRun {
		return len(envelope.Data), nil
	}

	if opts.Clear {
		if _, err := c.engine.Clear(ctx, ""); err != nil {
			return 0, xerrors.Wrap(err, xerrors.RestoreFormat, "client: clearing before restore failed")
		}
	}

	restored := 0
	for k, entry := range envelope.Data {
		if _, err := c.engine.Set(ctx, k, entry.Value, entrySetOptions(entry)); err != nil {
			return restored, xerrors.Wrap(err, xerrors.RestoreFormat, fmt.Sprintf("client: restoring key %q failed", k))
		}
		restored++
	}
	return restored, nil
}

func readEnvelope(backupID string) (Envelope, error) {
	var envelope Envelope

	plainPath := filepath.Join(backupDir, backupID+".json")
	gzPath := plainPath + ".gz"

	if buf, err := os.ReadFile(plainPath); err == nil {
		if err := json.Unmarshal(buf, &envelope); err != nil {
			return envelope, xerrors.Wrap(err, xerrors.RestoreFormat, "client: parsing backup file failed")
		}
		return envelope, nil
	}

	f, err := os.Open(gzPath)
	if err != nil {
		return envelope, xerrors.Wrap(err, xerrors.BackupIO, "client: opening backup file failed")
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return envelope, xerrors.Wrap(err, xerrors.RestoreFormat, "client: decompressing backup file failed")
	}
	defer gr.Close()

	dec := json.NewDecoder(gr)
	if err := dec.Decode(&envelope); err != nil {
		return envelope, xerrors.Wrap(err, xerrors.RestoreFormat, "client: parsing compressed backup file failed")
	}
	return envelope, nil
}
