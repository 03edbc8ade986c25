package guidance

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/osqr-dev/osqr/internal/store"
)

// VCRLog is a thin, read-oriented query layer over the append-only VCR
// records in store.Store. The only mutation path is Append, called by the
// Guidance Store as part of every mutating operation.
type VCRLog struct {
	store store.Store
}

// NewVCRLog wraps a persistence store for VCR queries.
func NewVCRLog(s store.Store) *VCRLog {
	return &VCRLog{store: s}
}

// Append records one VCR entry. Called by the Guidance Store in the same
// transaction-equivalent call as the mutation it describes.
func (l *VCRLog) Append(ctx context.Context, projectID string, entry VCR, requestID string) error {
	detail, err := encodeVCRDetail(entry)
	if err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return l.store.AppendVCR(ctx, store.VCREntry{
		ProjectID: projectID,
		Version:   entry.Version,
		Action:    entry.Action,
		ItemID:    entry.ItemID,
		Detail:    detail,
		Timestamp: entry.Timestamp,
		RequestID: requestID,
	})
}

// History returns the full VCR history for a project, oldest first.
func (l *VCRLog) History(ctx context.Context, projectID string) ([]VCR, error) {
	records, err := l.store.ListVCR(ctx, projectID, 1<<31-1, 0)
	if err != nil {
		return nil, err
	}
	entries := decodeAll(records)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
	return entries, nil
}

// Reversed returns the full VCR history newest first.
func (l *VCRLog) Reversed(ctx context.Context, projectID string) ([]VCR, error) {
	h, err := l.History(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]VCR, len(h))
	for i, e := range h {
		out[len(h)-1-i] = e
	}
	return out, nil
}

// ByVersion returns the entry at an exact version, or nil if absent.
func (l *VCRLog) ByVersion(ctx context.Context, projectID string, version int) (*VCR, error) {
	h, err := l.History(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, e := range h {
		if e.Version == version {
			return &e, nil
		}
	}
	return nil, nil
}

// Latest returns the most recent entry, or nil if the project has no history.
func (l *VCRLog) Latest(ctx context.Context, projectID string) (*VCR, error) {
	h, err := l.History(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}
	return &h[len(h)-1], nil
}

// ByItemID returns all entries touching a given item id, oldest first.
func (l *VCRLog) ByItemID(ctx context.Context, projectID, itemID string) ([]VCR, error) {
	h, err := l.History(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var out []VCR
	for _, e := range h {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

// SinceVersion returns entries with version > the given version, ascending.
func (l *VCRLog) SinceVersion(ctx context.Context, projectID string, version int) ([]VCR, error) {
	records, err := l.store.ListVCRSince(ctx, projectID, version)
	if err != nil {
		return nil, err
	}
	entries := decodeAll(records)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
	return entries, nil
}

// ByAction returns all entries with the given action, oldest first.
func (l *VCRLog) ByAction(ctx context.Context, projectID, action string) ([]VCR, error) {
	h, err := l.History(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var out []VCR
	for _, e := range h {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out, nil
}

// ByTimeRange returns entries with timestamp in [from, to], oldest first.
func (l *VCRLog) ByTimeRange(ctx context.Context, projectID string, fromUnix, toUnix int64) ([]VCR, error) {
	h, err := l.History(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var out []VCR
	for _, e := range h {
		t := e.Timestamp.Unix()
		if t >= fromUnix && t <= toUnix {
			out = append(out, e)
		}
	}
	return out, nil
}

// CurrentVersion returns the highest version number recorded for a project.
func (l *VCRLog) CurrentVersion(ctx context.Context, projectID string) (int, error) {
	return l.store.CurrentVersion(ctx, projectID)
}

// VersionExists reports whether a given version has a recorded entry.
func (l *VCRLog) VersionExists(ctx context.Context, projectID string, version int) (bool, error) {
	e, err := l.ByVersion(ctx, projectID, version)
	if err != nil {
		return false, err
	}
	return e != nil, nil
}

// AvailableVersions returns all recorded version numbers, ascending.
func (l *VCRLog) AvailableVersions(ctx context.Context, projectID string) ([]int, error) {
	h, err := l.History(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(h))
	for i, e := range h {
		out[i] = e.Version
	}
	return out, nil
}

func decodeAll(records []store.VCREntry) []VCR {
	out := make([]VCR, 0, len(records))
	for _, r := range records {
		out = append(out, decodeVCREntry(r))
	}
	return out
}

type vcrDetail struct {
	Previous *MentorScriptItem `json:"previous,omitempty"`
	New      *MentorScriptItem `json:"new,omitempty"`
}

func encodeVCRDetail(v VCR) (string, error) {
	b, err := json.Marshal(vcrDetail{Previous: v.Previous, New: v.New})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeVCREntry(r store.VCREntry) VCR {
	v := VCR{Version: r.Version, Timestamp: r.Timestamp, Action: r.Action, ItemID: r.ItemID}
	if r.Detail == "" {
		return v
	}
	var d vcrDetail
	if err := json.Unmarshal([]byte(r.Detail), &d); err == nil {
		v.Previous = d.Previous
		v.New = d.New
	}
	return v
}
