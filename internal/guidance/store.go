package guidance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osqr-dev/osqr/internal/config"
	"github.com/osqr-dev/osqr/internal/store"
)

// ErrHardLimitReached is returned by AddItem when a project already holds
// hardLimit items.
var ErrHardLimitReached = fmt.Errorf("guidance: hard limit reached")

// AddItemInput is the caller-supplied shape for AddItem.
type AddItemInput struct {
	Rule                string
	Priority            int
	Source              string
	OriginalCorrection  string
	SessionID           string
}

// UpdateItemInput is the caller-supplied shape for UpdateItem; nil fields
// leave the existing value unchanged.
type UpdateItemInput struct {
	Rule     *string
	Priority *int
}

// Store is the Guidance Store: a versioned, per-project collection of
// mentor-script items and reference docs. Every mutation is serialized per
// project (so two concurrent requests against the same project never race)
// while requests against different projects proceed independently.
type Store struct {
	backing store.Store
	vcr     *VCRLog
	cfg     config.GuidanceConfig

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore wires a persistence backend and guidance config into a Store.
func NewStore(backing store.Store, cfg config.GuidanceConfig) *Store {
	return &Store{
		backing: backing,
		vcr:     NewVCRLog(backing),
		cfg:     cfg,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Store) lockFor(projectID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	return l
}

// Get returns the current guidance for a project, or nil if it has never
// been created.
func (s *Store) Get(ctx context.Context, projectID string) (*ProjectGuidance, error) {
	items, err := s.backing.ListItems(ctx, projectID)
	if err != nil {
		return nil, err
	}
	docs, err := s.backing.ListReferenceDocs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	version, err := s.backing.CurrentVersion(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && len(docs) == 0 && version == 0 {
		return nil, nil
	}

	pg := &ProjectGuidance{ProjectID: projectID, Version: version}
	for _, it := range items {
		pg.MentorScripts = append(pg.MentorScripts, toDomainItem(it))
		if it.UpdatedAt.After(pg.LastUpdated) {
			pg.LastUpdated = it.UpdatedAt
		}
	}
	for _, d := range docs {
		pg.ReferenceDocs = append(pg.ReferenceDocs, ReferenceDoc{Path: d.ID, Context: d.Body})
	}
	return pg, nil
}

// Ensure returns the project's guidance, creating version 0 if missing.
func (s *Store) Ensure(ctx context.Context, projectID string) (*ProjectGuidance, error) {
	pg, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if pg != nil {
		return pg, nil
	}
	return &ProjectGuidance{ProjectID: projectID, Version: 0, LastUpdated: time.Now().UTC()}, nil
}

// AddItem creates a new mentor-script item, failing if the project is
// already at the hard limit.
func (s *Store) AddItem(ctx context.Context, projectID string, in AddItemInput) (MentorScriptItem, error) {
	mu := s.lockFor(projectID)
	mu.Lock()
	defer mu.Unlock()

	items, err := s.backing.ListItems(ctx, projectID)
	if err != nil {
		return MentorScriptItem{}, err
	}
	hardLimit := s.cfg.HardLimit
	if hardLimit <= 0 {
		hardLimit = 25
	}
	if len(items) >= hardLimit {
		return MentorScriptItem{}, ErrHardLimitReached
	}

	priority := in.Priority
	if priority == 0 {
		priority = s.cfg.DefaultPriority
		if priority == 0 {
			priority = 5
		}
	}
	priority = clampPriority(priority)

	source := in.Source
	if source == "" {
		source = "user_defined"
	}

	item := MentorScriptItem{
		ID:                 uuid.NewString(),
		Rule:               in.Rule,
		Source:             source,
		OriginalCorrection: in.OriginalCorrection,
		PromotedFromSession: in.SessionID,
		CreatedAt:          time.Now().UTC(),
		Priority:           priority,
	}

	version, err := s.nextVersion(ctx, projectID)
	if err != nil {
		return MentorScriptItem{}, err
	}

	record := toStoreItem(projectID, item, version)
	if err := s.backing.UpsertItem(ctx, record); err != nil {
		return MentorScriptItem{}, err
	}
	if err := s.vcr.Append(ctx, projectID, VCR{Version: version, Action: "add", ItemID: item.ID, New: &item}, ""); err != nil {
		return MentorScriptItem{}, err
	}
	return item, nil
}

// UpdateItem mutates an existing item's rule and/or priority.
func (s *Store) UpdateItem(ctx context.Context, projectID, itemID string, in UpdateItemInput) (MentorScriptItem, error) {
	mu := s.lockFor(projectID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.backing.GetItem(ctx, projectID, itemID)
	if err != nil {
		return MentorScriptItem{}, err
	}
	if rec == nil {
		return MentorScriptItem{}, fmt.Errorf("guidance: item %s not found in project %s", itemID, projectID)
	}
	previous := toDomainItem(*rec)

	updated := previous
	if in.Rule != nil {
		updated.Rule = *in.Rule
	}
	if in.Priority != nil {
		updated.Priority = clampPriority(*in.Priority)
	}

	version, err := s.nextVersion(ctx, projectID)
	if err != nil {
		return MentorScriptItem{}, err
	}

	record := toStoreItem(projectID, updated, version)
	record.CreatedAt = rec.CreatedAt
	record.AppliedCount = rec.AppliedCount
	if err := s.backing.UpsertItem(ctx, record); err != nil {
		return MentorScriptItem{}, err
	}
	if err := s.vcr.Append(ctx, projectID, VCR{Version: version, Action: "edit", ItemID: itemID, Previous: &previous, New: &updated}, ""); err != nil {
		return MentorScriptItem{}, err
	}
	return updated, nil
}

// RemoveItem soft-deletes an item and returns the VCR entry recorded for
// the removal, or nil if the item did not exist.
func (s *Store) RemoveItem(ctx context.Context, projectID, itemID string) (*VCR, error) {
	mu := s.lockFor(projectID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.backing.GetItem(ctx, projectID, itemID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	previous := toDomainItem(*rec)

	version, err := s.nextVersion(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.backing.DeleteItem(ctx, projectID, itemID); err != nil {
		return nil, err
	}
	entry := VCR{Version: version, Action: "remove", ItemID: itemID, Previous: &previous}
	if err := s.vcr.Append(ctx, projectID, entry, ""); err != nil {
		return nil, err
	}
	return &entry, nil
}

// IncrementAppliedCount bumps one item's applied counter by 1, versioned and
// VCR-logged like any other mutation so a Rollback to an earlier version
// reverts it too.
func (s *Store) IncrementAppliedCount(ctx context.Context, projectID, itemID string) error {
	mu := s.lockFor(projectID)
	mu.Lock()
	defer mu.Unlock()
	return s.incrementOne(ctx, projectID, itemID)
}

// BatchIncrement bumps applied counters for several items in one call, each
// allocating its own version and VCR entry.
func (s *Store) BatchIncrement(ctx context.Context, projectID string, itemIDs []string) error {
	mu := s.lockFor(projectID)
	mu.Lock()
	defer mu.Unlock()
	for _, itemID := range itemIDs {
		if err := s.incrementOne(ctx, projectID, itemID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) incrementOne(ctx context.Context, projectID, itemID string) error {
	rec, err := s.backing.GetItem(ctx, projectID, itemID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("guidance: item %s not found in project %s", itemID, projectID)
	}
	previous := toDomainItem(*rec)
	updated := previous
	updated.AppliedCount++

	version, err := s.nextVersion(ctx, projectID)
	if err != nil {
		return err
	}

	record := toStoreItem(projectID, updated, version)
	record.CreatedAt = rec.CreatedAt
	if err := s.backing.UpsertItem(ctx, record); err != nil {
		return err
	}
	return s.vcr.Append(ctx, projectID, VCR{Version: version, Action: "edit", ItemID: itemID, Previous: &previous, New: &updated}, "")
}

// AddReferenceDoc attaches or replaces a reference doc at a path.
func (s *Store) AddReferenceDoc(ctx context.Context, projectID, path, context string) error {
	mu := s.lockFor(projectID)
	mu.Lock()
	defer mu.Unlock()

	version, err := s.nextVersion(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.backing.UpsertReferenceDoc(ctx, store.ReferenceDocRecord{
		ID: path, ProjectID: projectID, Title: path, Body: context, CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	return s.vcr.Append(ctx, projectID, VCR{Version: version, Action: "reference_doc_add", ItemID: path}, "")
}

// RemoveReferenceDoc removes a reference doc by path.
func (s *Store) RemoveReferenceDoc(ctx context.Context, projectID, path string) error {
	mu := s.lockFor(projectID)
	mu.Lock()
	defer mu.Unlock()

	version, err := s.nextVersion(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.backing.DeleteReferenceDoc(ctx, projectID, path); err != nil {
		return err
	}
	return s.vcr.Append(ctx, projectID, VCR{Version: version, Action: "reference_doc_remove", ItemID: path}, "")
}

// Rollback replays VCR entries newer than targetVersion in descending
// order, inverting each: add -> remove, remove -> restore from Previous,
// edit -> restore Previous. The rollback itself is then logged as a new,
// strictly greater version so it never collides with the VCR entry already
// recorded at targetVersion from the original mutation.
func (s *Store) Rollback(ctx context.Context, projectID string, targetVersion int) (*ProjectGuidance, error) {
	mu := s.lockFor(projectID)
	mu.Lock()
	defer mu.Unlock()

	entries, err := s.vcr.SinceVersion(ctx, projectID, targetVersion)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version > entries[j].Version })

	rollbackVersion, err := s.nextVersion(ctx, projectID)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		switch e.Action {
		case "add":
			if err := s.backing.DeleteItem(ctx, projectID, e.ItemID); err != nil {
				return nil, err
			}
		case "remove":
			if e.Previous != nil {
				if err := s.backing.UpsertItem(ctx, toStoreItem(projectID, *e.Previous, rollbackVersion)); err != nil {
					return nil, err
				}
			}
		case "edit":
			if e.Previous != nil {
				if err := s.backing.UpsertItem(ctx, toStoreItem(projectID, *e.Previous, rollbackVersion)); err != nil {
					return nil, err
				}
			}
		}
	}

	rollbackEntry := VCR{Version: rollbackVersion, Action: "rollback", Timestamp: time.Now().UTC()}
	if err := s.vcr.Append(ctx, projectID, rollbackEntry, ""); err != nil {
		return nil, err
	}

	return s.Ensure(ctx, projectID)
}

func (s *Store) nextVersion(ctx context.Context, projectID string) (int, error) {
	v, err := s.backing.CurrentVersion(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return v + 1, nil
}

// BySource returns items filtered by source, in store order.
func (s *Store) BySource(ctx context.Context, projectID, source string) ([]MentorScriptItem, error) {
	items, err := s.backing.ListItems(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var out []MentorScriptItem
	for _, it := range items {
		if it.Source == source {
			out = append(out, toDomainItem(it))
		}
	}
	return out, nil
}

// ByPriority returns items sorted by priority, descending.
func (s *Store) ByPriority(ctx context.Context, projectID string) ([]MentorScriptItem, error) {
	items, err := s.backing.ListItems(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := toDomainItems(items)
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

// ByUsage returns items sorted by applied count, descending.
func (s *Store) ByUsage(ctx context.Context, projectID string) ([]MentorScriptItem, error) {
	items, err := s.backing.ListItems(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := toDomainItems(items)
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedCount > out[j].AppliedCount })
	return out, nil
}

// IsAtSoftLimit reports whether a project's item count meets or exceeds the
// soft limit (consolidation suggested but not blocked).
func (s *Store) IsAtSoftLimit(ctx context.Context, projectID string) (bool, error) {
	items, err := s.backing.ListItems(ctx, projectID)
	if err != nil {
		return false, err
	}
	soft := s.cfg.SoftLimit
	if soft <= 0 {
		soft = 15
	}
	return len(items) >= soft, nil
}

// IsAtHardLimit reports whether a project's item count meets or exceeds the
// hard limit (new items rejected).
func (s *Store) IsAtHardLimit(ctx context.Context, projectID string) (bool, error) {
	items, err := s.backing.ListItems(ctx, projectID)
	if err != nil {
		return false, err
	}
	hard := s.cfg.HardLimit
	if hard <= 0 {
		hard = 25
	}
	return len(items) >= hard, nil
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

func toDomainItems(records []store.GuidanceItemRecord) []MentorScriptItem {
	out := make([]MentorScriptItem, 0, len(records))
	for _, r := range records {
		out = append(out, toDomainItem(r))
	}
	return out
}

func toDomainItem(r store.GuidanceItemRecord) MentorScriptItem {
	return MentorScriptItem{
		ID:           r.ID,
		Rule:         r.Rule,
		Source:       r.Source,
		CreatedAt:    r.CreatedAt,
		AppliedCount: r.AppliedCount,
		Priority:     r.Priority,
	}
}

func toStoreItem(projectID string, item MentorScriptItem, version int) store.GuidanceItemRecord {
	now := time.Now().UTC()
	return store.GuidanceItemRecord{
		ID:           item.ID,
		ProjectID:    projectID,
		Topic:        "",
		Rule:         item.Rule,
		Scope:        "always",
		Priority:     item.Priority,
		Source:       item.Source,
		AppliedCount: item.AppliedCount,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    now,
		Version:      version,
	}
}
