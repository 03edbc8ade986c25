package store

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrate(t *testing.T) {
	s := newTestStore(t)
	// Running migrate twice should be idempotent.
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestGuidanceItemsCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := GuidanceItemRecord{
		ID: "item-1", ProjectID: "proj-a", Topic: "testing", Rule: "always write table tests",
		Scope: "always", Priority: 7, Source: "manual",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := s.UpsertItem(ctx, item); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := s.GetItem(ctx, "proj-a", "item-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected item, got nil")
	}
	if got.Priority != 7 {
		t.Errorf("expected priority 7, got %d", got.Priority)
	}

	item.Priority = 9
	if err := s.UpsertItem(ctx, item); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, _ = s.GetItem(ctx, "proj-a", "item-1")
	if got.Priority != 9 {
		t.Errorf("expected updated priority 9, got %d", got.Priority)
	}

	all, err := s.ListItems(ctx, "proj-a")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 item, got %d", len(all))
	}

	if err := s.DeleteItem(ctx, "proj-a", "item-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	all, _ = s.ListItems(ctx, "proj-a")
	if len(all) != 0 {
		t.Errorf("expected 0 items after soft-delete, got %d", len(all))
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetItem(context.Background(), "proj-a", "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent item")
	}
}

func TestCrossProjectIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := s.UpsertItem(ctx, GuidanceItemRecord{
		ID: "item-1", ProjectID: "proj-a", Topic: "t", Rule: "r", Scope: "always",
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("upsert proj-a failed: %v", err)
	}
	if err := s.UpsertItem(ctx, GuidanceItemRecord{
		ID: "item-1", ProjectID: "proj-b", Topic: "t2", Rule: "r2", Scope: "now",
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("upsert proj-b failed: %v", err)
	}

	a, _ := s.ListItems(ctx, "proj-a")
	b, _ := s.ListItems(ctx, "proj-b")
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected 1 item per project, got %d and %d", len(a), len(b))
	}
	if a[0].Topic == b[0].Topic {
		t.Error("expected per-project items to be independent despite shared item id")
	}
}

func TestIncrementAppliedCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"a", "b"} {
		if err := s.UpsertItem(ctx, GuidanceItemRecord{
			ID: id, ProjectID: "proj-a", Topic: "t", Rule: "r", Scope: "always",
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	if err := s.IncrementAppliedCount(ctx, "proj-a", []string{"a", "b", "a"}); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	got, _ := s.GetItem(ctx, "proj-a", "a")
	if got.AppliedCount != 2 {
		t.Errorf("expected applied_count 2 for a (incremented twice), got %d", got.AppliedCount)
	}
	got, _ = s.GetItem(ctx, "proj-a", "b")
	if got.AppliedCount != 1 {
		t.Errorf("expected applied_count 1 for b, got %d", got.AppliedCount)
	}
}

func TestReferenceDocsCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := ReferenceDocRecord{ID: "doc-1", ProjectID: "proj-a", Title: "Style Guide", Body: "use gofmt", CreatedAt: time.Now().UTC()}
	if err := s.UpsertReferenceDoc(ctx, doc); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	all, err := s.ListReferenceDocs(ctx, "proj-a")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 || all[0].Title != "Style Guide" {
		t.Fatalf("unexpected docs: %+v", all)
	}

	if err := s.DeleteReferenceDoc(ctx, "proj-a", "doc-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	all, _ = s.ListReferenceDocs(ctx, "proj-a")
	if len(all) != 0 {
		t.Errorf("expected 0 docs after delete, got %d", len(all))
	}
}

func TestVCRAppendAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		entry := VCREntry{
			ProjectID: "proj-a", Version: i, Action: "add", ItemID: "item-1",
			Detail: `{"rule":"v"}`, Timestamp: time.Now().UTC(), RequestID: "req-1",
		}
		if err := s.AppendVCR(ctx, entry); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	v, err := s.CurrentVersion(ctx, "proj-a")
	if err != nil {
		t.Fatalf("current version failed: %v", err)
	}
	if v != 3 {
		t.Errorf("expected current version 3, got %d", v)
	}

	history, err := s.ListVCR(ctx, "proj-a", 10, 0)
	if err != nil {
		t.Fatalf("list vcr failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	// Most recent first.
	if history[0].Version != 3 {
		t.Errorf("expected most recent version 3 first, got %d", history[0].Version)
	}

	since, err := s.ListVCRSince(ctx, "proj-a", 1)
	if err != nil {
		t.Fatalf("list vcr since failed: %v", err)
	}
	if len(since) != 2 {
		t.Fatalf("expected 2 entries after version 1, got %d", len(since))
	}
	if since[0].Version != 2 {
		t.Errorf("expected ascending order starting at version 2, got %d", since[0].Version)
	}
}

func TestCurrentVersionEmptyProject(t *testing.T) {
	s := newTestStore(t)
	v, err := s.CurrentVersion(context.Background(), "empty-proj")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0 {
		t.Errorf("expected version 0 for project with no history, got %d", v)
	}
}

func TestRuleProposalsCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := RuleProposalRecord{
		ID: "prop-1", ProjectID: "proj-a", Topic: "errors", Rule: "wrap with %w",
		Scope: "always", Confidence: 0.82, SourceText: "please always wrap errors",
		Status: "pending", CreatedAt: time.Now().UTC(),
	}
	if err := s.UpsertProposal(ctx, p); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	all, err := s.ListProposals(ctx, "proj-a")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 || all[0].Status != "pending" {
		t.Fatalf("unexpected proposals: %+v", all)
	}

	p.Status = "accepted"
	if err := s.UpsertProposal(ctx, p); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	all, _ = s.ListProposals(ctx, "proj-a")
	if all[0].Status != "accepted" {
		t.Errorf("expected status accepted, got %s", all[0].Status)
	}
}

func TestMRPLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := MRPRecord{
		RequestID: "req-1", Timestamp: time.Now().UTC(), TaskType: "code_generation",
		FinalTier: 2, FinalModelID: "mid-model", EscalationCount: 1,
		TotalLatencyMs: 900, TotalCostUSD: 0.04, Complete: true,
		Justification: "escalated once due to validation failure", Detail: `{}`,
	}
	if err := s.LogMRP(ctx, entry); err != nil {
		t.Fatalf("log mrp failed: %v", err)
	}

	got, err := s.GetMRP(ctx, "req-1")
	if err != nil {
		t.Fatalf("get mrp failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected mrp, got nil")
	}
	if got.FinalTier != 2 || got.EscalationCount != 1 {
		t.Errorf("unexpected mrp: %+v", got)
	}

	all, err := s.ListMRPs(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list mrps failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 mrp, got %d", len(all))
	}
}

func TestGetMRPNotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetMRP(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent mrp")
	}
}

func TestPruneOldLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	if err := s.LogMRP(ctx, MRPRecord{RequestID: "old", Timestamp: old}); err != nil {
		t.Fatalf("log old mrp failed: %v", err)
	}
	if err := s.LogMRP(ctx, MRPRecord{RequestID: "recent", Timestamp: recent}); err != nil {
		t.Fatalf("log recent mrp failed: %v", err)
	}
	if err := s.AppendVCR(ctx, VCREntry{ProjectID: "proj-a", Version: 1, Action: "add", Timestamp: old}); err != nil {
		t.Fatalf("append old vcr failed: %v", err)
	}
	if err := s.AppendVCR(ctx, VCREntry{ProjectID: "proj-a", Version: 2, Action: "add", Timestamp: recent}); err != nil {
		t.Fatalf("append recent vcr failed: %v", err)
	}

	n, err := s.PruneOldLogs(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows pruned (1 mrp + 1 vcr), got %d", n)
	}

	all, _ := s.ListMRPs(ctx, 10, 0)
	if len(all) != 1 || all[0].RequestID != "recent" {
		t.Errorf("expected only recent mrp to survive, got %+v", all)
	}
}
