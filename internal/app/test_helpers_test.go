package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/ports/secondary"
	"github.com/example/contentgate/internal/rules"
)

// fixedNow is the clock every app test runs on.
var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	reg, err := rules.Default()
	if err != nil {
		t.Fatalf("rules.Default failed: %v", err)
	}
	return reg
}

// ============================================================================
// Content repository
// ============================================================================

// Ensure mockContentRepository implements the interface
var _ secondary.ContentRepository = (*mockContentRepository)(nil)

type mockContentRepository struct {
	mu       sync.Mutex
	items    map[string]*secondary.ContentItemRecord
	history  []*secondary.StageChangeRecord
	saveErr  error
	transErr error
}

func newMockContentRepository() *mockContentRepository {
	return &mockContentRepository{items: make(map[string]*secondary.ContentItemRecord)}
}

func (m *mockContentRepository) Save(ctx context.Context, item *secondary.ContentItemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	saved := *item
	if existing, ok := m.items[item.ID]; ok {
		saved.Stage = existing.Stage
		saved.PostedAt = existing.PostedAt
		saved.CreatedAt = existing.CreatedAt
	}
	m.items[item.ID] = &saved
	return nil
}

func (m *mockContentRepository) GetByID(ctx context.Context, id string) (*secondary.ContentItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s not found", id)
	}
	cp := *item
	return &cp, nil
}

func (m *mockContentRepository) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok, nil
}

func (m *mockContentRepository) List(ctx context.Context, filters secondary.ContentFilters) ([]*secondary.ContentItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.ContentItemRecord
	for _, item := range m.items {
		if filters.Stage != "" && item.Stage != filters.Stage {
			continue
		}
		if filters.Category != "" && item.Category != filters.Category {
			continue
		}
		cp := *item
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockContentRepository) TransitionStage(ctx context.Context, change *secondary.StageChangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transErr != nil {
		return m.transErr
	}
	item, ok := m.items[change.ItemID]
	if !ok {
		return fmt.Errorf("item %s not found", change.ItemID)
	}
	if item.Stage != change.FromStage {
		return fmt.Errorf("item %s is at %s, not %s", change.ItemID, item.Stage, change.FromStage)
	}
	if change.Revision != 0 && item.Revision != change.Revision {
		return fmt.Errorf("item %s is at revision %d, not %d: %w", change.ItemID, item.Revision, change.Revision, secondary.ErrStaleRevision)
	}
	item.Stage = change.ToStage
	if change.PostedAt != "" {
		item.PostedAt = change.PostedAt
	}
	m.history = append(m.history, change)
	return nil
}

func (m *mockContentRepository) History(ctx context.Context, itemID string) ([]*secondary.StageChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.StageChangeRecord
	for _, h := range m.history {
		if h.ItemID == itemID {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *mockContentRepository) GetMaxSequence(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	highest := 0
	for id := range m.items {
		var n int
		if _, err := fmt.Sscanf(id, "%d-", &n); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}

// ============================================================================
// Conditional pass repository
// ============================================================================

// Ensure mockConditionalPassRepository implements the interface
var _ secondary.ConditionalPassRepository = (*mockConditionalPassRepository)(nil)

type mockConditionalPassRepository struct {
	mu        sync.Mutex
	passes    map[string]*secondary.ConditionalPassRecord
	blocks    map[string]*secondary.CategoryBlockRecord
	nextID    int
	applyErr  error
	applied   []secondary.ExpiryMutations
	regranted []string
}

func newMockConditionalPassRepository() *mockConditionalPassRepository {
	return &mockConditionalPassRepository{
		passes: make(map[string]*secondary.ConditionalPassRecord),
		blocks: make(map[string]*secondary.CategoryBlockRecord),
		nextID: 1,
	}
}

func (m *mockConditionalPassRepository) Create(ctx context.Context, record *secondary.ConditionalPassRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.passes[record.ID]; ok {
		return fmt.Errorf("conditional pass %s already exists", record.ID)
	}
	for _, p := range m.passes {
		if p.Category == record.Category && p.OriginalSource == record.OriginalSource {
			return fmt.Errorf("UNIQUE constraint failed: %s/%s", record.Category, record.OriginalSource)
		}
	}
	cp := *record
	m.passes[record.ID] = &cp
	return nil
}

func (m *mockConditionalPassRepository) GetByID(ctx context.Context, id string) (*secondary.ConditionalPassRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passes[id]
	if !ok {
		return nil, fmt.Errorf("conditional pass %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockConditionalPassRepository) GetBySource(ctx context.Context, category, originalSource string) (*secondary.ConditionalPassRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.passes {
		if p.Category == category && p.OriginalSource == originalSource {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockConditionalPassRepository) FindByURL(ctx context.Context, url string) ([]*secondary.ConditionalPassRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.ConditionalPassRecord
	for _, p := range m.sorted() {
		if p.OriginalSource == url || p.AlternativeSource == url {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *mockConditionalPassRepository) List(ctx context.Context, filters secondary.ConditionalPassFilters) ([]*secondary.ConditionalPassRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.ConditionalPassRecord
	for _, p := range m.sorted() {
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		if filters.Category != "" && p.Category != filters.Category {
			continue
		}
		if filters.Unresolved && p.Resolved {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	return result, nil
}

func (m *mockConditionalPassRepository) sorted() []*secondary.ConditionalPassRecord {
	out := make([]*secondary.ConditionalPassRecord, 0, len(m.passes))
	for _, p := range m.passes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *mockConditionalPassRepository) Regrant(ctx context.Context, record *secondary.ConditionalPassRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.passes {
		if p.Category == record.Category && p.OriginalSource == record.OriginalSource {
			cp := *record
			cp.ID = id
			cp.Resolved = false
			cp.ResolvedAt = ""
			cp.LastWarnedOn = ""
			m.passes[id] = &cp
			m.regranted = append(m.regranted, id)
			return nil
		}
	}
	return fmt.Errorf("conditional pass for %s/%s not found", record.Category, record.OriginalSource)
}

func (m *mockConditionalPassRepository) GetNextID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return fmt.Sprintf("CP-%03d", id), nil
}

func (m *mockConditionalPassRepository) ListBlocks(ctx context.Context) ([]*secondary.CategoryBlockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.CategoryBlockRecord
	for _, b := range m.blocks {
		cp := *b
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Category < result[j].Category })
	return result, nil
}

func (m *mockConditionalPassRepository) GetBlock(ctx context.Context, category string) (*secondary.CategoryBlockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[category]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *mockConditionalPassRepository) ApplyMutations(ctx context.Context, mut secondary.ExpiryMutations) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	for _, r := range mut.Resolve {
		if _, ok := m.passes[r.PassID]; !ok {
			return fmt.Errorf("conditional pass %s not found", r.PassID)
		}
	}

	for _, w := range mut.MarkWarned {
		if p, ok := m.passes[w.PassID]; ok {
			if p.Status == "ACTIVE" {
				p.Status = "WARNING"
			}
			p.LastWarnedOn = w.Day
		}
	}
	for _, id := range mut.Expire {
		if p, ok := m.passes[id]; ok && p.Status != "RESOLVED" {
			p.Status = "EXPIRED"
		}
	}
	for _, r := range mut.Resolve {
		p := m.passes[r.PassID]
		p.Status = r.Status
		p.Resolved = true
		p.ResolvedAt = r.ResolvedAt
	}
	for _, b := range mut.CreateBlocks {
		if _, ok := m.blocks[b.Category]; !ok {
			cp := *b
			m.blocks[b.Category] = &cp
		}
	}
	for _, category := range mut.RemoveBlocks {
		delete(m.blocks, category)
	}
	m.applied = append(m.applied, mut)
	return nil
}

func (m *mockConditionalPassRepository) put(p *secondary.ConditionalPassRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes[p.ID] = p
}

func (m *mockConditionalPassRepository) block(category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[category] = &secondary.CategoryBlockRecord{
		Category:  category,
		Reason:    "conditional pass expired without resolution",
		BlockedAt: "2026-03-01T00:00:00Z",
		Scope:     "NEW_ADMISSIONS_ONLY",
	}
}

// ============================================================================
// Verification log, review queue, decision log
// ============================================================================

// Ensure mockVerificationLogRepository implements the interface
var _ secondary.VerificationLogRepository = (*mockVerificationLogRepository)(nil)

type mockVerificationLogRepository struct {
	mu      sync.Mutex
	entries map[string]*secondary.VerificationLogRecord
}

func newMockVerificationLogRepository() *mockVerificationLogRepository {
	return &mockVerificationLogRepository{entries: make(map[string]*secondary.VerificationLogRecord)}
}

func (m *mockVerificationLogRepository) Record(ctx context.Context, entry *secondary.VerificationLogRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entry.Category + "|" + entry.Day
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	cp := *entry
	m.entries[key] = &cp
	return true, nil
}

func (m *mockVerificationLogRepository) Get(ctx context.Context, category, day string) (*secondary.VerificationLogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[category+"|"+day]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *mockVerificationLogRepository) List(ctx context.Context, filters secondary.VerificationLogFilters) ([]*secondary.VerificationLogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.VerificationLogRecord
	for _, e := range m.entries {
		if filters.Category != "" && e.Category != filters.Category {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Day != result[j].Day {
			return result[i].Day > result[j].Day
		}
		return result[i].Category < result[j].Category
	})
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

// Ensure mockReviewQueueRepository implements the interface
var _ secondary.ReviewQueueRepository = (*mockReviewQueueRepository)(nil)

type mockReviewQueueRepository struct {
	mu      sync.Mutex
	entries []*secondary.ReviewQueueRecord
}

func newMockReviewQueueRepository() *mockReviewQueueRepository {
	return &mockReviewQueueRepository{}
}

func (m *mockReviewQueueRepository) Create(ctx context.Context, entry *secondary.ReviewQueueRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockReviewQueueRepository) GetByID(ctx context.Context, id string) (*secondary.ReviewQueueRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("review entry %s not found", id)
}

func (m *mockReviewQueueRepository) HasOpen(ctx context.Context, category, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Category == category && e.URL == url && !e.Resolved {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockReviewQueueRepository) List(ctx context.Context, filters secondary.ReviewQueueFilters) ([]*secondary.ReviewQueueRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.ReviewQueueRecord
	for _, e := range m.entries {
		if filters.Category != "" && e.Category != filters.Category {
			continue
		}
		if filters.OpenOnly && e.Resolved {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	return result, nil
}

func (m *mockReviewQueueRepository) Resolve(ctx context.Context, id, note, resolvedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id && !e.Resolved {
			e.Resolved = true
			e.ResolutionNote = note
			e.ResolvedAt = resolvedAt
			return nil
		}
	}
	return fmt.Errorf("open review entry %s not found", id)
}

func (m *mockReviewQueueRepository) open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if !e.Resolved {
			n++
		}
	}
	return n
}

// Ensure mockDecisionLogRepository implements the interface
var _ secondary.DecisionLogRepository = (*mockDecisionLogRepository)(nil)

type mockDecisionLogRepository struct {
	mu        sync.Mutex
	decisions []*secondary.GateDecisionRecord
	createErr error
}

func newMockDecisionLogRepository() *mockDecisionLogRepository {
	return &mockDecisionLogRepository{}
}

func (m *mockDecisionLogRepository) Create(ctx context.Context, decision *secondary.GateDecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *decision
	m.decisions = append(m.decisions, &cp)
	return nil
}

func (m *mockDecisionLogRepository) ListByItem(ctx context.Context, itemID string, limit int) ([]*secondary.GateDecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.GateDecisionRecord
	for i := len(m.decisions) - 1; i >= 0; i-- {
		if m.decisions[i].ItemID == itemID {
			result = append(result, m.decisions[i])
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ============================================================================
// Notifier and URL checker
// ============================================================================

// Ensure mockNotifier implements the interface
var _ secondary.Notifier = (*mockNotifier)(nil)

type notice struct {
	message  string
	severity string
}

type mockNotifier struct {
	mu      sync.Mutex
	notices []notice
	err     error
}

func (m *mockNotifier) Notify(ctx context.Context, message, severity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, notice{message: message, severity: severity})
	return m.err
}

func (m *mockNotifier) count(severity string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, nt := range m.notices {
		if nt.severity == severity {
			n++
		}
	}
	return n
}

// Ensure mockURLChecker implements the interface
var _ secondary.URLChecker = (*mockURLChecker)(nil)

// mockURLChecker returns scripted statuses per URL. The last scripted status
// repeats once the script runs out; unknown URLs pass.
type mockURLChecker struct {
	mu      sync.Mutex
	scripts map[string][]string
	calls   map[string]int
}

func newMockURLChecker() *mockURLChecker {
	return &mockURLChecker{
		scripts: make(map[string][]string),
		calls:   make(map[string]int),
	}
}

func (m *mockURLChecker) script(url string, statuses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[url] = statuses
}

func (m *mockURLChecker) Check(ctx context.Context, url string) secondary.URLCheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls[url]
	m.calls[url] = n + 1

	status := "PASS"
	if s := m.scripts[url]; len(s) > 0 {
		if n >= len(s) {
			n = len(s) - 1
		}
		status = s[n]
	}
	return secondary.URLCheckResult{Status: status, FinalURL: url, Detail: "scripted " + status}
}

func (m *mockURLChecker) callCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

var errBoom = errors.New("boom")

// ============================================================================
// Service harness
// ============================================================================

type harness struct {
	content   *mockContentRepository
	passes    *mockConditionalPassRepository
	logs      *mockVerificationLogRepository
	reviews   *mockReviewQueueRepository
	decisions *mockDecisionLogRepository
	notifier  *mockNotifier
	checker   *mockURLChecker
	lock      *BlockLock
	verifier  *SourceVerifier
	gate      *GateServiceImpl
	expiry    *ExpiryServiceImpl
	trust     *SourceTrustServiceImpl
	items     *ContentServiceImpl
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	h := &harness{
		content:   newMockContentRepository(),
		passes:    newMockConditionalPassRepository(),
		logs:      newMockVerificationLogRepository(),
		reviews:   newMockReviewQueueRepository(),
		decisions: newMockDecisionLogRepository(),
		notifier:  &mockNotifier{},
		checker:   newMockURLChecker(),
		lock:      NewBlockLock(),
	}
	reg := testRegistry(t)
	clock := clockAt(now)

	retry := NewRetryController(h.notifier, nil, nil)
	h.verifier = NewSourceVerifier(SourceVerifierConfig{
		PassRepo:   h.passes,
		LogRepo:    h.logs,
		ReviewRepo: h.reviews,
		Checker:    h.checker,
		Retry:      retry,
		Registry:   reg,
		MaxRetries: DefaultMaxRetries,
		Now:        clock,
	})
	h.gate = NewGateService(GateServiceConfig{
		ContentRepo:  h.content,
		PassRepo:     h.passes,
		DecisionRepo: h.decisions,
		Verifier:     h.verifier,
		Registry:     reg,
		Lock:         h.lock,
		Options: GateOptions{
			Platforms: []content.Platform{content.PlatformThreads},
			Assets:    content.AssetRequirements{MinCount: 2, MinWidth: 1024, MinHeight: 1024},
		},
		Now: clock,
	})
	h.expiry = NewExpiryService(ExpiryServiceConfig{
		PassRepo:   h.passes,
		ReviewRepo: h.reviews,
		Executor:   NewEffectExecutor(h.passes, h.notifier, nil),
		Verifier:   h.verifier,
		Lock:       h.lock,
		Now:        clock,
	})
	h.trust = NewSourceTrustService(SourceTrustServiceConfig{
		ContentRepo: h.content,
		PassRepo:    h.passes,
		LogRepo:     h.logs,
		ReviewRepo:  h.reviews,
		Verifier:    h.verifier,
		Lock:        h.lock,
		Now:         clock,
	})
	h.items = NewContentService(h.content, h.decisions, h.lock, nil)
	h.items.now = clock
	return h
}

const (
	vetURL  = "https://www.aspca.org/pet-care/grapes"
	blogURL = "https://blog.example.com/grapes"
)

// grapesItem is a FORBIDDEN item that passes every structural gate. Its
// claims match the grapes keyword table on all three facets.
func grapesItem(id, stage string) *secondary.ContentItemRecord {
	return &secondary.ContentItemRecord{
		ID:            id,
		Stage:         stage,
		SafetyClass:   "FORBIDDEN",
		Category:      "grapes",
		Provenance:    "ORIGINAL",
		ClaimNames:    []string{"grapes", "raisins"},
		ClaimSymptoms: []string{"vomiting", "acute kidney injury"},
		ClaimSeverity: "severe",
		Revision:      1,
		CreatedAt:     "2026-03-01T09:00:00Z",
		UpdatedAt:     "2026-03-01T09:00:00Z",
		Captions: map[string]string{
			"THREADS": "Never feed grapes to your dog, not even one. #canmypeteat",
		},
		Assets: []secondary.ContentAssetRecord{
			{Kind: "COVER", Path: id + "/cover.png", Width: 1080, Height: 1350, Bytes: 400000},
			{Kind: "BODY", Path: id + "/body_01.png", Width: 1080, Height: 1350, Bytes: 380000},
		},
		GenerationMeta: []secondary.GenerationMetaRecord{
			{AssetPath: id + "/body_01.png", RuleName: "body_v1", RuleHash: "abcdef0123456789", GeneratedAt: "2026-03-01T08:00:00Z"},
			{AssetPath: id + "/cover.png", RuleName: "cover_v2", RuleHash: "0123456789abcdef", GeneratedAt: "2026-03-01T08:00:00Z"},
		},
		Sources: []secondary.ContentSourceRecord{
			{URL: vetURL, Grade: "A"},
			{URL: blogURL, Grade: "C"},
		},
	}
}

func (h *harness) seed(t *testing.T, item *secondary.ContentItemRecord) {
	t.Helper()
	h.content.mu.Lock()
	defer h.content.mu.Unlock()
	h.content.items[item.ID] = item
}
