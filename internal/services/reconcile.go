package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	dataagg "github.com/yungbote/catalog-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
	"github.com/yungbote/catalog-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-backend/internal/observability"
	"github.com/yungbote/catalog-backend/internal/platform/logger"
)

type ReconcileMode string

const (
	ReconcileReport ReconcileMode = "report"
	ReconcileRepair ReconcileMode = "repair"
)

func ParseReconcileMode(raw string) (ReconcileMode, error) {
	switch ReconcileMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ReconcileReport:
		return ReconcileReport, nil
	case ReconcileRepair:
		return ReconcileRepair, nil
	default:
		return "", fmt.Errorf("unknown reconcile mode %q (want report or repair)", raw)
	}
}

// ReconcilePolicy decides what a sweep may change. Report mode changes nothing.
type ReconcilePolicy struct {
	Mode ReconcileMode
	// Dedupe collapses repeated entries for one item in a category.
	Dedupe bool
	// PruneDangling drops forward references to deleted items and clears
	// item references to deleted categories.
	PruneDangling bool
}

func DefaultReconcilePolicy() ReconcilePolicy {
	return ReconcilePolicy{Mode: ReconcileReport, Dedupe: true}
}

type FindingKind string

const (
	FindingDanglingForward FindingKind = "dangling_forward"
	FindingDanglingBack    FindingKind = "dangling_back"
	FindingDuplicate       FindingKind = "duplicate"
)

// Reasons a finding was raised.
const (
	ReasonItemMissing     = "item_missing"
	ReasonUnowned         = "item_unowned"
	ReasonOwnedElsewhere  = "item_owned_elsewhere"
	ReasonCategoryMissing = "category_missing"
	ReasonNotListed       = "not_listed"
	ReasonDuplicate       = "duplicate_entry"
)

// Repair actions. An empty action means the policy leaves the finding alone.
const (
	ActionRemoveReference = "remove_reference"
	ActionAppendReference = "append_reference"
	ActionSetCategory     = "set_category"
	ActionClearCategory   = "clear_category"
	ActionDedupe          = "dedupe"
	ActionNone            = "none"
)

type Finding struct {
	Kind       FindingKind `json:"kind"`
	Reason     string      `json:"reason"`
	CategoryID string      `json:"category_id"`
	ItemID     string      `json:"item_id"`
	Action     string      `json:"action,omitempty"`
	Repaired   bool        `json:"repaired"`
	Error      string      `json:"error,omitempty"`
}

type SweepReport struct {
	Mode       ReconcileMode `json:"mode"`
	Categories int           `json:"categories"`
	Items      int           `json:"items"`
	Findings   []Finding     `json:"findings"`
	Repaired   int           `json:"repaired"`
	Failed     int           `json:"failed"`
	DurationMS int64         `json:"duration_ms"`
}

type RepairOutcome struct {
	ID         string `json:"id"`
	ItemID     string `json:"item_id"`
	CategoryID string `json:"category_id"`
	Action     string `json:"action,omitempty"`
	Resolved   bool   `json:"resolved"`
	Error      string `json:"error,omitempty"`
}

type RepairReport struct {
	Processed int             `json:"processed"`
	Resolved  int             `json:"resolved"`
	Failed    int             `json:"failed"`
	Outcomes  []RepairOutcome `json:"outcomes"`
}

type ReconcileService interface {
	// Sweep scans both collections. An empty mode uses the configured one.
	Sweep(ctx context.Context, mode ReconcileMode) (SweepReport, error)
	// RepairPending replays up to limit ledger entries, touching only the
	// recorded pairs.
	RepairPending(ctx context.Context, limit int) (RepairReport, error)
	Pending(ctx context.Context, limit int) ([]domainagg.PartialLinkRecord, error)
	Policy() ReconcilePolicy
}

type reconcileService struct {
	log        *logger.Logger
	categories catalog.CategoryStore
	items      catalog.ItemStore
	ledger     Ledger
	mirror     *Mirror
	policy     ReconcilePolicy
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewReconcileService(
	baseLog *logger.Logger,
	categories catalog.CategoryStore,
	items catalog.ItemStore,
	ledger Ledger,
	mirror *Mirror,
	policy ReconcilePolicy,
	metrics *observability.Metrics,
) ReconcileService {
	if ledger == nil {
		ledger = NewNoneLedger()
	}
	if policy.Mode == "" {
		policy.Mode = ReconcileReport
	}
	return &reconcileService{
		log:        baseLog.With("service", "ReconcileService"),
		categories: categories,
		items:      items,
		ledger:     ledger,
		mirror:     mirror,
		policy:     policy,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (s *reconcileService) Policy() ReconcilePolicy { return s.policy }

func (s *reconcileService) Sweep(ctx context.Context, mode ReconcileMode) (SweepReport, error) {
	start := s.now()
	if mode == "" {
		mode = s.policy.Mode
	}
	report := SweepReport{Mode: mode, Findings: []Finding{}}

	var (
		cats  []catalog.Category
		items []catalog.Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cats, err = s.categories.FindAll(gctx)
		return dataagg.MapError("reconcile.load_categories", err)
	})
	g.Go(func() error {
		var err error
		items, err = s.items.FindAll(gctx)
		return dataagg.MapError("reconcile.load_items", err)
	})
	if err := g.Wait(); err != nil {
		s.metrics.ObserveReconcile("sweep", string(mode), "error", s.now().Sub(start))
		return report, err
	}
	report.Categories = len(cats)
	report.Items = len(items)

	report.Findings = planFindings(cats, items, s.policy)
	counts := map[FindingKind]int{}
	for _, f := range report.Findings {
		counts[f.Kind]++
	}
	for kind, n := range counts {
		s.metrics.AddReconcileFindings(string(kind), n)
	}

	if mode == ReconcileRepair {
		s.applyRepairs(ctx, report.Findings)
		for _, f := range report.Findings {
			switch {
			case f.Action == "":
			case f.Repaired:
				report.Repaired++
			default:
				report.Failed++
			}
		}
	}

	dur := s.now().Sub(start)
	report.DurationMS = dur.Milliseconds()
	status := "ok"
	if report.Failed > 0 {
		status = "partial"
	}
	s.metrics.ObserveReconcile("sweep", string(mode), status, dur)
	s.log.Info("reconcile sweep finished",
		"mode", string(mode),
		"categories", report.Categories,
		"items", report.Items,
		"findings", len(report.Findings),
		"repaired", report.Repaired,
		"failed", report.Failed,
	)
	return report, nil
}

// planFindings is pure: it inspects snapshots of both collections and
// annotates each finding with the repair the policy allows.
func planFindings(cats []catalog.Category, items []catalog.Item, policy ReconcilePolicy) []Finding {
	sort.Slice(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	catByID := make(map[string]catalog.Category, len(cats))
	for _, c := range cats {
		catByID[c.ID] = c
	}
	itemByID := make(map[string]catalog.Item, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
	}
	// The first category (by id) listing an unowned item adopts it.
	adopter := map[string]string{}
	for _, c := range cats {
		for _, ref := range c.Items {
			id := ref.TargetID()
			if _, ok := adopter[id]; !ok {
				adopter[id] = c.ID
			}
		}
	}

	out := []Finding{}
	for _, c := range cats {
		seen := map[string]bool{}
		for _, ref := range c.Items {
			id := ref.TargetID()
			if seen[id] {
				continue
			}
			seen[id] = true
			if c.CountItem(id) > 1 {
				f := Finding{Kind: FindingDuplicate, Reason: ReasonDuplicate, CategoryID: c.ID, ItemID: id}
				if policy.Dedupe {
					f.Action = ActionDedupe
				}
				out = append(out, f)
			}
			it, ok := itemByID[id]
			switch {
			case !ok:
				f := Finding{Kind: FindingDanglingForward, Reason: ReasonItemMissing, CategoryID: c.ID, ItemID: id}
				if policy.PruneDangling {
					f.Action = ActionRemoveReference
				}
				out = append(out, f)
			case it.BelongsTo(c.ID):
			case it.Category == nil:
				f := Finding{Kind: FindingDanglingForward, Reason: ReasonUnowned, CategoryID: c.ID, ItemID: id, Action: ActionRemoveReference}
				if adopter[id] == c.ID {
					f.Action = ActionSetCategory
				}
				out = append(out, f)
			default:
				out = append(out, Finding{Kind: FindingDanglingForward, Reason: ReasonOwnedElsewhere, CategoryID: c.ID, ItemID: id, Action: ActionRemoveReference})
			}
		}
	}
	for _, it := range items {
		if it.Category == nil {
			continue
		}
		cid := it.Category.TargetID()
		c, ok := catByID[cid]
		switch {
		case !ok:
			f := Finding{Kind: FindingDanglingBack, Reason: ReasonCategoryMissing, CategoryID: cid, ItemID: it.ID}
			if policy.PruneDangling {
				f.Action = ActionClearCategory
			}
			out = append(out, f)
		case !c.HasItem(it.ID):
			out = append(out, Finding{Kind: FindingDanglingBack, Reason: ReasonNotListed, CategoryID: cid, ItemID: it.ID, Action: ActionAppendReference})
		}
	}
	return out
}

type categoryEdit struct {
	dedupe   bool
	remove   []string
	add      []string
	findings []int
}

type itemEdit struct {
	setCategory   string
	clearCategory string
	findings      []int
}

// applyRepairs groups the findings per document and writes each document at
// most once, re-reading it first so the edit lands on the latest version.
func (s *reconcileService) applyRepairs(ctx context.Context, findings []Finding) {
	catEdits := map[string]*categoryEdit{}
	itemEdits := map[string]*itemEdit{}
	catEdit := func(id string) *categoryEdit {
		if e, ok := catEdits[id]; ok {
			return e
		}
		e := &categoryEdit{}
		catEdits[id] = e
		return e
	}
	itEdit := func(id string) *itemEdit {
		if e, ok := itemEdits[id]; ok {
			return e
		}
		e := &itemEdit{}
		itemEdits[id] = e
		return e
	}
	for i, f := range findings {
		switch f.Action {
		case ActionDedupe:
			e := catEdit(f.CategoryID)
			e.dedupe = true
			e.findings = append(e.findings, i)
		case ActionRemoveReference:
			e := catEdit(f.CategoryID)
			e.remove = append(e.remove, f.ItemID)
			e.findings = append(e.findings, i)
		case ActionAppendReference:
			e := catEdit(f.CategoryID)
			e.add = append(e.add, f.ItemID)
			e.findings = append(e.findings, i)
		case ActionSetCategory:
			e := itEdit(f.ItemID)
			e.setCategory = f.CategoryID
			e.findings = append(e.findings, i)
		case ActionClearCategory:
			e := itEdit(f.ItemID)
			e.clearCategory = f.CategoryID
			e.findings = append(e.findings, i)
		}
	}

	mark := func(idx []int, err error) {
		for _, i := range idx {
			if err != nil {
				findings[i].Error = err.Error()
				s.metrics.IncReconcileRepair(string(findings[i].Kind), "failed")
				continue
			}
			findings[i].Repaired = true
			s.metrics.IncReconcileRepair(string(findings[i].Kind), "ok")
		}
	}

	for _, id := range sortedEditKeys(catEdits) {
		e := catEdits[id]
		mark(e.findings, s.editCategory(ctx, id, func(c catalog.Category) (catalog.Category, bool) {
			changed := false
			if e.dedupe {
				var ch bool
				c, ch = c.Deduped()
				changed = changed || ch
			}
			for _, itemID := range e.remove {
				var ch bool
				c, ch = c.WithoutItem(itemID)
				changed = changed || ch
			}
			for _, itemID := range e.add {
				var ch bool
				c, ch = c.WithItem(itemID)
				changed = changed || ch
			}
			return c, changed
		}))
	}
	for _, id := range sortedEditKeys(itemEdits) {
		e := itemEdits[id]
		mark(e.findings, s.editItem(ctx, id, func(it catalog.Item) (catalog.Item, bool) {
			switch {
			case e.setCategory != "" && it.Category == nil:
				return it.WithCategory(e.setCategory), true
			case e.clearCategory != "" && it.BelongsTo(e.clearCategory):
				it.Category = nil
				return it, true
			}
			return it, false
		}))
	}
}

func sortedEditKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *reconcileService) editCategory(ctx context.Context, id string, fn func(catalog.Category) (catalog.Category, bool)) error {
	const op = "reconcile.edit_category"
	cur, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return dataagg.MapError(op, err)
	}
	next, changed := fn(cur)
	if !changed {
		return nil
	}
	if err := s.categories.Update(ctx, id, next); err != nil {
		return dataagg.MapError(op, err)
	}
	s.mirror.Sync(ctx, []catalog.Category{next}, nil)
	return nil
}

func (s *reconcileService) editItem(ctx context.Context, id string, fn func(catalog.Item) (catalog.Item, bool)) error {
	const op = "reconcile.edit_item"
	cur, err := s.items.GetByID(ctx, id)
	if err != nil {
		return dataagg.MapError(op, err)
	}
	next, changed := fn(cur)
	if !changed {
		return nil
	}
	if err := s.items.Update(ctx, id, next); err != nil {
		return dataagg.MapError(op, err)
	}
	s.mirror.Sync(ctx, nil, []catalog.Item{next})
	return nil
}

func (s *reconcileService) Pending(ctx context.Context, limit int) ([]domainagg.PartialLinkRecord, error) {
	recs, err := s.ledger.Pending(ctx, limit)
	if err != nil {
		return nil, dataagg.MapError("reconcile.pending", err)
	}
	if limit <= 0 {
		s.metrics.SetLedgerPending(len(recs))
	}
	if recs == nil {
		recs = []domainagg.PartialLinkRecord{}
	}
	return recs, nil
}

func (s *reconcileService) RepairPending(ctx context.Context, limit int) (RepairReport, error) {
	start := s.now()
	report := RepairReport{Outcomes: []RepairOutcome{}}
	recs, err := s.ledger.Pending(ctx, limit)
	if err != nil {
		s.metrics.ObserveReconcile("ledger", string(ReconcileRepair), "error", s.now().Sub(start))
		return report, dataagg.MapError("reconcile.repair_pending", err)
	}
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		out := RepairOutcome{ID: rec.ID, ItemID: rec.Link.ItemID, CategoryID: rec.Link.CategoryID}
		action, rerr := s.repairPair(ctx, rec.Link)
		out.Action = action
		if rerr == nil {
			rerr = s.ledger.Resolve(ctx, rec.ID)
		}
		report.Processed++
		if rerr != nil {
			out.Error = rerr.Error()
			report.Failed++
			s.metrics.IncReconcileRepair("ledger", "failed")
			rec.Attempts++
			rec.LastError = causeMessage(rerr)
			rec.UpdatedAt = s.now().UTC()
			if lerr := s.ledger.Record(ctx, rec); lerr != nil {
				s.log.Warn("ledger attempt not recorded", "ledger_id", rec.ID, "error", lerr)
			}
		} else {
			out.Resolved = true
			report.Resolved++
			s.metrics.IncReconcileRepair("ledger", "ok")
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	status := "ok"
	if report.Failed > 0 {
		status = "partial"
	}
	s.metrics.ObserveReconcile("ledger", string(ReconcileRepair), status, s.now().Sub(start))
	s.log.Info("partial link replay finished", "processed", report.Processed, "resolved", report.Resolved, "failed", report.Failed)
	return report, nil
}

// repairPair brings one recorded pair to a consistent state using the current
// documents: a surviving back-reference is completed, a forward reference
// whose item is gone or owned elsewhere is dropped, and a reference to a
// deleted category is cleared.
func (s *reconcileService) repairPair(ctx context.Context, p domainagg.PartialLink) (string, error) {
	item, itemOK, err := lookup(ctx, s.items, p.ItemID)
	if err != nil {
		return "", err
	}
	cat, catOK, err := lookup(ctx, s.categories, p.CategoryID)
	if err != nil {
		return "", err
	}
	switch {
	case !itemOK && !catOK:
		return ActionNone, nil
	case !itemOK:
		if !cat.HasItem(p.ItemID) {
			return ActionNone, nil
		}
		return ActionRemoveReference, s.editCategory(ctx, p.CategoryID, func(c catalog.Category) (catalog.Category, bool) {
			return c.WithoutItem(p.ItemID)
		})
	case !catOK:
		if !item.BelongsTo(p.CategoryID) {
			return ActionNone, nil
		}
		return ActionClearCategory, s.editItem(ctx, p.ItemID, func(it catalog.Item) (catalog.Item, bool) {
			if !it.BelongsTo(p.CategoryID) {
				return it, false
			}
			it.Category = nil
			return it, true
		})
	}

	listed := cat.HasItem(p.ItemID)
	belongs := item.BelongsTo(p.CategoryID)
	switch {
	case listed && belongs, !listed && !belongs:
		return ActionNone, nil
	case belongs:
		return ActionAppendReference, s.editCategory(ctx, p.CategoryID, func(c catalog.Category) (catalog.Category, bool) {
			return c.WithItem(p.ItemID)
		})
	case item.Category == nil:
		return ActionSetCategory, s.editItem(ctx, p.ItemID, func(it catalog.Item) (catalog.Item, bool) {
			if it.Category != nil {
				return it, false
			}
			return it.WithCategory(p.CategoryID), true
		})
	default:
		return ActionRemoveReference, s.editCategory(ctx, p.CategoryID, func(c catalog.Category) (catalog.Category, bool) {
			return c.WithoutItem(p.ItemID)
		})
	}
}

func lookup[T any](ctx context.Context, store catalog.Store[T], id string) (T, bool, error) {
	doc, err := store.GetByID(ctx, id)
	if err == nil {
		return doc, true, nil
	}
	mapped := dataagg.MapError("reconcile.lookup", err)
	if domainagg.IsCode(mapped, domainagg.CodeNotFound) {
		var zero T
		return zero, false, nil
	}
	return doc, false, mapped
}
