package jobs

import "sort"

// CaseIndex maps case numbers to the job ids that reference them, plus the
// set of case numbers ever seen. It is derived state, rebuilt from the store
// on load and mutated incrementally afterwards; the store remains the source
// of truth. Not safe for concurrent use on its own: the owning Store's lock
// guards it.
type CaseIndex struct {
	byCase map[string]map[string]struct{}
	seen   map[string]struct{}
}

func NewCaseIndex() *CaseIndex {
	return &CaseIndex{
		byCase: make(map[string]map[string]struct{}),
		seen:   make(map[string]struct{}),
	}
}

func (ix *CaseIndex) Add(caseNumber, jobID string) {
	if caseNumber == "" {
		return
	}
	ix.seen[caseNumber] = struct{}{}
	if jobID == "" {
		return
	}
	set, ok := ix.byCase[caseNumber]
	if !ok {
		set = make(map[string]struct{})
		ix.byCase[caseNumber] = set
	}
	set[jobID] = struct{}{}
}

// Remove drops one job id from a case. The case stays in the seen set.
func (ix *CaseIndex) Remove(caseNumber, jobID string) {
	if set, ok := ix.byCase[caseNumber]; ok {
		delete(set, jobID)
		if len(set) == 0 {
			delete(ix.byCase, caseNumber)
		}
	}
}

// Forget drops a case entirely, including from the seen set. Used by delete.
func (ix *CaseIndex) Forget(caseNumber string) {
	delete(ix.byCase, caseNumber)
	delete(ix.seen, caseNumber)
}

// Jobs returns the job ids referencing a case, sorted for determinism.
func (ix *CaseIndex) Jobs(caseNumber string) []string {
	set, ok := ix.byCase[caseNumber]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Seen reports whether the case number was ever indexed.
func (ix *CaseIndex) Seen(caseNumber string) bool {
	_, ok := ix.seen[caseNumber]
	return ok
}

// SeenCount returns how many case numbers are tracked.
func (ix *CaseIndex) SeenCount() int {
	return len(ix.seen)
}

// Clear empties the index.
func (ix *CaseIndex) Clear() {
	ix.byCase = make(map[string]map[string]struct{})
	ix.seen = make(map[string]struct{})
}
