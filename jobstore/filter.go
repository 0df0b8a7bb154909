package jobstore

// Filter narrows a List call by status, type, and parent. Zero-value
// fields are treated as "don't filter on this dimension".
type Filter struct {
	Statuses []Status
	TypeName string

	// ParentID, if non-nil, restricts results to children of the named
	// parent. A pointer to the empty string matches only top-level jobs
	// (no parent).
	ParentID *string

	Limit  int
	Offset int
}

func (f Filter) matches(r *Record) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.TypeName != "" && r.TypeName != f.TypeName {
		return false
	}

	if f.ParentID != nil && r.ParentID != *f.ParentID {
		return false
	}

	return true
}

func (f Filter) paginate(records []*Record) []*Record {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return nil
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}
