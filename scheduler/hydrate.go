package scheduler

// Hydrate queues a refresh for every subject whose cache entry is missing or
// no longer fresh, in list order, and returns how many new requests were
// queued. It is the explicit bulk entry point for a freshly rendered list:
// callers hand over the complete set of subjects once instead of inferring
// completeness from individual cache misses.
func (s *Scheduler) Hydrate(subjects []Subject) int {
	n := 0
	for _, subj := range subjects {
		key := subj.Key()
		if e, ok := s.cache.Get(key); ok && s.cache.IsFresh(e) {
			continue
		}
		if s.Request(key, subj, nil) {
			n++
		}
	}
	if n > 0 {
		s.log.Debug("hydrate queued refreshes", "subjects", len(subjects), "queued", n)
	}
	return n
}
