package agent

// gapQueue holds pending research questions. The agent is the only
// writer, so no locking is needed. Search directives push to the
// front; reflection sub-questions and retried gaps push to the back.
type gapQueue struct {
	items []string
}

func newGapQueue(seed ...string) *gapQueue {
	q := &gapQueue{}
	for _, s := range seed {
		q.PushBack(s)
	}
	return q
}

// PushFront inserts a gap at the head of the queue.
func (q *gapQueue) PushFront(gap string) {
	if gap == "" {
		return
	}
	q.items = append([]string{gap}, q.items...)
}

// PushBack appends a gap at the tail of the queue.
func (q *gapQueue) PushBack(gap string) {
	if gap == "" {
		return
	}
	q.items = append(q.items, gap)
}

// PopFront removes and returns the next gap.
func (q *gapQueue) PopFront() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	gap := q.items[0]
	q.items = q.items[1:]
	return gap, true
}

// Len returns the number of pending gaps.
func (q *gapQueue) Len() int {
	return len(q.items)
}

// visitedSet tracks URLs whose extraction has been attempted, in
// insertion order. A URL is added at most once per run.
type visitedSet struct {
	seen  map[string]bool
	order []string
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[string]bool)}
}

// Add records the URL. Returns false if it was already present.
func (v *visitedSet) Add(url string) bool {
	if v.seen[url] {
		return false
	}
	v.seen[url] = true
	v.order = append(v.order, url)
	return true
}

// Contains reports whether the URL was already visited.
func (v *visitedSet) Contains(url string) bool {
	return v.seen[url]
}

// URLs returns visited URLs in insertion order.
func (v *visitedSet) URLs() []string {
	return v.order
}

// Len returns the number of visited URLs.
func (v *visitedSet) Len() int {
	return len(v.order)
}
