package feed

// List accumulates pages into an append-only ordered sequence keyed by post
// id. A post seen on an earlier page is skipped when a later page repeats it.
type List struct {
	seen  map[string]bool
	Posts []Post
}

func NewList() *List {
	return &List{seen: make(map[string]bool)}
}

func (l *List) Append(items []Post) {
	for _, p := range items {
		if l.seen[p.ID] {
			continue
		}
		l.seen[p.ID] = true
		l.Posts = append(l.Posts, p)
	}
}

func (l *List) Len() int {
	return len(l.Posts)
}
