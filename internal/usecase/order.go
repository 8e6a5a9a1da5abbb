package usecase

import (
	"cmp"
	"newsfeed/internal/domain"
	"slices"
	"time"
)

// orderKey задает итоговый порядок: сначала записи с разобранной датой от новых к старым,
// затем записи с неразобранной датой по исходной строке в обратном порядке,
// при равенстве - по порядку ленты в конфигурации и записи в ленте.
type orderKey struct {
	hasDate  bool
	at       time.Time
	raw      string
	feed     int
	position int
}

func (k orderKey) compare(o orderKey) int {
	if k.hasDate != o.hasDate {
		if k.hasDate {
			return -1
		}
		return 1
	}
	if k.hasDate {
		if c := o.at.Compare(k.at); c != 0 {
			return c
		}
	} else if c := cmp.Compare(o.raw, k.raw); c != 0 {
		return c
	}
	if c := cmp.Compare(k.feed, o.feed); c != 0 {
		return c
	}
	return cmp.Compare(k.position, o.position)
}

func entryKey(e domain.FeedEntry) orderKey {
	return orderKey{hasDate: e.HasDate, at: e.PublishedAt, raw: e.Published, feed: e.FeedIndex, position: e.Position}
}

func articleKey(a domain.Article) orderKey {
	return orderKey{hasDate: a.HasDate, at: a.PublishedAt, raw: a.Published, feed: a.FeedIndex, position: a.Position}
}

// SortArticles упорядочивает статьи по дате публикации, от новых к старым.
func SortArticles(articles []domain.Article) {
	slices.SortStableFunc(articles, func(a, b domain.Article) int {
		return articleKey(a).compare(articleKey(b))
	})
}

func sortEntries(entries []sourcedEntry) {
	slices.SortStableFunc(entries, func(a, b sourcedEntry) int {
		return entryKey(a.entry).compare(entryKey(b.entry))
	})
}
