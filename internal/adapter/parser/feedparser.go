package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"newsfeed/internal/domain"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// ErrMalformedFeed означает, что документ не удалось разобрать как RSS, Atom или JSON Feed.
var ErrMalformedFeed = errors.New("malformed feed")

// FeedParser разбирает документ ленты в нормализованные записи.
type FeedParser struct {
	log *slog.Logger
}

func NewFeedParser(log *slog.Logger) *FeedParser {
	return &FeedParser{
		log: log.With(slog.String("component", "parser")),
	}
}

// Parse реализует метод интерфейса usecase.Parser.
// Порядок записей сохраняется таким, каким он пришел из ленты.
// Поля записей заполнены: отсутствующие значения заменены плейсхолдерами domain.No*.
func (p *FeedParser) Parse(ctx context.Context, reader io.Reader) ([]domain.FeedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// gofeed.Parser хранит состояние разбора, поэтому создается на каждый вызов.
	feed, err := gofeed.NewParser().Parse(reader)
	if err != nil {
		p.log.Error(
			"Error decoding feed",
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	entries := make([]domain.FeedEntry, 0, len(feed.Items))
	for i, item := range feed.Items {
		if item == nil {
			continue
		}
		entry := toEntry(item)
		entry.Position = i
		if !entry.HasDate && entry.Published != domain.NoPublished {
			p.log.Debug(
				"could not parse item date, keeping raw value",
				slog.String("published", entry.Published),
				slog.String("item_title", entry.Title),
			)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toEntry(item *gofeed.Item) domain.FeedEntry {
	entry := domain.FeedEntry{
		Title:     strings.TrimSpace(item.Title),
		Link:      firstNonEmpty(item.Link, firstOf(item.Links), item.GUID),
		Summary:   StripHTML(item.Description),
		Published: domain.NoPublished,
	}
	if entry.Title == "" {
		entry.Title = domain.NoTitle
	}
	if entry.Link == "" {
		entry.Link = domain.NoLink
	}
	if entry.Summary == "" {
		entry.Summary = domain.NoSummary
	}

	switch {
	case item.PublishedParsed != nil:
		entry.PublishedAt, entry.HasDate = item.PublishedParsed.UTC(), true
	case item.UpdatedParsed != nil && strings.TrimSpace(item.Published) == "":
		entry.PublishedAt, entry.HasDate = item.UpdatedParsed.UTC(), true
	default:
		raw := firstNonEmpty(item.Published, item.Updated)
		if raw != "" {
			entry.Published = raw
			entry.PublishedAt, entry.HasDate = ParseDate(raw)
		}
	}
	if entry.HasDate {
		entry.Published = entry.PublishedAt.Format(time.RFC3339)
	}
	return entry
}

// dateLayouts - форматы дат, встречающиеся в лентах, в порядке проверки.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate пытается разобрать дату в одном из известных форматов.
// Возвращает время в UTC и true при успехе, иначе нулевое время и false.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// StripHTML возвращает текст фрагмента HTML со схлопнутыми пробелами.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
