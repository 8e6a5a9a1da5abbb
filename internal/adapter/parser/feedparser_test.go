package parser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"newsfeed/internal/domain"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *FeedParser {
	return NewFeedParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFeedParser_Parse_RSS(t *testing.T) {
	xmlData := `<?xml version="1.0" encoding="UTF-8"?>
	<rss version="2.0">
	<channel>
	<title>Test Feed</title>
	<link>https://example.com</link>
	<description>Test Description</description>
	<item>
	<title>Item 1</title>
	<link>https://example.com/item1</link>
	<description><![CDATA[<p>Item 1 <b>Description</b></p>]]></description>
	<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
	</item>
	<item>
	<guid isPermaLink="false">urn:item:2</guid>
	</item>
	<item>
	<title>Item 3</title>
	<link>https://example.com/item3</link>
	<description>Plain</description>
	<pubDate>hôm qua</pubDate>
	</item>
	</channel>
	</rss>`

	entries, err := newTestParser().Parse(context.Background(), strings.NewReader(xmlData))

	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "Item 1", entries[0].Title)
	assert.Equal(t, "https://example.com/item1", entries[0].Link)
	assert.Equal(t, "Item 1 Description", entries[0].Summary)
	assert.True(t, entries[0].HasDate)
	assert.Equal(t, "2006-01-02T15:04:05Z", entries[0].Published)
	assert.WithinDuration(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), entries[0].PublishedAt, time.Second)
	assert.Equal(t, 0, entries[0].Position)

	assert.Equal(t, domain.NoTitle, entries[1].Title)
	assert.Equal(t, "urn:item:2", entries[1].Link)
	assert.Equal(t, domain.NoSummary, entries[1].Summary)
	assert.Equal(t, domain.NoPublished, entries[1].Published)
	assert.False(t, entries[1].HasDate)
	assert.Equal(t, 1, entries[1].Position)

	assert.Equal(t, "hôm qua", entries[2].Published)
	assert.False(t, entries[2].HasDate)
	assert.Equal(t, 2, entries[2].Position)
}

func TestFeedParser_Parse_Atom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
	<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom Feed</title>
	<entry>
	<title>Atom entry</title>
	<link href="https://example.org/a"/>
	<id>urn:a</id>
	<updated>2024-05-01T08:30:00+07:00</updated>
	<summary>Short</summary>
	</entry>
	</feed>`

	entries, err := newTestParser().Parse(context.Background(), strings.NewReader(atomData))

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Atom entry", entries[0].Title)
	assert.Equal(t, "https://example.org/a", entries[0].Link)
	assert.Equal(t, "Short", entries[0].Summary)
	assert.True(t, entries[0].HasDate)
	assert.Equal(t, "2024-05-01T01:30:00Z", entries[0].Published)
}

func TestFeedParser_Parse_Malformed(t *testing.T) {
	entries, err := newTestParser().Parse(context.Background(), strings.NewReader("this is not a feed"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedFeed))
	assert.Nil(t, entries)
}

func TestFeedParser_Parse_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestParser().Parse(ctx, strings.NewReader("<rss></rss>"))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"Mon, 02 Jan 2006 15:04:05 -0700", time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC), true},
		{"Mon, 2 Jan 2006 15:04:05 +0700", time.Date(2006, 1, 2, 8, 4, 5, 0, time.UTC), true},
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), true},
		{" 2024-05-01 10:00:00 ", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a b", StripHTML("  a \n b "))
	assert.Equal(t, "Hello world & co", StripHTML("<div>Hello <i>world</i> &amp; co</div>"))
	assert.Equal(t, "", StripHTML(""))
}
