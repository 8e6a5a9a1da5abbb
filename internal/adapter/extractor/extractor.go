package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoContent означает, что ни одно правило не нашло текст статьи на странице.
// Это не сбой: Extract в этом случае возвращает пустую строку.
var ErrNoContent = errors.New("no article content found")

// noiseSelector перечисляет элементы, которые удаляются до извлечения текста.
const noiseSelector = "script, style, noscript, template, nav, header, footer, aside, iframe, form, svg"

// Fetcher загружает страницу по URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// ContentExtractor извлекает основной текст статьи со страницы издателя.
// Набор правил можно заменить на лету: каждое извлечение работает с одним снимком правил.
type ContentExtractor struct {
	fetcher  Fetcher
	log      *slog.Logger
	rules    atomic.Pointer[[]Rule]
	debounce time.Duration
}

// NewContentExtractor создает экстрактор. Если rules пуст, используются DefaultRules.
func NewContentExtractor(log *slog.Logger, fetcher Fetcher, rules []Rule) *ContentExtractor {
	e := &ContentExtractor{
		fetcher:  fetcher,
		log:      log.With(slog.String("component", "extractor")),
		debounce: 200 * time.Millisecond,
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	e.SetRules(rules)
	return e
}

// SetRules атомарно заменяет набор правил.
func (e *ContentExtractor) SetRules(rules []Rule) {
	snapshot := make([]Rule, len(rules))
	copy(snapshot, rules)
	e.rules.Store(&snapshot)
}

// Rules возвращает текущий снимок правил.
func (e *ContentExtractor) Rules() []Rule {
	return *e.rules.Load()
}

// Extract загружает страницу и возвращает текст статьи.
// Пустая строка означает, что текст не найден или страницу не удалось загрузить;
// причина записывается в лог, вызывающему ошибка не возвращается.
func (e *ContentExtractor) Extract(ctx context.Context, pageURL string) string {
	log := e.log.With(
		slog.String("op", "extractor.Extract"),
		slog.String("url", pageURL),
	)
	if u, err := url.Parse(pageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		log.Debug("Skipping non-http link")
		return ""
	}
	body, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		log.Warn("Failed to fetch article page", slog.Any("error", err))
		return ""
	}
	defer body.Close()

	text, err := e.ExtractFromHTML(pageURL, body)
	if err != nil {
		if errors.Is(err, ErrNoContent) {
			log.Info("No article content found")
		} else {
			log.Warn("Failed to extract article content", slog.Any("error", err))
		}
		return ""
	}
	log.Debug("Extracted article content", slog.Int("length", utf8.RuneCountInString(text)))
	return text
}

// ExtractFromHTML извлекает текст статьи из уже загруженного HTML.
// Порядок: первое правило, чей хост совпал и чей контейнер есть на странице,
// затем первый <article>, затем все абзацы <p>.
func (e *ContentExtractor) ExtractFromHTML(pageURL string, r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find(noiseSelector).Remove()

	var host string
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Hostname()
	}
	for _, rule := range e.Rules() {
		if !rule.Matches(host) {
			continue
		}
		for _, selector := range rule.Selectors {
			if text := blockText(doc.Find(selector).First()); text != "" {
				return text, nil
			}
		}
	}

	if text := blockText(doc.Find("article").First()); text != "" {
		return text, nil
	}
	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := blockText(s); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n"), nil
	}
	return "", ErrNoContent
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Blockquote: true, atom.Pre: true,
	atom.Table: true, atom.Tr: true, atom.Figure: true, atom.Figcaption: true,
}

// blockText возвращает текст выборки: блоки разделены пустой строкой, пробелы схлопнуты.
func blockText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeText(&b, n)
	}
	return collapseWhitespace(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		writeInline(b, n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			b.WriteByte('\n')
			return
		}
	}
	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		b.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteString("\n\n")
	}
}

// writeInline пишет текстовый узел, заменяя любые пробельные последовательности одним пробелом.
func writeInline(b *strings.Builder, data string) {
	if data == "" {
		return
	}
	first, _ := utf8.DecodeRuneInString(data)
	last, _ := utf8.DecodeLastRuneInString(data)
	text := strings.Join(strings.Fields(data), " ")
	if text == "" {
		b.WriteByte(' ')
		return
	}
	if unicode.IsSpace(first) {
		b.WriteByte(' ')
	}
	b.WriteString(text)
	if unicode.IsSpace(last) {
		b.WriteByte(' ')
	}
}

// collapseWhitespace схлопывает пробелы в строках и оставляет не больше одной пустой строки подряд.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
