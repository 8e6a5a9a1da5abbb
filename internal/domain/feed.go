package domain

import "time"

// Плейсхолдеры для отсутствующих полей записи ленты.
const (
	NoTitle     = "No title"
	NoLink      = "N/A"
	NoSummary   = "No summary"
	NoPublished = "N/A"
)

// FeedSource описывает одну настроенную RSS-ленту: логическое имя и URL.
// Создается при старте приложения и дальше не меняется.
type FeedSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FeedEntry представляет отдельную запись RSS/Atom-ленты после нормализации.
// Все строковые поля заполнены: отсутствующие значения заменены плейсхолдерами.
type FeedEntry struct {
	Title   string
	Link    string
	Summary string
	// Published содержит дату в RFC3339 (UTC), если ее удалось разобрать,
	// иначе исходную строку из ленты или NoPublished.
	Published string
	// PublishedAt заполнено только когда HasDate == true.
	PublishedAt time.Time
	HasDate     bool
	// FeedIndex и Position задают порядок ленты в конфигурации и записи в ленте.
	FeedIndex int
	Position  int
}

// Chunk - фрагмент текста статьи ограниченного размера.
type Chunk struct {
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	ArticleID string `json:"article_id"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	Link      string `json:"link"`
	Published string `json:"published"`
}

// Article - итоговая запись агрегатора: метаданные записи ленты, полный текст и его фрагменты.
// После создания не изменяется.
type Article struct {
	ID          string
	Title       string
	Link        string
	Summary     string
	Published   string
	PublishedAt time.Time
	HasDate     bool
	Source      string
	Content     string
	Chunks      []Chunk
	WordCount   int
	FeedIndex   int
	Position    int
}

// ChunkTexts возвращает тексты фрагментов по порядку. Никогда не возвращает nil.
func (a Article) ChunkTexts() []string {
	out := make([]string, 0, len(a.Chunks))
	for _, c := range a.Chunks {
		out = append(out, c.Text)
	}
	return out
}

// NewsResult - ответ сервиса новостей.
type NewsResult struct {
	TotalArticles int
	Articles      []Article
	Timestamp     time.Time
}
