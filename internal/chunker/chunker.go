// Package chunker делит нормализованный текст статьи на фрагменты ограниченного размера
// по границам предложений.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Split делит text на фрагменты длиной не больше size символов (рун), не разрывая предложения.
//
// Пробельные символы предварительно схлопываются в один пробел. Предложение заканчивается
// на '.', '!' или '?', за которыми следует пробел; хвост без завершающего знака тоже считается
// предложением. Предложение длиннее size выдается отдельным фрагментом целиком.
//
// При overlap > 0 каждый следующий фрагмент начинается с последних overlap символов
// предыдущего. overlap ограничивается значением size-1, а затравка укорачивается, если
// вместе со следующим предложением не помещается в size.
//
// size <= 0 означает отсутствие ограничения: весь текст возвращается одним фрагментом.
func Split(text string, size, overlap int) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return []string{}
	}
	if size <= 0 {
		return []string{normalized}
	}
	if overlap >= size {
		overlap = size - 1
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []string
	var current string
	currentLen := 0
	for _, sentence := range Sentences(normalized) {
		sentenceLen := utf8.RuneCountInString(sentence)
		if current == "" {
			current, currentLen = sentence, sentenceLen
			continue
		}
		if currentLen+1+sentenceLen <= size {
			current += " " + sentence
			currentLen += 1 + sentenceLen
			continue
		}
		chunks = append(chunks, current)
		seed := overlapSeed(current, overlap, size-sentenceLen-1)
		if seed == "" {
			current, currentLen = sentence, sentenceLen
			continue
		}
		current = seed + " " + sentence
		currentLen = utf8.RuneCountInString(current)
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// Normalize схлопывает любые последовательности пробельных символов в один пробел
// и обрезает пробелы по краям.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Sentences делит нормализованный текст на предложения. Разделяющий пробел отбрасывается.
func Sentences(normalized string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(normalized); i++ {
		switch normalized[i] {
		case '.', '!', '?':
			if i+1 < len(normalized) && normalized[i+1] == ' ' {
				sentences = append(sentences, normalized[start:i+1])
				start = i + 2
				i++
			}
		}
	}
	if start < len(normalized) {
		sentences = append(sentences, normalized[start:])
	}
	return sentences
}

// overlapSeed возвращает последние min(overlap, room) символов закрытого фрагмента
// без ведущих пробелов.
func overlapSeed(closed string, overlap, room int) string {
	n := overlap
	if room < n {
		n = room
	}
	if n <= 0 {
		return ""
	}
	runes := []rune(closed)
	if n > len(runes) {
		n = len(runes)
	}
	return strings.TrimLeft(string(runes[len(runes)-n:]), " ")
}
