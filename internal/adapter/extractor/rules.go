package extractor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule - правило извлечения текста для одного издателя.
// Host сравнивается с именем хоста страницы как подстрока,
// Selectors - CSS-селекторы контейнера статьи в порядке проверки.
type Rule struct {
	Host      string   `yaml:"host"`
	Selectors []string `yaml:"selectors"`
}

// Matches сообщает, относится ли правило к хосту.
func (r Rule) Matches(host string) bool {
	return r.Host != "" && strings.Contains(strings.ToLower(host), strings.ToLower(r.Host))
}

// DefaultRules возвращает встроенные правила для известных издателей.
func DefaultRules() []Rule {
	return []Rule{
		{Host: "vietstock.vn", Selectors: []string{"#vst-content"}},
		{Host: "cafef.vn", Selectors: []string{".content-detail", "#mainContent"}},
		{Host: "vnexpress.net", Selectors: []string{"article.fck_detail"}},
	}
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules читает правила из YAML-файла вида:
//
//	rules:
//	  - host: example.com
//	    selectors: ["div.body", "#main"]
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	for i, rule := range file.Rules {
		if strings.TrimSpace(rule.Host) == "" {
			return nil, fmt.Errorf("rule %d in %s: host cannot be empty", i, path)
		}
		if len(rule.Selectors) == 0 {
			return nil, fmt.Errorf("rule %d (%s) in %s: no selectors", i, rule.Host, path)
		}
	}
	return file.Rules, nil
}
