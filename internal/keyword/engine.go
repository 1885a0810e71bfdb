// Package keyword discovers and ranks search keywords for a product and
// composes the optimized description built from them. Everything here is
// deterministic: the same inputs always produce the same keyword list and
// the same description text.
package keyword

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"seowibe/rank-service/internal/model"
)

// MaxKeywords bounds the discovered list; deeper keywords carry no signal.
const MaxKeywords = 30

// Source weights. A keyword's score is the sum of the weights of every
// source that produced it, so a term confirmed by several sources outranks
// a term seen once in a strong source.
const (
	weightName           = 6
	weightNamePhrase     = 10
	weightDescription    = 3
	weightCompName       = 4
	weightCompDesc       = 2
	weightCompKeywords   = 3
	weightUserKeywords   = 8
	weightExtraKeywords  = 9
	snippetLimit         = 220
	suggestionsLimit     = 10
	summaryCompetitors   = 5
	summaryKeywordsEach  = 5
	descTopPhraseLimit   = 3
	descTopSingleLimit   = 2
)

var stopWords = map[string]struct{}{
	"бани": {}, "будь": {}, "даже": {}, "дома": {}, "доме": {},
	"пены": {}, "себе": {}, "того": {}, "труб": {}, "упор": {},
	"цвет": {}, "цена": {}, "купить": {}, "очень": {}, "этот": {},
	"вашем": {}, "ваших": {}, "когда": {}, "между": {}, "после": {},
	"перед": {}, "через": {}, "всего": {}, "похожий": {}, "товар": {},
	"категории": {}, "запросам": {}, "карточка": {}, "близким": {},
}

// Discover scores keyword candidates from every signal source and returns
// the top ranked terms. Ties break deterministically: higher score first,
// phrases before single words, longer before shorter, then lexicographic.
func Discover(name, description string, competitors []model.CompetitorCard, userKeywords, extraKeywords []string) []string {
	score := map[string]int{}
	boost := func(values []string, weight int) {
		for _, raw := range values {
			token := strings.ToLower(strings.TrimSpace(raw))
			if !validKeyword(token) {
				continue
			}
			score[token] += weight
		}
	}

	boost(extractTokens(name), weightName)
	boost(phraseCandidates(name), weightNamePhrase)
	boost(extractTokens(description), weightDescription)
	for _, comp := range competitors {
		boost(extractTokens(comp.Name), weightCompName)
		boost(extractTokens(comp.Description), weightCompDesc)
		boost(comp.Keywords, weightCompKeywords)
	}
	boost(userKeywords, weightUserKeywords)
	boost(extraKeywords, weightExtraKeywords)

	ranked := make([]string, 0, len(score))
	for kw := range score {
		ranked = append(ranked, kw)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if score[a] != score[b] {
			return score[a] > score[b]
		}
		aPhrase := strings.Contains(a, " ")
		bPhrase := strings.Contains(b, " ")
		if aPhrase != bPhrase {
			return aPhrase
		}
		if la, lb := len([]rune(a)), len([]rune(b)); la != lb {
			return la > lb
		}
		return a < b
	})
	if len(ranked) > MaxKeywords {
		ranked = ranked[:MaxKeywords]
	}
	return ranked
}

// BuildDescription composes the optimized listing text: a lead sentence, a
// compacted snippet of the current description, a use-case sentence driven
// by the strongest keywords, and fixed quality and compatibility closers.
func BuildDescription(name, currentDescription string, keywords []string, competitors []model.CompetitorCard) string {
	var phrases, singles []string
	for _, raw := range keywords {
		kw := strings.ToLower(strings.TrimSpace(raw))
		if !validKeyword(kw) {
			continue
		}
		if strings.Contains(kw, " ") {
			if len(phrases) < descTopPhraseLimit {
				phrases = append(phrases, kw)
			}
		} else if len(singles) < descTopSingleLimit {
			singles = append(singles, kw)
		}
	}

	chunks := []string{
		name + " подходит для надежного монтажа и стабильной работы системы.",
		specsSentence(currentDescription),
		useCaseSentence(phrases, singles),
		"Материал рассчитан на длительную эксплуатацию, аккуратную посадку и снижение теплопотерь.",
		"Перед покупкой проверьте диаметр, толщину и совместимость с вашим типом монтажа.",
	}
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.TrimSpace(strings.Join(out, " "))
}

// SummarizeCompetitors renders the competitor set into the short report
// stored on job snapshots.
func SummarizeCompetitors(competitors []model.CompetitorCard) string {
	if len(competitors) == 0 {
		return "Конкуренты не найдены"
	}
	if len(competitors) > summaryCompetitors {
		competitors = competitors[:summaryCompetitors]
	}
	lines := make([]string, 0, len(competitors))
	for _, comp := range competitors {
		keys := comp.Keywords
		if len(keys) > summaryKeywordsEach {
			keys = keys[:summaryKeywordsEach]
		}
		lines = append(lines, fmt.Sprintf("#%d: %s | ключи: %s", comp.Position, comp.Name, strings.Join(keys, ", ")))
	}
	return strings.Join(lines, "\n")
}

// PreferredKeyword derives the canonical search phrase from a product name:
// a known category phrase when the name hits one, otherwise the first two
// meaningful words.
func PreferredKeyword(name string) string {
	low := strings.ToLower(name)
	switch {
	case strings.Contains(low, "утепл") && strings.Contains(low, "труб"):
		return "утеплитель для труб"
	case strings.Contains(low, "дымоход") && strings.Contains(low, "труб"):
		return "труба дымохода"
	case strings.Contains(low, "колено") && strings.Contains(low, "дымоход"):
		return "колено дымохода"
	}
	cleaned := strings.NewReplacer("/", " ", "-", " ").Replace(low)
	var words []string
	for _, w := range strings.Fields(cleaned) {
		if len([]rune(w)) >= 4 {
			words = append(words, w)
		}
	}
	switch {
	case len(words) >= 2:
		return words[0] + " " + words[1]
	case len(words) == 1:
		return words[0]
	}
	return ""
}

// Suggestions returns the short keyword list shown to sellers: the
// preferred phrase first, then discovered keywords, deduplicated.
func Suggestions(name, description string, competitors []model.CompetitorCard, userKeywords []string) []string {
	ranked := make([]string, 0, suggestionsLimit)
	if primary := PreferredKeyword(name); primary != "" {
		ranked = append(ranked, primary)
	}
	ranked = append(ranked, Discover(name, description, competitors, userKeywords, nil)...)

	seen := make(map[string]struct{}, len(ranked))
	out := make([]string, 0, suggestionsLimit)
	for _, kw := range ranked {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		low := strings.ToLower(kw)
		if _, dup := seen[low]; dup {
			continue
		}
		seen[low] = struct{}{}
		out = append(out, kw)
		if len(out) == suggestionsLimit {
			break
		}
	}
	return out
}

func specsSentence(currentDescription string) string {
	raw := strings.Join(strings.Fields(strings.ReplaceAll(currentDescription, "\n", " ")), " ")
	if raw == "" {
		return ""
	}
	runes := []rune(raw)
	if len(runes) > snippetLimit {
		runes = runes[:snippetLimit]
	}
	snippet := strings.TrimRight(string(runes), ".,;: ")
	return "Основные характеристики: " + snippet + "."
}

func useCaseSentence(phrases, singles []string) string {
	if len(phrases) > 0 {
		return "Подходит для задач: " + strings.Join(phrases, ", ") + "."
	}
	if len(singles) > 0 {
		return "Подходит для работ, где важны: " + strings.Join(singles, ", ") + "."
	}
	return "Подходит для дома, бани и хозяйственных помещений."
}

// extractTokens splits text into candidate single-word keywords, preserving
// first-seen order.
func extractTokens(text string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, part := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(part, ".,!?:;()\"'[]{}")
		if !validKeyword(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

func validKeyword(value string) bool {
	token := strings.Trim(strings.ToLower(strings.TrimSpace(value)), ".,!?:;()\"'[]{}")
	if len([]rune(token)) < 4 {
		return false
	}
	if _, stop := stopWords[token]; stop {
		return false
	}
	digitsOnly := true
	hasAlnum := false
	for _, r := range token {
		if !unicode.IsDigit(r) {
			digitsOnly = false
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasAlnum = true
		}
	}
	return !digitsOnly && hasAlnum
}

// phraseCandidates maps a product name onto the multi-word queries buyers
// actually type for its category.
func phraseCandidates(name string) []string {
	low := strings.ToLower(name)
	var out []string
	if strings.Contains(low, "утепл") && strings.Contains(low, "труб") {
		out = append(out, "утеплитель для труб")
	}
	if strings.Contains(low, "дымоход") && strings.Contains(low, "труб") {
		out = append(out, "труба для дымохода")
	}
	if strings.Contains(low, "колено") && strings.Contains(low, "дымоход") {
		out = append(out, "колено дымохода")
	}
	return out
}
