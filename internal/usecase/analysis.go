package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"NewsPipeline/internal/ports"
)

// Analysis is what the generator knows about an item's topic.
type Analysis struct {
	Keywords []string
	Entities []string
	Category string
	// Heuristic is set when the text generator could not be used.
	Heuristic bool
}

var stopWords = toSet(
	// en
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had", "her", "was", "one", "our", "out",
	"has", "have", "his", "how", "its", "new", "now", "who", "did", "get", "may", "with", "this", "that", "from",
	"they", "will", "would", "there", "their", "what", "about", "which", "when", "were", "been", "into", "more",
	"after", "over", "than", "also", "said", "says",
	// de
	"der", "die", "das", "und", "den", "dem", "des", "ein", "eine", "einer", "eines", "einem", "einen", "ist",
	"sind", "war", "wird", "werden", "wurde", "mit", "von", "für", "auf", "aus", "bei", "nach", "nicht", "sich",
	"auch", "als", "wie", "noch", "nur", "zum", "zur", "über", "unter", "vor", "hat", "haben", "sie", "ihr",
	"sein", "seine", "dass", "oder", "aber", "mehr", "neue", "neuen", "neuer",
	// uk / ru
	"та", "що", "для", "про", "від", "при", "але", "або", "це", "як", "так", "вже", "його", "які", "який",
	"и", "в", "на", "не", "что", "это", "как", "по", "из", "за", "от", "или", "его", "уже",
)

var categoryLexicon = map[string][]string{
	"politik": {
		"regierung", "bundestag", "minister", "kanzler", "partei", "wahl", "koalition", "parlament", "politik",
		"government", "election", "parliament", "president", "policy", "senate", "уряд", "вибори", "парламент",
		"правительство", "выборы",
	},
	"wirtschaft": {
		"wirtschaft", "unternehmen", "börse", "inflation", "markt", "preise", "bank", "steuer", "euro",
		"economy", "market", "company", "stocks", "economic", "економіка", "экономика",
	},
	"sport": {
		"fußball", "bundesliga", "spiel", "tor", "meister", "trainer", "olympia", "verein",
		"football", "match", "league", "champion", "tournament", "coach", "матч", "футбол",
	},
	"kultur": {
		"kultur", "theater", "museum", "konzert", "film", "festival", "ausstellung", "musik",
		"culture", "concert", "exhibition", "music", "культура", "фестиваль",
	},
	"wissenschaft": {
		"studie", "forscher", "wissenschaft", "universität", "forschung",
		"study", "research", "scientists", "university", "science", "наука", "дослідження",
	},
	"technik": {
		"software", "internet", "digital", "technologie", "smartphone", "ki", "daten",
		"technology", "ai", "app", "startup", "cyber", "технології", "технологии",
	},
	"gesundheit": {
		"gesundheit", "krankenhaus", "ärzte", "patienten", "impfung", "klinik",
		"health", "hospital", "doctors", "patients", "vaccine", "здоров'я", "лікарня", "больница",
	},
	"lokales": {
		"stadt", "gemeinde", "bürgermeister", "stadtrat", "rathaus", "verkehr", "baustelle", "polizei",
		"city", "mayor", "council", "local", "місто", "город",
	},
}

// Categories lists the built-in category names in stable order.
func Categories() []string {
	out := make([]string, 0, len(categoryLexicon))
	for name := range categoryLexicon {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Tokenize lower-cases text and splits it on anything that is not a letter or
// digit. Tokens shorter than two runes and stop words are dropped.
func Tokenize(text string) []string {
	fields := words(text)
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ExtractKeywords returns up to limit tokens ordered by frequency, then first occurrence.
func ExtractKeywords(text string, limit int) []string {
	tokens := Tokenize(text)
	counts := map[string]int{}
	first := map[string]int{}
	for i, tok := range tokens {
		if len([]rune(tok)) < 3 {
			continue
		}
		if _, seen := first[tok]; !seen {
			first[tok] = i
		}
		counts[tok]++
	}

	keywords := make([]string, 0, len(counts))
	for tok := range counts {
		keywords = append(keywords, tok)
	}
	sort.Slice(keywords, func(i, j int) bool {
		a, b := keywords[i], keywords[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return first[a] < first[b]
	})
	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

// GuessCategory scores text against the category lexicon and returns the best
// match, or fallback when nothing matches.
func GuessCategory(text, fallback string) string {
	counts := map[string]int{}
	for _, tok := range Tokenize(text) {
		counts[tok]++
	}

	best, bestScore := fallback, 0
	for _, name := range Categories() {
		score := 0
		for _, word := range categoryLexicon[name] {
			score += counts[word]
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}

// Jaccard returns the token-set similarity of two texts in [0,1].
func Jaccard(a, b string) float64 {
	setA, setB := toSet(Tokenize(a)...), toSet(Tokenize(b)...)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// ContainsAny reports the first keyword found in text. Keywords of five or
// more runes also match as token prefixes so inflected forms count; shorter
// ones must match a whole token.
func ContainsAny(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	tokens := words(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				return kw, true
			}
			continue
		}
		prefix := len([]rune(kw)) >= 5
		for _, tok := range tokens {
			if tok == kw || (prefix && strings.HasPrefix(tok, kw)) {
				return kw, true
			}
		}
	}
	return "", false
}

type entitiesReply struct {
	Keywords []string `json:"keywords"`
	Entities []string `json:"entities"`
	Category string   `json:"category"`
}

// analyze asks the assistant for keywords and a category and falls back to
// local heuristics for whatever the assistant could not deliver.
func analyze(ctx context.Context, ai ports.Assistant, text, defaultCategory string) Analysis {
	var a Analysis
	if ai != nil {
		if res := ai.ExtractEntities(ctx, text); res.Success {
			var reply entitiesReply
			if err := json.Unmarshal([]byte(extractJSON(res.Content)), &reply); err == nil {
				a.Keywords = cleanList(reply.Keywords)
				a.Entities = cleanList(reply.Entities)
				a.Category = strings.ToLower(strings.TrimSpace(reply.Category))
			}
		}
	}

	if len(a.Keywords) == 0 {
		a.Keywords = ExtractKeywords(text, 8)
		a.Heuristic = true
	}
	if a.Category == "" {
		if ai != nil {
			if res := ai.Classify(ctx, text, Categories()); res.Success {
				a.Category = res.Content
			}
		}
		if a.Category == "" {
			a.Category = GuessCategory(text, defaultCategory)
			a.Heuristic = true
		}
	}
	return a
}

// extractJSON trims chatter around the outermost JSON object of a reply.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func toSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
