package usecase

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	seoTitleMax       = 60
	seoDescriptionMax = 155
	slugMax           = 80
	shortTitleMax     = 150
)

var (
	tagTitle = regexp.MustCompile(`(?is)<title>\s*(.*?)\s*</title>`)
	tagLead  = regexp.MustCompile(`(?is)<lead>\s*(.*?)\s*</lead>`)
	tagBody  = regexp.MustCompile(`(?is)<body>\s*(.*?)\s*(?:</body>|$)`)
	anyTag   = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	blankRun = regexp.MustCompile(`\n\s*\n+`)
)

// Article is a parsed generator answer. WasFallback is set when the answer
// had neither tags nor JSON and the parts were derived from the plain text.
type Article struct {
	Title       string
	Lead        string
	Body        string
	WasFallback bool
}

// ParseArticle reads a tagged or JSON article and falls back to the first
// short line as title and the first paragraph as lead.
func ParseArticle(raw string) Article {
	raw = strings.TrimSpace(raw)

	if title, body := firstGroup(tagTitle, raw), firstGroup(tagBody, raw); title != "" && body != "" {
		a := Article{Title: title, Lead: firstGroup(tagLead, raw), Body: normalizeParagraphs(body)}
		if a.Lead == "" {
			a.Lead = firstParagraph(a.Body)
		}
		return a
	}

	var doc struct {
		Title string `json:"title"`
		Lead  string `json:"lead"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &doc); err == nil && doc.Title != "" && doc.Body != "" {
		a := Article{Title: strings.TrimSpace(doc.Title), Lead: strings.TrimSpace(doc.Lead), Body: normalizeParagraphs(doc.Body)}
		if a.Lead == "" {
			a.Lead = firstParagraph(a.Body)
		}
		return a
	}

	return fallbackArticle(raw)
}

func fallbackArticle(raw string) Article {
	text := normalizeParagraphs(anyTag.ReplaceAllString(raw, ""))
	a := Article{WasFallback: true}
	if text == "" {
		return a
	}

	first, rest, _ := strings.Cut(text, "\n")
	first = strings.TrimSpace(first)
	if utf8.RuneCountInString(first) <= shortTitleMax {
		a.Title = first
		text = strings.TrimSpace(rest)
	} else {
		a.Title = Truncate(first, seoTitleMax)
	}

	a.Lead = firstParagraph(text)
	a.Body = text
	if a.Body == "" {
		a.Body = a.Title
	}
	return a
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func normalizeParagraphs(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n")
	return blankRun.ReplaceAllString(s, "\n\n")
}

func firstParagraph(s string) string {
	p, _, _ := strings.Cut(strings.TrimSpace(s), "\n\n")
	return strings.TrimSpace(p)
}

// SEO is the search metadata of a draft.
type SEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Slug        string   `json:"slug"`
	WasFallback bool     `json:"-"`
}

// ParseSEO decodes a JSON metadata answer and enforces the length limits.
// ok is false when the answer is unusable.
func ParseSEO(raw string) (SEO, bool) {
	var seo SEO
	if err := json.Unmarshal([]byte(extractJSON(raw)), &seo); err != nil || strings.TrimSpace(seo.Title) == "" {
		return SEO{}, false
	}
	seo.Title = Truncate(strings.TrimSpace(seo.Title), seoTitleMax)
	seo.Description = Truncate(strings.TrimSpace(seo.Description), seoDescriptionMax)
	seo.Keywords = cleanList(seo.Keywords)
	seo.Slug = Slugify(seo.Slug)
	if seo.Slug == "" {
		seo.Slug = Slugify(seo.Title)
	}
	return seo, true
}

// FallbackSEO derives metadata from the article itself.
func FallbackSEO(title, lead string, keywords []string) SEO {
	desc := lead
	if desc == "" {
		desc = title
	}
	return SEO{
		Title:       Truncate(title, seoTitleMax),
		Description: Truncate(desc, seoDescriptionMax),
		Keywords:    cleanList(keywords),
		Slug:        Slugify(title),
		WasFallback: true,
	}
}

// Truncate shortens s to at most max runes, cutting at the last word
// boundary when one exists in the second half.
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)[:max]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:-")
}

var translit = map[rune]string{
	'ä': "ae", 'ö': "oe", 'ü': "ue", 'ß': "ss",
	'а': "a", 'б': "b", 'в': "v", 'г': "h", 'ґ': "g", 'д': "d", 'е': "e", 'є': "ie", 'ж': "zh", 'з': "z",
	'и': "y", 'і': "i", 'ї': "i", 'й': "i", 'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o", 'п': "p",
	'р': "r", 'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh",
	'щ': "shch", 'ь': "", 'ю': "iu", 'я': "ia", 'ы': "y", 'э': "e", 'ё': "e", 'ъ': "",
}

// Slugify turns s into a lower-case ASCII slug: umlauts and Cyrillic are
// transliterated, other accents dropped, everything else becomes a hyphen.
func Slugify(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		if t, ok := translit[r]; ok {
			b.WriteString(t)
			hyphen = false
			continue
		}
		for _, d := range norm.NFD.String(string(r)) {
			switch {
			case unicode.Is(unicode.Mn, d):
			case d < unicode.MaxASCII && (unicode.IsLetter(d) || unicode.IsDigit(d)):
				b.WriteRune(d)
				hyphen = false
			default:
				if !hyphen && b.Len() > 0 {
					b.WriteByte('-')
					hyphen = true
				}
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > slugMax {
		slug = strings.TrimRight(slug[:slugMax], "-")
		if i := strings.LastIndex(slug, "-"); i > slugMax/2 {
			slug = slug[:i]
		}
	}
	return slug
}
