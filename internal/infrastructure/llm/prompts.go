package llm

import (
	"fmt"
	"strings"
)

const editorSystemPrompt = "You are an experienced news editor. You write neutral, factual copy, " +
	"never invent facts and keep names, numbers and dates exactly as given."

const analystSystemPrompt = "You analyse news text and answer strictly in the requested format."

// languageNames maps the ISO codes used in configuration to prompt-friendly names.
var languageNames = map[string]string{
	"de": "German",
	"en": "English",
	"uk": "Ukrainian",
	"ru": "Russian",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"pl": "Polish",
}

func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

const articleFormat = "Answer only in this format:\n<title>headline</title>\n<lead>one or two sentence lead</lead>\n<body>article body, paragraphs separated by blank lines</body>"

func rewritePrompt(text, lang string) string {
	return fmt.Sprintf("Rewrite the following news item as an original %s article. "+
		"Keep every fact, do not add new ones.\n\n%s\n\nSource text:\n%s",
		languageName(lang), articleFormat, text)
}

func translatePrompt(text, from, to string) string {
	return fmt.Sprintf("Translate the following %s news article into %s. "+
		"Keep the tag structure unchanged.\n\n%s\n\nArticle:\n%s",
		languageName(from), languageName(to), articleFormat, text)
}

func seoPrompt(title, body, lang string) string {
	return fmt.Sprintf("Create search metadata in %s for the article below. "+
		`Reply with a JSON object {"title": "...", "description": "...", "keywords": ["..."], "slug": "..."}. `+
		"The title must not exceed 60 characters, the description 155 characters, "+
		"the slug uses lower-case latin letters, digits and hyphens.\n\nTitle: %s\n\n%s",
		languageName(lang), title, body)
}

func entitiesPrompt(text string) string {
	return "Extract the main keywords, named entities and the news category of the text below. " +
		`Reply with a JSON object {"keywords": ["..."], "entities": ["..."], "category": "..."}. ` +
		"Use a single lower-case word for the category.\n\n" + text
}

func classifyPrompt(text string, categories []string) string {
	return fmt.Sprintf("Which one of these categories fits the text best: %s? "+
		"Reply with the category name only.\n\n%s", strings.Join(categories, ", "), text)
}

func summarizePrompt(text, lang string, maxWords int) string {
	return fmt.Sprintf("Summarize the following text in %s in at most %d words. Reply with the summary only.\n\n%s",
		languageName(lang), maxWords, text)
}
