package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// KnownCategories lists the practice-area categories the corpus ships with.
var KnownCategories = []string{
	"trusts_estates",
	"family_law",
	"business_litigation",
	"business_entities",
	"business_transactions",
}

var categoryPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ExtractMetadata derives a title, section and citation from a filename of
// the form <title_words>_<NNNN>_<section_words>.pdf. The first token made of
// exactly four digits separates title from section. Without one, the whole
// stem becomes the title and the section is empty.
func ExtractMetadata(filename string) DocumentRecord {
	stem := DocumentStem(filename)
	parts := strings.Split(stem, "_")

	title := titleCase(strings.Join(parts, " "))
	section := ""
	for i, part := range parts {
		if isSeparator(part) {
			title = titleCase(strings.Join(parts[:i], " "))
			section = titleCase(strings.Join(parts[i+1:], " "))
			break
		}
	}

	return DocumentRecord{
		Filename: filepath.Base(filename),
		Title:    title,
		Section:  section,
		Citation: Citation(title, section),
	}
}

// DocumentStem returns the base filename without its extension.
func DocumentStem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Citation formats the human-readable source reference stored with each chunk.
func Citation(title, section string) string {
	if section == "" {
		return "CEB: " + title
	}
	return "CEB: " + title + ", " + section
}

// ChunkID builds the deterministic identifier {category}_{stem}_{index:04d}.
func ChunkID(category, stem string, index int) string {
	return fmt.Sprintf("%s_%s_%04d", category, stem, index)
}

// Namespace returns the vector-store partition for a category.
func Namespace(category string) string {
	return "ceb_" + category
}

// ValidateCategory checks that a category is a lowercase identifier usable
// in chunk ids, directory names and namespaces.
func ValidateCategory(category string) error {
	if !categoryPattern.MatchString(category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	return nil
}

func isSeparator(token string) bool {
	if len(token) != 4 {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
