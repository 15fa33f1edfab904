package token

import "fmt"

// Category is one of the fixed part-of-speech labels the shift dictionary
// assigns to a word. Anything outside this vocabulary is rejected at the
// classifier boundary.
type Category string

const (
	Keyword         Category = "keyword"          // 代行, シフト
	TriggerRequest  Category = "trigger-request"  // お願い
	TriggerContract Category = "trigger-contract" // 受けます
	TriggerConfirm  Category = "trigger-confirm"  // 見せ
	Date            Category = "date"             // MM/DD
	DateDay         Category = "date-day"         // DD日
	DateWeekday     Category = "date-weekday"     // 月曜日
	DateModifier    Category = "date-modifier"    // 来週
	DateVague       Category = "date-vague"       // 今日, 明日
	Time            Category = "time"             // 13時, 13:00
	TimeModifier    Category = "time-modifier"    // から, まで
	Number          Category = "number"           // bare digits
)

var categories = map[Category]struct{}{
	Keyword:         {},
	TriggerRequest:  {},
	TriggerContract: {},
	TriggerConfirm:  {},
	Date:            {},
	DateDay:         {},
	DateWeekday:     {},
	DateModifier:    {},
	DateVague:       {},
	Time:            {},
	TimeModifier:    {},
	Number:          {},
}

// Valid reports whether c belongs to the fixed vocabulary.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Token is one classified word: the surface as it appeared in the message
// and the normalized value the dictionary maps it to (e.g. "13時" -> "13:00").
type Token struct {
	Surface string
	Value   string
}

// Bag holds the classified tokens of one message, source order preserved per
// category, plus the flattened surface list used to break ties by text
// position ("9時から14時" vs "14時9時から").
type Bag struct {
	byCategory map[Category][]Token
	surfaces   []string
}

func NewBag() *Bag {
	return &Bag{byCategory: make(map[Category][]Token)}
}

// Add appends a token under cat, keeping source order. Unknown categories
// are an error, not a silent extension of the vocabulary.
func (b *Bag) Add(cat Category, tok Token) error {
	if !cat.Valid() {
		return fmt.Errorf("unknown token category %q", cat)
	}
	b.byCategory[cat] = append(b.byCategory[cat], tok)
	b.surfaces = append(b.surfaces, tok.Surface)
	return nil
}

// AddSurface records a surface in the flattened order without classifying it.
// Used for words the dictionary has no label for.
func (b *Bag) AddSurface(surface string) {
	b.surfaces = append(b.surfaces, surface)
}

// Tokens returns the tokens recorded under cat in source order.
func (b *Bag) Tokens(cat Category) []Token {
	return b.byCategory[cat]
}

// Count returns how many tokens cat holds.
func (b *Bag) Count(cat Category) int {
	return len(b.byCategory[cat])
}

// Has reports whether at least one token of cat was seen.
func (b *Bag) Has(cat Category) bool {
	return len(b.byCategory[cat]) > 0
}

// Surfaces returns every surface in source order, classified or not.
func (b *Bag) Surfaces() []string {
	return b.surfaces
}

// SurfaceIndex returns the position of the first occurrence of surface in
// the flattened order, or -1.
func (b *Bag) SurfaceIndex(surface string) int {
	for i, s := range b.surfaces {
		if s == surface {
			return i
		}
	}
	return -1
}

// Classifier turns raw message text into a Bag. The default implementation
// is the lexicon scanner; a morphological tagger can be substituted.
type Classifier interface {
	Classify(text string) (*Bag, error)
}
