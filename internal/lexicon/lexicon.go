// Package lexicon is the default token classifier. It reproduces the shift
// bot's generated dictionary as a rule-based longest-match scanner: fixed
// trigger/keyword words plus date, weekday and clock-time patterns, each
// mapped to a normalized value.
package lexicon

import (
	"fmt"
	"strings"

	"github.com/aoba-lab/daiko/internal/token"
)

// entry is one fixed dictionary word.
type entry struct {
	surface  string
	category token.Category
	value    string
}

// Fixed words, longest surfaces first within a shared prefix so the scanner
// can take the first match greedily.
var fixedEntries = []entry{
	{"代行", token.Keyword, "daiko"},
	{"シフト", token.Keyword, "shift"},
	{"お願", token.TriggerRequest, "onegai"},
	{"おねがい", token.TriggerRequest, "onegai"},
	{"受けます", token.TriggerContract, "ukemasu"},
	{"うけます", token.TriggerContract, "ukemasu"},
	{"もらいます", token.TriggerContract, "moraimasu"},
	{"貰います", token.TriggerContract, "moraimasu"},
	{"見せ", token.TriggerConfirm, "mise"},
	{"みせ", token.TriggerConfirm, "mise"},
	{"明日", token.DateVague, "tomorrow"},
	{"今日", token.DateVague, "today"},
	{"本日", token.DateVague, "today"},
	{"来週", token.DateModifier, "next"},
	{"から", token.TimeModifier, "from"},
	{"まで", token.TimeModifier, "until"},
}

// weekdayValues maps the kanji weekday to its strftime %w number (0=Sunday),
// the convention the date resolver expects.
var weekdayValues = map[rune]string{
	'日': "0", '月': "1", '火': "2", '水': "3", '木': "4", '金': "5", '土': "6",
}

var numeralReplacer = strings.NewReplacer(
	"：", ":",
	"(", "", ")", "",
	"（", "", "）", "",
	"〇", "0",
	"一", "1", "二", "2", "三", "3", "四", "4", "五", "5",
	"六", "6", "七", "7", "八", "8", "九", "9",
)

// Scanner is a token.Classifier over the fixed vocabulary.
type Scanner struct{}

func New() *Scanner {
	return &Scanner{}
}

// normalize applies the character filters the original dictionary applied
// before tokenizing: full-width colon, parens, kanji numerals. 十 becomes
// "10" standalone and the tens digit "1" when followed by another numeral.
func normalize(text string) string {
	var sb strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		if r == '十' {
			if i+1 < len(runes) && strings.ContainsRune("一二三四五六七八九", runes[i+1]) {
				sb.WriteRune('1')
			} else {
				sb.WriteString("10")
			}
			continue
		}
		sb.WriteRune(r)
	}
	return numeralReplacer.Replace(sb.String())
}

// Classify scans text left to right, taking the longest dictionary or
// pattern match at each position. Unmatched runs are recorded as plain
// surfaces so positional tie-breaks still see them.
func (s *Scanner) Classify(text string) (*token.Bag, error) {
	bag := token.NewBag()
	runes := []rune(normalize(text))

	var plain []rune
	flushPlain := func() {
		if len(plain) > 0 {
			bag.AddSurface(strings.TrimSpace(string(plain)))
			plain = plain[:0]
		}
	}

	for i := 0; i < len(runes); {
		if tok, cat, n := matchAt(runes[i:]); n > 0 {
			flushPlain()
			if err := bag.Add(cat, tok); err != nil {
				return nil, fmt.Errorf("classify %q: %w", text, err)
			}
			i += n
			continue
		}
		r := runes[i]
		if r == ' ' || r == '　' || r == '\n' || r == '\t' {
			flushPlain()
		} else {
			plain = append(plain, r)
		}
		i++
	}
	flushPlain()
	return bag, nil
}

// matchAt tries every pattern at the head of rest and returns the winning
// token, its category, and the number of runes consumed. Pattern precedence
// mirrors the dictionary: clock times and dates before bare digit runs,
// fixed words before everything digit-free.
func matchAt(rest []rune) (token.Token, token.Category, int) {
	if tok, n := matchTime(rest); n > 0 {
		return tok, token.Time, n
	}
	if tok, n := matchDate(rest); n > 0 {
		return tok, token.Date, n
	}
	if tok, n := matchDayOnly(rest); n > 0 {
		return tok, token.DateDay, n
	}
	if tok, n := matchWeekday(rest); n > 0 {
		return tok, token.DateWeekday, n
	}
	for _, e := range fixedEntries {
		if hasPrefix(rest, e.surface) {
			return token.Token{Surface: e.surface, Value: e.value}, e.category, len([]rune(e.surface))
		}
	}
	if tok, n := matchNumber(rest); n > 0 {
		return tok, token.Number, n
	}
	return token.Token{}, "", 0
}

func hasPrefix(rest []rune, word string) bool {
	w := []rune(word)
	if len(rest) < len(w) {
		return false
	}
	for i, r := range w {
		if rest[i] != r {
			return false
		}
	}
	return true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// takeDigits reads up to max leading digits.
func takeDigits(rest []rune, max int) (int, int) {
	val, n := 0, 0
	for n < len(rest) && n < max && isDigit(rest[n]) {
		val = val*10 + int(rest[n]-'0')
		n++
	}
	return val, n
}

// fixHour applies the dictionary's afternoon assumption: a bare hour of 8 or
// less means the PM slot (1時 -> 13:00). Explicit two-digit hours keep it too,
// matching the generated dictionary.
func fixHour(hour int) int {
	if hour <= 8 {
		return hour + 12
	}
	return hour
}

// matchTime recognizes HH:MM, H時, H時半 and H時M分 forms. The normalized
// value is always "HH:MM".
func matchTime(rest []rune) (token.Token, int) {
	hour, hn := takeDigits(rest, 2)
	if hn == 0 || hour > 23 {
		return token.Token{}, 0
	}
	// HH:MM
	if hn < len(rest) && rest[hn] == ':' {
		minute, mn := takeDigits(rest[hn+1:], 2)
		if mn == 0 || minute > 59 {
			return token.Token{}, 0
		}
		n := hn + 1 + mn
		return token.Token{
			Surface: string(rest[:n]),
			Value:   fmt.Sprintf("%02d:%02d", fixHour(hour), minute),
		}, n
	}
	// H時 variants
	if hn < len(rest) && rest[hn] == '時' {
		n := hn + 1
		minute := 0
		if n < len(rest) && rest[n] == '半' {
			minute = 30
			n++
		} else {
			m, mn := takeDigits(rest[n:], 2)
			if mn > 0 && n+mn < len(rest) && rest[n+mn] == '分' && m <= 59 {
				minute = m
				n += mn + 1
			}
		}
		return token.Token{
			Surface: string(rest[:n]),
			Value:   fmt.Sprintf("%02d:%02d", fixHour(hour), minute),
		}, n
	}
	return token.Token{}, 0
}

// matchDate recognizes M/D and M月D日 forms, normalized to "MM/DD".
func matchDate(rest []rune) (token.Token, int) {
	month, mn := takeDigits(rest, 2)
	if mn == 0 || month < 1 || month > 12 {
		return token.Token{}, 0
	}
	if mn >= len(rest) {
		return token.Token{}, 0
	}
	var sep, closer rune
	switch rest[mn] {
	case '/':
		sep = '/'
	case '月':
		sep, closer = '月', '日'
	default:
		return token.Token{}, 0
	}
	day, dn := takeDigits(rest[mn+1:], 2)
	if dn == 0 || day < 1 || day > 31 {
		return token.Token{}, 0
	}
	n := mn + 1 + dn
	if sep == '月' {
		if n >= len(rest) || rest[n] != closer {
			return token.Token{}, 0
		}
		n++
	}
	return token.Token{
		Surface: string(rest[:n]),
		Value:   fmt.Sprintf("%02d/%02d", month, day),
	}, n
}

// matchDayOnly recognizes D日, normalized to "DD".
func matchDayOnly(rest []rune) (token.Token, int) {
	day, dn := takeDigits(rest, 2)
	if dn == 0 || day < 1 || day > 31 {
		return token.Token{}, 0
	}
	if dn >= len(rest) || rest[dn] != '日' {
		return token.Token{}, 0
	}
	n := dn + 1
	return token.Token{Surface: string(rest[:n]), Value: fmt.Sprintf("%02d", day)}, n
}

// matchWeekday recognizes X曜日 and X曜.
func matchWeekday(rest []rune) (token.Token, int) {
	if len(rest) < 2 {
		return token.Token{}, 0
	}
	value, ok := weekdayValues[rest[0]]
	if !ok || rest[1] != '曜' {
		return token.Token{}, 0
	}
	n := 2
	if n < len(rest) && rest[n] == '日' {
		n++
	}
	return token.Token{Surface: string(rest[:n]), Value: value}, n
}

// matchNumber recognizes a bare digit run not claimed by a time or date
// pattern. The extractor later constrains which numbers count as hours.
func matchNumber(rest []rune) (token.Token, int) {
	n := 0
	for n < len(rest) && isDigit(rest[n]) {
		n++
	}
	if n == 0 {
		return token.Token{}, 0
	}
	s := string(rest[:n])
	return token.Token{Surface: s, Value: s}, n
}
