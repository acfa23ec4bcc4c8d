package engine

import (
	"strings"

	"github.com/QHanh/ChatbotHM/internal/catalog"
)

// ResetCommand clears the session's mode and negativity counter regardless
// of state.
const ResetCommand = "/bot"

// confirmVerdict is the outcome of the yes/no classification used while a
// resolved order waits for the customer's answer.
type confirmVerdict int

const (
	verdictOther confirmVerdict = iota
	verdictConfirm
	verdictCancel
)

// The lexicons are matched on diacritic-folded text: single words against
// whole tokens, multi-word phrases by substring. Cancellation wins over
// affirmation ("không lấy" must not read as "lấy").
var (
	cancelPhrases = []string{
		"không", "thôi", "hủy", "huỷ", "khỏi", "ko", "k", "no",
		"không mua", "đừng", "không cần", "để sau", "lần sau",
	}
	affirmativePhrases = []string{
		"có", "ok", "oke", "okie", "yes", "ừ", "uh", "ừm", "dạ", "vâng",
		"đồng ý", "chốt", "chốt đơn", "lấy", "mua", "xác nhận", "đúng rồi",
		"được", "nhất trí", "ship", "giao hàng",
	}
	showMorePhrases = []string{
		"xem thêm", "cho xem thêm", "còn nữa", "còn không", "còn loại nào",
		"còn mẫu nào", "thêm nữa", "nữa không", "gì nữa", "xem tiếp",
		"tiếp đi", "show thêm", "thêm đi", "còn gì",
	}
)

func classifyConfirmation(message string) confirmVerdict {
	// Long messages are new requests, not yes/no answers; let them fall
	// through to normal intent handling.
	if len(strings.Fields(message)) > 6 {
		return verdictOther
	}
	if matchLexicon(message, cancelPhrases) {
		return verdictCancel
	}
	if matchLexicon(message, affirmativePhrases) {
		return verdictConfirm
	}
	return verdictOther
}

func wantsMore(message string) bool {
	return matchLexicon(message, showMorePhrases)
}

// matchLexicon folds both sides, then checks single-word entries against
// whole tokens and multi-word entries as substrings.
func matchLexicon(message string, phrases []string) bool {
	folded := catalog.Fold(message)
	if folded == "" {
		return false
	}
	tokens := strings.Fields(folded)
	for _, phrase := range phrases {
		p := catalog.Fold(phrase)
		if strings.ContainsRune(p, ' ') {
			if strings.Contains(folded, p) {
				return true
			}
			continue
		}
		for _, t := range tokens {
			if t == p {
				return true
			}
		}
	}
	return false
}
