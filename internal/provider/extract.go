package provider

import (
	"regexp"
	"sync"

	catalogdomain "github.com/paratel/numlease/internal/catalog/domain"
)

var (
	patternMu    sync.RWMutex
	patternCache = map[string]*regexp.Regexp{}
)

// ExtractCode pulls the one-time code out of raw SMS text using the
// offering's pattern. Returns "" when the text contains no code or the
// pattern does not compile (a bad catalog pattern must not take down
// message processing; it falls back to the default pattern).
func ExtractCode(text, pattern string) string {
	if text == "" {
		return ""
	}
	re := compiled(pattern)
	if re == nil {
		re = compiled(catalogdomain.DefaultCodePattern)
		if re == nil {
			return ""
		}
	}
	return re.FindString(text)
}

func compiled(pattern string) *regexp.Regexp {
	patternMu.RLock()
	re, ok := patternCache[pattern]
	patternMu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	patternMu.Lock()
	patternCache[pattern] = re
	patternMu.Unlock()
	return re
}
