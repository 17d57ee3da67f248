package pattern

import (
	"regexp"
	"sync"
)

// regexCache memoizes compiled regexes across repeated pattern evaluations
// within a single suite run, since the same expression is typically reused
// across many test cases.
var (
	regexCacheMu sync.Mutex
	regexCache   = make(map[string]*regexp.Regexp)
)

func compileRegex(expr string) (*regexp.Regexp, error) {
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()
	if re, ok := regexCache[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	regexCache[expr] = re
	return re, nil
}
