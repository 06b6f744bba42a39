package throttle

import "bibledownloader/internal/domain"

type levels struct{ conservative, balanced, aggressive int }

var concurrencyTable = map[string]levels{
	"bible.com":      {2, 4, 6},
	"basisbijbel.nl": {2, 3, 4},
	"debijbel.nl":    {1, 2, 3},
}

var defaultLevels = levels{1, 2, 3}

// Concurrency returns the batch size for a source and speed preference.
func Concurrency(source string, speed domain.Speed) int {
	l, ok := concurrencyTable[source]
	if !ok {
		l = defaultLevels
	}
	switch speed {
	case domain.SpeedConservative:
		return l.conservative
	case domain.SpeedAggressive:
		return l.aggressive
	default:
		return l.balanced
	}
}
