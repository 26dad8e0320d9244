package scope

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// SortVersions returns versions ordered pinned first, then names starting with a digit,
// then by descending numeric-aware name ("0.10.0" before "0.9.0"). The input is not modified.
func SortVersions(versions []redmine.Version, pinned cache.IDSet) []redmine.Version {
	sorted := make([]redmine.Version, len(versions))
	copy(sorted, versions)

	// Collators are not safe for concurrent use
	c := collate.New(language.Und, collate.Numeric)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]

		aPinned, bPinned := pinned.Has(a.ID), pinned.Has(b.ID)
		if aPinned != bPinned {
			return aPinned
		}

		aDigit, bDigit := startsWithDigit(a.Name), startsWithDigit(b.Name)
		if aDigit != bDigit {
			return aDigit
		}

		return c.CompareString(b.Name, a.Name) < 0
	})

	return sorted
}

func startsWithDigit(name string) bool {
	return name != "" && name[0] >= '0' && name[0] <= '9'
}
