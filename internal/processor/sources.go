package processor

import (
	"strings"

	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

// Hook applies source-specific corrections after the base transform, before
// validation and insertion. The default is a passthrough.
type Hook func(rec *model.NormalizedJobRecord, raw model.RawJobRecord)

// hooks keys source names to their correction hook. Sources without an entry
// get the base transform unchanged. A lookup table keeps each source's quirks
// isolated and testable without inheritance machinery.
var hooks = map[string]Hook{
	"topcv":    topcvHook,
	"linkedin": linkedinHook,
}

func hookFor(source string) Hook {
	return hooks[source]
}

// topcvHook strips the district suffix TopCV appends to city names
// ("Hà Nội: Cầu Giấy" stays just "Hà Nội").
func topcvHook(rec *model.NormalizedJobRecord, _ model.RawJobRecord) {
	if rec.City == nil {
		return
	}
	city := *rec.City
	if i := strings.IndexByte(city, ':'); i >= 0 {
		city = strings.TrimSpace(city[:i])
	}
	if city == "" {
		rec.City = nil
		return
	}
	rec.City = &city
}

// linkedinHook drops the inflated "over N" applicant counts LinkedIn reports
// once a posting passes its display cap.
func linkedinHook(rec *model.NormalizedJobRecord, _ model.RawJobRecord) {
	if rec.ApplicantCount != nil && *rec.ApplicantCount >= 1000 {
		rec.ApplicantCount = nil
	}
}
