package cluster

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/olofsundelin/familywall/internal/model"
)

// GenericKey is the fallback bucket for lesson-like entries where no class
// identifier could be extracted. It always sorts last among a day's groups.
const GenericKey = "SCHEMA"

// Short subject tokens that mark a school-schedule entry. Deliberately
// fuzzy: a false positive only affects visual grouping, never correctness.
var subjectWords = []string{
	"sv", "ma", "no", "so", "en", "bl", "mu", "musik", "bild", "sl", "slöjd",
	"te", "tk", "rast", "lunch", "elevens val", "hk", "hemkunskap",
	"idh", "idrott", "gympa", "språkhuset",
}

var (
	// Bare 2–4 letter subject codes (SV, MA, IDH, NO...).
	shortCodeRe = regexp.MustCompile(`(?i)^[a-zåäö]{2,4}$`)

	// Class label before the first parenthesis in the calendar name,
	// e.g. "2C (Norrskolan)".
	calendarClassRe = regexp.MustCompile(`^([^()]+)\s*\(`)

	// Class identifier inside the description, e.g. "SV FHT 2C MH16":
	// 1–2 digits + a letter, or F/FSK/FSKC preschool variants.
	descClassRe = regexp.MustCompile(`(?i)\b([0-9]{1,2}[A-ZÅÄÖa-zåäö]|F(?:SK)?[A-ZÅÄÖa-zåäö]?)\b`)

	sportsWords = []string{"idh", "idrott", "gympa"}
)

// LooksLikeLesson reports whether a summary reads like a school-schedule
// entry: a known subject word, or a short alphabetic code.
func LooksLikeLesson(summary string) bool {
	s := strings.ToLower(strings.TrimSpace(summary))
	for _, w := range subjectWords {
		if s == w || strings.HasPrefix(s, w+" ") {
			return true
		}
	}
	return shortCodeRe.MatchString(strings.TrimSpace(summary))
}

// ClassKey extracts a class identifier from the event's calendar label or
// description. Empty string means no identifier was found.
func ClassKey(ev model.CalendarEvent) string {
	if m := calendarClassRe.FindStringSubmatch(strings.TrimSpace(ev.Calendar)); m != nil {
		return strings.ToUpper(strings.TrimSpace(m[1]))
	}
	if m := descClassRe.FindStringSubmatch(strings.TrimSpace(ev.Description)); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// Classify decides whether an event belongs in a lesson cluster and under
// which key. Either heuristic alone is sufficient.
func Classify(ev model.CalendarEvent) (key string, ok bool) {
	k := ClassKey(ev)
	if k == "" && !LooksLikeLesson(ev.Summary) {
		return "", false
	}
	if k == "" {
		k = GenericKey
	}
	return k, true
}

// IsSports reports whether a lesson summary is a PE class; the UI shows a
// group-level icon when any lesson in a cluster matches.
func IsSports(summary string) bool {
	s := strings.ToLower(summary)
	for _, w := range sportsWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Group is one lesson cluster within a day.
type Group struct {
	Key     string
	Lessons []model.DayInstance
	Sports  bool
}

// DayBuckets is the display split of one day's instances.
type DayBuckets struct {
	Groups     []Group
	Standalone []model.DayInstance
}

// GroupDay post-processes one day's already-sorted instances into lesson
// clusters and standalone events. Lessons are sorted by start within a
// group; groups are ordered alphabetically with the generic bucket last;
// standalone events keep their incoming order.
func GroupDay(instances []model.DayInstance, loc *time.Location) DayBuckets {
	if loc == nil {
		loc = time.Local
	}

	byKey := make(map[string][]model.DayInstance)
	var standalone []model.DayInstance

	for _, inst := range instances {
		key, ok := Classify(inst.CalendarEvent)
		if !ok {
			standalone = append(standalone, inst)
			continue
		}
		byKey[key] = append(byKey[key], inst)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == GenericKey {
			return false
		}
		if keys[j] == GenericKey {
			return true
		}
		return keys[i] < keys[j]
	})

	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		lessons := byKey[k]
		sort.SliceStable(lessons, func(i, j int) bool {
			return lessons[i].Start.Instant(loc).Before(lessons[j].Start.Instant(loc))
		})
		sports := false
		for _, l := range lessons {
			if IsSports(l.Summary) {
				sports = true
				break
			}
		}
		groups = append(groups, Group{Key: k, Lessons: lessons, Sports: sports})
	}

	return DayBuckets{Groups: groups, Standalone: standalone}
}
