package cluster

import (
	"testing"
	"time"

	"github.com/olofsundelin/familywall/internal/model"
)

func TestLooksLikeLesson(t *testing.T) {
	cases := []struct {
		summary string
		want    bool
	}{
		{"SV", true},
		{"Ma", true},
		{"IDH", true},
		{"idrott", true},
		{"Gympa med Eva", true},
		{"Rast", true},
		{"Elevens val", true},
		{"Slöjd", true},
		{"Tandläkare kl 9", false},
		{"Simskola", false},
		{"Föräldramöte", false},
		{"", false},
	}
	for _, c := range cases {
		if got := LooksLikeLesson(c.summary); got != c.want {
			t.Fatalf("LooksLikeLesson(%q) = %v, want %v", c.summary, got, c.want)
		}
	}
}

func TestClassKey(t *testing.T) {
	cases := []struct {
		name string
		ev   model.CalendarEvent
		want string
	}{
		{"calendar label wins", model.CalendarEvent{Calendar: "2C (Norrskolan)", Description: "SV FHT 5A"}, "2C"},
		{"description fallback", model.CalendarEvent{Description: "SV FHT 2C MH16"}, "2C"},
		{"preschool code", model.CalendarEvent{Description: "Samling FSKC idag"}, "FSKC"},
		{"nothing found", model.CalendarEvent{Summary: "Tandläkare"}, ""},
	}
	for _, c := range cases {
		if got := ClassKey(c.ev); got != c.want {
			t.Fatalf("%s: ClassKey = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestClassify(t *testing.T) {
	key, ok := Classify(model.CalendarEvent{Summary: "SV", Description: "SV FHT 2C"})
	if !ok || key != "2C" {
		t.Fatalf("classified as (%q, %v), want (2C, true)", key, ok)
	}

	// Lesson-looking summary with no extractable class lands in the generic bucket.
	key, ok = Classify(model.CalendarEvent{Summary: "Rast"})
	if !ok || key != GenericKey {
		t.Fatalf("classified as (%q, %v), want (%s, true)", key, ok, GenericKey)
	}

	if _, ok := Classify(model.CalendarEvent{Summary: "Simskola"}); ok {
		t.Fatalf("standalone event classified as lesson")
	}
}

func TestIsSports(t *testing.T) {
	for _, s := range []string{"IDH", "Idrott ute", "gympa"} {
		if !IsSports(s) {
			t.Fatalf("IsSports(%q) = false", s)
		}
	}
	if IsSports("Matematik") {
		t.Fatalf("IsSports(Matematik) = true")
	}
}

func instanceAt(summary, calendar, desc string, hour int) model.DayInstance {
	return model.DayInstance{
		CalendarEvent: model.CalendarEvent{
			Summary:     summary,
			Calendar:    calendar,
			Description: desc,
			Start:       model.Timed(time.Date(2025, 6, 10, hour, 0, 0, 0, time.UTC)),
			End:         model.Timed(time.Date(2025, 6, 10, hour+1, 0, 0, 0, time.UTC)),
		},
		InstanceDate: model.Date{Year: 2025, Month: time.June, Day: 10},
	}
}

func TestGroupDay(t *testing.T) {
	instances := []model.DayInstance{
		instanceAt("MA", "5A (Söderskolan)", "", 10),
		instanceAt("Rast", "", "", 12),
		instanceAt("Tandläkare", "Familjen", "", 15),
		instanceAt("SV", "2C (Norrskolan)", "", 8),
		instanceAt("IDH", "2C (Norrskolan)", "", 13),
		instanceAt("Simskola", "Familjen", "", 17),
	}

	buckets := GroupDay(instances, time.UTC)

	// Alphabetical keys with the generic bucket last.
	wantKeys := []string{"2C", "5A", GenericKey}
	if len(buckets.Groups) != len(wantKeys) {
		t.Fatalf("got %d groups, want %d", len(buckets.Groups), len(wantKeys))
	}
	for i, k := range wantKeys {
		if buckets.Groups[i].Key != k {
			t.Fatalf("group %d key = %q, want %q", i, buckets.Groups[i].Key, k)
		}
	}

	// Lessons inside a group are start-ordered.
	g2c := buckets.Groups[0]
	if len(g2c.Lessons) != 2 || g2c.Lessons[0].Summary != "SV" || g2c.Lessons[1].Summary != "IDH" {
		t.Fatalf("2C lessons out of order: %+v", g2c.Lessons)
	}
	if !g2c.Sports {
		t.Fatalf("2C group contains IDH but Sports is false")
	}
	if buckets.Groups[1].Sports {
		t.Fatalf("5A group has no sports lesson but Sports is true")
	}

	// Standalone events keep their incoming order.
	if len(buckets.Standalone) != 2 {
		t.Fatalf("got %d standalone events, want 2", len(buckets.Standalone))
	}
	if buckets.Standalone[0].Summary != "Tandläkare" || buckets.Standalone[1].Summary != "Simskola" {
		t.Fatalf("standalone order changed: %+v", buckets.Standalone)
	}
}

func TestGroupDayEmpty(t *testing.T) {
	buckets := GroupDay(nil, time.UTC)
	if len(buckets.Groups) != 0 || len(buckets.Standalone) != 0 {
		t.Fatalf("empty day produced buckets: %+v", buckets)
	}
}
