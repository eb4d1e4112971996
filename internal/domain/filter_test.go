package domain

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"leccap/internal/util"
)

func rec(title, section, date string) RecordingDescriptor {
	return RecordingDescriptor{Title: util.Ptr(title), Section: util.Ptr(section), Date: date, URL: "http://x/" + title}
}

func TestFilterAcceptAll(t *testing.T) {
	f := NewFilter(NewFilterSpec(nil, nil, nil, 10*time.Minute), zerolog.Nop())
	ok, err := f.Accept(rec("Anything", "Whatever", "Tue • 3:00 PM"))
	if err != nil || !ok {
		t.Fatalf("accept-all should accept: %v %v", ok, err)
	}
}

func TestFilterOrSemantics(t *testing.T) {
	spec := NewFilterSpec([]string{"midterm"}, []string{"disc a"}, []string{"9:00 AM"}, 10*time.Minute)
	f := NewFilter(spec, zerolog.Nop())

	tests := []struct {
		name string
		rec  RecordingDescriptor
		want bool
	}{
		{"section only", rec("Lec 1", "Disc A", "Mon • 1:00 PM"), true},
		{"title only", rec("Midterm Review", "Lecture", "Mon • 1:00 PM"), true},
		{"time only", rec("Lec 2", "Lecture", "Mon • 9:08 AM"), true},
		{"none", rec("Lec 3", "Lecture", "Mon • 1:00 PM"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Accept(tt.rec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFilterNilFieldsDoNotMatch(t *testing.T) {
	f := NewFilter(NewFilterSpec([]string{""}, nil, nil, 0), zerolog.Nop())
	ok, err := f.Accept(RecordingDescriptor{Date: "Mon • 1:00 PM"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("nil title must not match even an empty candidate")
	}
}

func TestFilterErrors(t *testing.T) {
	f := NewFilter(NewFilterSpec([]string{"x"}, nil, nil, 0), zerolog.Nop())
	if _, err := f.Accept(rec("Lec", "Disc", "Mon 1:00 PM")); err == nil {
		t.Fatal("expected missing separator error")
	}
	if _, err := f.Accept(rec("Lec", "Disc", "Mon • noon")); err == nil {
		t.Fatal("expected malformed time error")
	}
	if ok, err := f.Accept(rec("x marks", "Disc", "Mon • noon")); err != nil || !ok {
		t.Fatalf("title match should short-circuit the time check: %v %v", ok, err)
	}
}

func TestFilterZeroSpecUsesDefaultWindow(t *testing.T) {
	f := NewFilter(FilterSpec{TimeFilters: []string{"10:00 AM"}}, zerolog.Nop())
	ok, err := f.Accept(rec("Lec", "Lecture", "Mon • 10:07 AM"))
	if err != nil || !ok {
		t.Fatalf("7 minutes off should pass the default window: %v %v", ok, err)
	}
	if ok, _ := f.Accept(rec("Lec", "Lecture", "Mon • 10:11 AM")); ok {
		t.Fatal("11 minutes off is outside the default window")
	}
}

func TestFilterZeroToleranceIsExact(t *testing.T) {
	f := NewFilter(NewFilterSpec(nil, nil, []string{"10:00 AM"}, 0), zerolog.Nop())
	if ok, err := f.Accept(rec("Lec", "Lecture", "Mon • 10:00 AM")); err != nil || !ok {
		t.Fatalf("exact minute should pass: %v %v", ok, err)
	}
	if ok, _ := f.Accept(rec("Lec", "Lecture", "Mon • 10:01 AM")); ok {
		t.Fatal("a zero window must not accept 10:01 AM")
	}
}
