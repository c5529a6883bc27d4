package classroom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeAt(t *testing.T) {
	birth := date(2017, time.February, 10)
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"day before birthday", date(2026, time.February, 9), 8},
		{"birthday", date(2026, time.February, 10), 9},
		{"month before", date(2026, time.January, 31), 8},
		{"month after", date(2026, time.March, 1), 9},
		{"end of year", date(2026, time.December, 31), 9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AgeAt(birth, tc.now))
		})
	}
}

func TestStudent_CurrentAge(t *testing.T) {
	now := date(2026, time.February, 9)
	age := 12
	birth := date(2017, time.February, 10)

	assert.Nil(t, Student{}.CurrentAge(now))
	assert.Equal(t, 12, *Student{Age: &age, BirthDate: &birth}.CurrentAge(now), "stored age wins")
	assert.Equal(t, 8, *Student{BirthDate: &birth}.CurrentAge(now))
}

func TestUniformEntry_Complete(t *testing.T) {
	tests := []struct {
		entry UniformEntry
		want  bool
	}{
		{UniformEntry{ShirtSize: "10", BottomSize: "10", ShoeSize: "32"}, true},
		{UniformEntry{ShirtSize: "10", BottomSize: "", ShoeSize: "32"}, false},
		{UniformEntry{}, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.entry.Complete(), "%+v", tc.entry)
	}

	assert.False(t, Student{}.IsComplete())
	assert.False(t, Student{}.HasEntry())
	assert.True(t, Student{UniformEntry: &UniformEntry{}}.HasEntry())
}

func TestCompletionRatio(t *testing.T) {
	complete := &UniformEntry{ShirtSize: "S", BottomSize: "S", ShoeSize: "30"}
	partial := &UniformEntry{ShirtSize: "S"}

	assert.Equal(t, 0.0, CompletionRatio(nil))
	assert.Equal(t, 0.5, CompletionRatio([]Student{
		{UniformEntry: complete},
		{UniformEntry: partial},
		{UniformEntry: complete},
		{},
	}))
}

func TestSummarize(t *testing.T) {
	students := []Student{
		{UniformEntry: &UniformEntry{ShirtSize: "10", BottomSize: "", ShoeSize: "32"}},
		{UniformEntry: &UniformEntry{ShirtSize: "10", BottomSize: "12", ShoeSize: "32"}},
		{}, // no entry: contributes nothing
	}
	summary := Summarize(students)
	assert.Equal(t, map[string]int{"10": 2}, summary.Shirt)
	assert.Equal(t, map[string]int{"": 1, "12": 1}, summary.Bottom)
	assert.Equal(t, map[string]int{"32": 2}, summary.Shoes)
}

func TestParseGender(t *testing.T) {
	g, ok := ParseGender(" femenino ")
	assert.True(t, ok)
	assert.Equal(t, GenderFemale, g)

	_, ok = ParseGender("X")
	assert.False(t, ok)
}

func TestClassroomFilter_Matches(t *testing.T) {
	c := Classroom{CenterCode: "001", Grade: "3", Year: 2026}
	assert.True(t, ClassroomFilter{}.Matches(c))
	assert.True(t, ClassroomFilter{Year: 2026, Grade: "3", CenterCode: "001"}.Matches(c))
	assert.False(t, ClassroomFilter{Year: 2025}.Matches(c))
	assert.False(t, ClassroomFilter{CenterCode: "002"}.Matches(c))
}
