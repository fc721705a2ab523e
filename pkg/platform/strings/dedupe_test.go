package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"only whitespace", "   ", nil},
		{"single", "kafka-1:9092", []string{"kafka-1:9092"}},
		{"trims entries", " kafka-1:9092 , kafka-2:9092 ", []string{"kafka-1:9092", "kafka-2:9092"}},
		{"drops empties and duplicates", "a,,b, a ,", []string{"a", "b"}},
		{"only separators", ",,,", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.input))
		})
	}
}

func TestDedupeAndTrim(t *testing.T) {
	t.Run("preserves first-seen order", func(t *testing.T) {
		got := DedupeAndTrim([]string{"  redis ", "kafka", "redis", "", "  "})
		assert.Equal(t, []string{"redis", "kafka"}, got)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, DedupeAndTrim(nil))
	})

	t.Run("is case sensitive", func(t *testing.T) {
		assert.Equal(t, []string{"Tap", "tap"}, DedupeAndTrim([]string{"Tap", "tap"}))
	})
}
