package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrdev/replybot/internal/text"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Lowercase latin", input: "Hello WORLD", expected: "hello world"},
		{name: "Whitespace runs", input: "  a \t\n  b  ", expected: "a b"},
		{name: "Alef with hamza above", input: "أهلا", expected: "اهلا"},
		{name: "Alef with hamza below", input: "إسلام", expected: "اسلام"},
		{name: "Alef madda", input: "آخر", expected: "اخر"},
		{name: "Alef maksura", input: "على", expected: "علي"},
		{name: "Waw with hamza", input: "سؤال", expected: "سوال"},
		{name: "Yaa with hamza", input: "رئيس", expected: "رييس"},
		{name: "Diacritics stripped", input: "شُكْراً", expected: "شكرا"},
		{name: "Mixed", input: "  السعر   كام؟ ", expected: "السعر كام؟"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, text.Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"Hello   World",
		"أإآا ى ؤ ئ",
		"شُكْراً جزيلاً",
		"Café Ünïcödé",
		" non breaking ",
		"مُمْتَاز PERFECT",
	}

	for _, in := range inputs {
		once := text.Normalize(in)
		assert.Equal(t, once, text.Normalize(once), "input %q", in)
	}
}

func TestNormalize_LetterVariantsFoldIdentically(t *testing.T) {
	t.Parallel()

	variants := []string{"أحمد", "إحمد", "آحمد", "احمد"}
	want := text.Normalize(variants[0])
	for _, v := range variants[1:] {
		assert.Equal(t, want, text.Normalize(v), "variant %q", v)
	}

	assert.Equal(t, text.Normalize("مستشفى"), text.Normalize("مستشفي"))
	assert.Equal(t, text.Normalize("مسئول"), text.Normalize("مسيول"))
	assert.Equal(t, text.Normalize("مؤتمر"), text.Normalize("موتمر"))
}

func TestWordCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, text.WordCount(""))
	assert.Equal(t, 1, text.WordCount("hello"))
	assert.Equal(t, 3, text.WordCount("one two three"))
}
