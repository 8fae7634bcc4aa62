package furigana

import (
	"reflect"
	"testing"
)

func TestParseWellFormed(t *testing.T) {
	got := Parse("この{漢字|かんじ}を読む")
	want := []Segment{
		{Base: "この"},
		{Base: "漢字", Reading: "かんじ"},
		{Base: "を読む"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}
}

func TestParseTable(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Segment
	}{
		{
			name:  "plain text only",
			input: "おはよう",
			want:  []Segment{{Base: "おはよう"}},
		},
		{
			name:  "token only",
			input: "{読|よ}",
			want:  []Segment{{Base: "読", Reading: "よ"}},
		},
		{
			name:  "adjacent tokens",
			input: "{明日|あした}{雨|あめ}",
			want: []Segment{
				{Base: "明日", Reading: "あした"},
				{Base: "雨", Reading: "あめ"},
			},
		},
		{
			name:  "token at end",
			input: "お{茶|ちゃ}",
			want:  []Segment{{Base: "お"}, {Base: "茶", Reading: "ちゃ"}},
		},
		{
			name:  "unterminated token is literal",
			input: "a{b|c",
			want:  []Segment{{Base: "a{b|c"}},
		},
		{
			name:  "missing pipe is literal",
			input: "a{bc}d",
			want:  []Segment{{Base: "a{bc}d"}},
		},
		{
			name:  "empty base is literal",
			input: "{|よみ}",
			want:  []Segment{{Base: "{|よみ}"}},
		},
		{
			name:  "empty reading is literal",
			input: "{読|}",
			want:  []Segment{{Base: "{読|}"}},
		},
		{
			name:  "double pipe is literal",
			input: "{a|b|c}",
			want:  []Segment{{Base: "{a|b|c}"}},
		},
		{
			name:  "stray closing brace is literal",
			input: "a}b",
			want:  []Segment{{Base: "a}b"}},
		},
		{
			name:  "nested open brace restarts scan",
			input: "{a{b|c}d",
			want:  []Segment{{Base: "{a"}, {Base: "b", Reading: "c"}, {Base: "d"}},
		},
		{
			name:  "empty input yields no segments",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSegmentsRestartable(t *testing.T) {
	seq := Segments("この{漢字|かんじ}を読む")

	var first, second []Segment
	for s := range seq {
		first = append(first, s)
	}
	for s := range seq {
		second = append(second, s)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second pass %v differs from first %v", second, first)
	}
}

func TestSegmentsEarlyStop(t *testing.T) {
	count := 0
	for range Segments("この{漢字|かんじ}を読む") {
		count++
		break
	}
	if count != 1 {
		t.Errorf("expected to stop after 1 segment, got %d", count)
	}
}

func TestStrip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"この{漢字|かんじ}を読む", "この漢字を読む"},
		{"{準備|じゅんび}", "準備"},
		{"plain", "plain"},
		{"a{b|c", "a{b|c"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Strip(tt.input); got != tt.want {
			t.Errorf("Strip(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsRuby(t *testing.T) {
	if (Segment{Base: "text"}).IsRuby() {
		t.Error("plain segment reported as ruby")
	}
	if !(Segment{Base: "読", Reading: "よ"}).IsRuby() {
		t.Error("ruby segment not reported as ruby")
	}
}
