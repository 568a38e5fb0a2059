package nasl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInteger(t *testing.T) {
	v, ok := Normalize(KindInteger, []string{" 42 "})
	require.True(t, ok)
	assert.Equal(t, 42, v.Int)

	_, ok = Normalize(KindInteger, []string{"x42"})
	assert.False(t, ok)

	_, ok = Normalize(KindInteger, nil)
	assert.False(t, ok, "没有捕获时不应产生值")
}

func TestNormalizeScalarUsesFirstCapture(t *testing.T) {
	v, ok := Normalize(KindText, []string{" ACT_ATTACK ", "ACT_GATHER_INFO"})
	require.True(t, ok)
	assert.Equal(t, "ACT_ATTACK", v.Text)

	v, ok = Normalize(KindVersion, []string{"$Revision: 1.2 $"})
	require.True(t, ok)
	assert.Equal(t, "$Revision: 1.2 $", v.Text)
}

func TestNormalizeLocalizedText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"english only", "english:Foo Bar", "Foo Bar"},
		{"english first", "english:Foo, francais:Bar", "Foo"},
		{"english later", "francais:Bar, english:Foo", "Foo"},
		{"no english", "francais:Bar, deutsch:Baz", "Bar"},
		{"plain", "  Plain text  ", "Plain text"},
		{"label inside text", "Note english: later", "Note english: later"},
		{"language word in value", "english:Fix for German: locale handling", "Fix for German: locale handling"},
		{"value starts with language", "english:Spanish: text", "Spanish: text"},
		{"language word in later segment", "francais:Bar, english:Notes on Deutsch: usage", "Notes on Deutsch: usage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Normalize(KindLocalizedText, []string{tt.in})
			require.True(t, ok)
			assert.Equal(t, tt.want, v.Text)
		})
	}
}

func TestNormalizeStringList(t *testing.T) {
	v, ok := Normalize(KindStringList, []string{"CVE-1, CVE-2", "CVE-2 CVE-3"})
	require.True(t, ok)
	assert.Equal(t, []string{"CVE-1", "CVE-2", "CVE-3"}, v.Strings)

	v, ok = Normalize(KindStringList, []string{" , "})
	require.True(t, ok)
	assert.Equal(t, []string{}, v.Strings)
}

func TestNormalizeIntegerList(t *testing.T) {
	v, ok := Normalize(KindIntegerList, []string{"1, x, 2", "2"})
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 2}, v.Ints)
}

func TestNormalizeMapping(t *testing.T) {
	tests := []struct {
		name     string
		captures []string
		want     map[string]string
	}{
		{"named xref", []string{"name:CERT, value:123"}, map[string]string{"CERT": "123"}},
		{"attribute", []string{"attribute:synopsis, value:a, b"}, map[string]string{"synopsis": "a, b"}},
		{"labeled pairs", []string{"a:1, b:2"}, map[string]string{"a": "1", "b": "2"}},
		{"two parts", []string{"OSVDB, 3000"}, map[string]string{"OSVDB": "3000"}},
		{"last wins", []string{"name:A, value:1", "name:A, value:2"}, map[string]string{"A": "2"}},
		{"unrecognized", []string{"just text"}, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Normalize(KindMapping, tt.captures)
			require.True(t, ok)
			assert.Equal(t, tt.want, v.Mapping)
		})
	}
}

func TestNormalizeMappingList(t *testing.T) {
	v, ok := Normalize(KindMappingList, []string{"{a:1, b:2}, {c:3}"})
	require.True(t, ok)
	assert.Equal(t, []map[string]string{{"a": "1", "b": "2"}, {"c": "3"}}, v.Mappings)

	v, ok = Normalize(KindMappingList, []string{"release:SLES12, reference:pkg", "release:SLES15"})
	require.True(t, ok)
	assert.Equal(t, []map[string]string{
		{"release": "SLES12", "reference": "pkg"},
		{"release": "SLES15"},
	}, v.Mappings)
}

func TestNormalizeDateTime(t *testing.T) {
	tests := []struct {
		in     string
		parsed bool
		want   string
	}{
		{"$Date: 2019/10/01 13:41:41 $", true, "2019-10-01 13:41:41"},
		{"$Date: 2019-10-01 13:41:41 +0000 (Tue, 01 Oct 2019) $", true, "2019-10-01 13:41:41"},
		{"2021-04-20T12:00:00+0000", true, "2021-04-20 12:00:00"},
		{"2020-02-03", true, "2020-02-03 00:00:00"},
		{" not a date ", false, "not a date"},
	}

	for _, tt := range tests {
		v, ok := Normalize(KindDateTime, []string{tt.in})
		require.True(t, ok)
		assert.Equal(t, tt.parsed, v.Date.Parsed, tt.in)
		assert.Equal(t, tt.want, v.Date.String(), tt.in)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "mapping-list", KindMappingList.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
