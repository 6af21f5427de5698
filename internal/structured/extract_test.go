package structured

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "bare object",
			raw:  `{"a":1}`,
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "preamble and trailing text",
			raw:  `preamble {"a":1} trailing`,
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "code fence",
			raw:  "```json\n{\"reaktan_a\": \"HCl\", \"produk_utama\": \"NaCl\"}\n```",
			want: map[string]any{"reaktan_a": "HCl", "produk_utama": "NaCl"},
		},
		{
			name: "nested",
			raw:  `{"nama_senyawa":"Air","data_unsur_penyusun":[{"simbol":"H","nomor_atom":1}]}`,
			want: map[string]any{
				"nama_senyawa": "Air",
				"data_unsur_penyusun": []any{
					map[string]any{"simbol": "H", "nomor_atom": float64(1)},
				},
			},
		},
		{
			name: "whitespace around",
			raw:  "\n\n  {\"skor_kecocokan\": 95}  \n",
			want: map[string]any{"skor_kecocokan": float64(95)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantCandidate string
	}{
		{name: "plain text", raw: "Maaf, saya tidak bisa membantu."},
		{name: "empty", raw: ""},
		{name: "close before open", raw: "} nothing {"},
		{name: "unterminated", raw: `{"a": 1,`},
		{name: "invalid inside braces", raw: `{"a": 1,}`, wantCandidate: `{"a": 1,}`},
		{name: "two objects", raw: `{"a":1} dan {"b":2}`, wantCandidate: `{"a":1} dan {"b":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.raw)
			assert.Nil(t, got)

			var malformed *MalformedOutputError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, strings.TrimSpace(tt.raw), malformed.RawPrefix)
			assert.Equal(t, tt.wantCandidate, malformed.CandidatePrefix)
		})
	}
}

func TestExtract_PrefixesAreBounded(t *testing.T) {
	raw := strings.Repeat("x", 300) + "{" + strings.Repeat("y", 300) + "}"

	_, err := Extract(raw)

	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Len(t, malformed.RawPrefix, PrefixLength)
	assert.Len(t, malformed.CandidatePrefix, PrefixLength)
	assert.True(t, strings.HasPrefix(malformed.CandidatePrefix, "{y"))
}

func TestExtract_Idempotent(t *testing.T) {
	first, err := Extract("Berikut hasilnya:\n{\"jenis_reaksi\":\"Netralisasi\",\"catatan_risiko\":\"Eksotermis\"}\nSemoga membantu.")
	require.NoError(t, err)

	encoded, err := json.Marshal(first)
	require.NoError(t, err)
	second, err := Extract(string(encoded))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
