package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chemistry/api/internal/models"
)

// Recommendation builds the structured prompt asking for one compound that
// best satisfies the user's criteria. Target properties are listed in key order.
func Recommendation(req models.GenerateRequest) (string, error) {
	schema, err := json.MarshalIndent(models.DefaultCompoundTemplate(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render compound template: %w", err)
	}

	keys := make([]string, 0, len(req.PropertiTarget))
	for k := range req.PropertiTarget {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	criteria := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		criteria = append(criteria, fmt.Sprintf("- %s: %v", k, req.PropertiTarget[k]))
	}
	if extra := strings.TrimSpace(req.DeskripsiKriteria); extra != "" {
		criteria = append(criteria, "- Kriteria Tambahan: "+extra)
	}

	var b strings.Builder
	b.WriteString("Anda adalah seorang Ahli Kimia. Tugas Anda adalah MEREKOMENDASIKAN HANYA SATU senyawa terbaik ")
	b.WriteString("dari database Anda yang paling memenuhi kriteria berikut. Anda harus mengisi **SEMUA FIELD** JSON di bawah ini ")
	b.WriteString("dengan data mentah yang akurat, lalu tambahkan analisis skor dan justifikasi.\n\n")
	fmt.Fprintf(&b, "Kriteria Pengguna: %s, %s,\n%s\n\n", req.JenisProduk, req.Tujuan, strings.Join(criteria, "\n"))
	b.WriteString("**KELUARAN WAJIB JSON MURNI**\n")
	b.WriteString("Berikan HANYA OBJEK JSON tunggal. Gunakan struktur JSON KETAT berikut:\n\n")
	b.Write(schema)
	return b.String(), nil
}

// Reaction builds the structured prompt predicting how two compounds interact.
func Reaction(req models.CombineRequest) (string, error) {
	schema, err := json.MarshalIndent(models.DefaultReactionTemplate(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render reaction template: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Anda adalah ahli kimia. Analisis interaksi antara senyawa: %s dan %s.\n\n", req.CompoundA, req.CompoundB)
	b.WriteString("Tentukan: jenis reaksi, produk utama, persamaan stoikiometri, dan risiko.\n\n")
	b.WriteString("**KELUARAN WAJIB JSON MURNI**\n")
	b.WriteString("Berikan HANYA respons JSON, tidak ada teks pengantar atau penutup.\n")
	b.WriteString("Struktur output JSON harus KETAT sesuai dengan skema:\n")
	b.Write(schema)
	return b.String(), nil
}
