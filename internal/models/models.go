package models

import (
	"time"

	"github.com/google/uuid"
)

// AskRequest is the body of POST /api/v1/ask
type AskRequest struct {
	Query    string `json:"query" binding:"required"`
	Feedback string `json:"feedback,omitempty"`
}

// AskResponse carries a free-text answer and the path that served it
type AskResponse struct {
	Answer string `json:"answer"`
	Path   string `json:"path"`
}

// GenerateRequest describes the product a compound should be recommended for
type GenerateRequest struct {
	JenisProduk       string                 `json:"jenisProduk" binding:"required"`
	Tujuan            string                 `json:"tujuan" binding:"required"`
	PropertiTarget    map[string]interface{} `json:"propertiTarget" binding:"required"`
	DeskripsiKriteria string                 `json:"deskripsiKriteria,omitempty"`
}

// GenerateResponse wraps the recommended compound object
type GenerateResponse struct {
	Success bool                   `json:"success"`
	Answer  map[string]interface{} `json:"answer"`
}

// CombineRequest names the two compounds whose interaction is predicted
type CombineRequest struct {
	CompoundA string `json:"compound_a" binding:"required"`
	CompoundB string `json:"compound_b" binding:"required"`
}

// CombineResponse wraps the reaction summary object
type CombineResponse struct {
	Success bool                   `json:"success"`
	Result  map[string]interface{} `json:"result"`
}

// IngestResponse reports the outcome of an index rebuild
type IngestResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}

// CompoundTemplate is the JSON shape a compound recommendation must follow.
// Field order is the order shown to the model.
type CompoundTemplate struct {
	NamaSenyawa              string            `json:"nama_senyawa"`
	RumusMolekul             string            `json:"rumus_molekul"`
	BeratMolekul             float64           `json:"berat_molekul"`
	Sinonim                  string            `json:"sinonim"`
	Deskripsi                string            `json:"deskripsi"`
	TitikDidihCelsius        float64           `json:"titik_didih_celsius"`
	TitikLelehCelsius        float64           `json:"titik_leleh_celsius"`
	DensitasGcm3             float64           `json:"densitas_gcm3"`
	PernyataanBahayaGHS      string            `json:"pernyataan_bahaya_ghs"`
	KategoriAplikasi         string            `json:"kategori_aplikasi"`
	SifatFungsional          string            `json:"sifat_fungsional"`
	TingkatRisikoKeselamatan string            `json:"tingkat_risiko_keselamatan"`
	BahayaKeselamatan        string            `json:"bahaya_keselamatan"`
	KetersediaanBahanBaku    string            `json:"ketersediaan_bahan_baku"`
	DataUnsurPenyusun        []ElementTemplate `json:"data_unsur_penyusun"`
	SkorKecocokan            int               `json:"skor_kecocokan"`
	JustifikasiRingkas       string            `json:"justifikasi_ringkas"`
}

// ElementTemplate describes one constituent element of a compound
type ElementTemplate struct {
	NomorAtom int    `json:"nomor_atom"`
	NamaUnsur string `json:"nama_unsur"`
	Simbol    string `json:"simbol"`
}

// ReactionTemplate is the JSON shape of a two-compound reaction summary
type ReactionTemplate struct {
	ReaktanA              string `json:"reaktan_a"`
	ReaktanB              string `json:"reaktan_b"`
	JenisReaksi           string `json:"jenis_reaksi"`
	ProdukUtama           string `json:"produk_utama"`
	PersamaanStoikiometri string `json:"persamaan_stoikiometri"`
	CatatanRisiko         string `json:"catatan_risiko"`
	DeskripsiRingkas      string `json:"deskripsi_ringkas"`
}

// DefaultCompoundTemplate returns the placeholder values shown to the model
func DefaultCompoundTemplate() CompoundTemplate {
	return CompoundTemplate{
		NamaSenyawa:              "nama_senyawa",
		RumusMolekul:             "rumus_molekul",
		Sinonim:                  "...",
		Deskripsi:                "Deskripsi LLM yang merangkum properti, risiko, dan kecocokan.",
		PernyataanBahayaGHS:      "...",
		KategoriAplikasi:         "...",
		SifatFungsional:          "...",
		TingkatRisikoKeselamatan: "Rendah/Sedang/Tinggi",
		BahayaKeselamatan:        "...",
		KetersediaanBahanBaku:    "Tersedia",
		DataUnsurPenyusun: []ElementTemplate{
			{NamaUnsur: "...", Simbol: "..."},
		},
		JustifikasiRingkas: "1-2 kalimat mengapa senyawa ini paling cocok dengan kriteria yang diminta.",
	}
}

// DefaultReactionTemplate returns the placeholder values shown to the model
func DefaultReactionTemplate() ReactionTemplate {
	return ReactionTemplate{
		ReaktanA:              "nama_reaktan_a",
		ReaktanB:              "nama_reaktan_b",
		JenisReaksi:           "Netralisasi/Redoks/Tidak Reaktif",
		ProdukUtama:           "Nama produk",
		PersamaanStoikiometri: "Persamaan kimia yang seimbang.",
		CatatanRisiko:         "Ringkasan risiko.",
		DeskripsiRingkas:      "Satu kalimat ringkas menjelaskan hasil.",
	}
}

// QueryLog is one audited routed request
type QueryLog struct {
	ID           uuid.UUID `json:"id"`
	RequestID    string    `json:"request_id,omitempty"`
	Endpoint     string    `json:"endpoint"`
	Path         string    `json:"path"`
	Structured   bool      `json:"structured"`
	Outcome      string    `json:"outcome"`
	LatencyMS    int64     `json:"latency_ms"`
	QueryPreview string    `json:"query_preview"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnswerServedEvent is published after every routed request
type AnswerServedEvent struct {
	ID         uuid.UUID `json:"id"`
	Endpoint   string    `json:"endpoint"`
	Path       string    `json:"path"`
	Structured bool      `json:"structured"`
	Outcome    string    `json:"outcome"`
	LatencyMS  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// IndexRebuiltEvent is published after the vector index is replaced
type IndexRebuiltEvent struct {
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	DurationMS int64     `json:"duration_ms"`
	Subject    string    `json:"subject,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
