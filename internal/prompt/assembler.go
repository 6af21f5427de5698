package prompt

import (
	"strings"

	"github.com/chemistry/api/internal/retrieval"
)

const (
	// NoAnswerPhrase is what a grounded answer says when the context is insufficient.
	NoAnswerPhrase = "Saya tidak dapat menemukan jawaban yang relevan dari dokumen yang tersedia."

	// GroundedInstruction binds the model to the supplied context.
	GroundedInstruction = "Anda adalah asisten AI yang ahli dalam Kimia. " +
		"Gunakan hanya konteks yang diberikan untuk menjawab pertanyaan. " +
		"Jika jawaban tidak ditemukan dalam konteks, katakan '" + NoAnswerPhrase + "' " +
		"Pastikan jawaban Anda akurat dan ringkas."

	// UngroundedInstruction is used when retrieval found nothing.
	UngroundedInstruction = "Anda adalah asisten AI yang ahli dalam Kimia. " +
		"Jawab pertanyaan sebaik mungkin berdasarkan pengetahuan Anda. " +
		"Jika Anda tidak yakin, katakan dengan jujur."

	// ContextDelimiter separates retrieved documents.
	ContextDelimiter = "\n---\n"

	feedbackHeading = "Catatan pengguna:"
)

// Prompt is the text sent to the generation provider.
type Prompt struct {
	Text     string
	Grounded bool
}

// Assembler builds grounded and ungrounded prompts. The zero value is not
// usable; call NewAssembler.
type Assembler struct {
	grounded   string
	ungrounded string
}

func NewAssembler() *Assembler {
	return &Assembler{grounded: GroundedInstruction, ungrounded: UngroundedInstruction}
}

// Assemble builds the prompt for query. With no documents the prompt carries
// the ungrounded instruction and no context section.
func (a *Assembler) Assemble(query string, docs []retrieval.Document) Prompt {
	if len(docs) == 0 {
		return Prompt{Text: a.ungrounded + "\n\nPERTANYAAN PENGGUNA: " + query}
	}

	var b strings.Builder
	b.WriteString(a.grounded)
	b.WriteString("\n\nKONTEKS:\n")
	b.WriteString(strings.Join(retrieval.Contents(docs), ContextDelimiter))
	b.WriteString("\n\nPERTANYAAN PENGGUNA: ")
	b.WriteString(query)
	return Prompt{Text: b.String(), Grounded: true}
}

// WithFeedback appends the user's note to text. Blank feedback leaves text unchanged.
func WithFeedback(text, feedback string) string {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return text
	}
	return text + "\n\n" + feedbackHeading + "\n" + feedback
}
