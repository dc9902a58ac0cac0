package summarizer

import (
	"strings"

	"clinisum/internal/domain"
)

const systemInstruction = "You are an expert at summarizing clinical notes."

const promptTemplate = `You are provided with a text input.
Your task is to summarize the text for a {role} clinician using only the information in the text.
Do not add or create any information beyond what is provided in the text.
If the text does not contain any medical or clinical information, output exactly "` + domain.NoMedicalText + `" and nothing else.
Otherwise, produce a concise paragraph summary without any bullet points or extra formatting.
Include details such as relevant dates, patient demographics, symptoms, past medical history and findings, and recommended next steps when applicable.
Make sure to highlight any critical findings (like abnormal lab results, imaging abnormalities, or urgent clinical concerns).
Ensure that the summary is concise, easy to read, and formatted to quickly convey important information to a {role} clinician.

Here is the text to be summarized:
{text}
`

func buildPrompt(text, role string) string {
	return strings.NewReplacer(
		"{role}", role,
		"{text}", text,
	).Replace(promptTemplate)
}
