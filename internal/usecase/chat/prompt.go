package chat

import (
	"strings"

	"decompress/internal/domain"
)

const basePrompt = "You are a helpful assistant that answers questions about video content."

const contextPrompt = basePrompt + ` Use the following video transcripts to answer the user's questions. If the answer isn't in the transcripts, say so.

IMPORTANT: When answering questions, paraphrase and explain in your own words rather than quoting large portions of the transcript verbatim. You may use brief direct quotes (1-2 sentences) when they add value, but your responses should primarily be original explanations based on the content. Always attribute information to the video (e.g., "According to the video..." or "The speaker explains that...").

`

// BuildContext собирает транскрипты в один блок. Видео без транскрипта пропускаются.
func BuildContext(videos []domain.VideoTranscript) string {
	sections := make([]string, 0, len(videos))
	for _, v := range videos {
		if strings.TrimSpace(v.Transcript) == "" {
			continue
		}
		sections = append(sections, "## Video: "+v.Title+"\n\n"+v.Transcript)
	}
	return strings.Join(sections, "\n\n---\n\n")
}

// SystemPrompt возвращает системную инструкцию с контекстом или общую без него.
func SystemPrompt(context string) string {
	if context == "" {
		return basePrompt
	}
	return contextPrompt + context
}
