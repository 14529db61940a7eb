package oracle

import (
	"strings"
)

const systemMessage = "You are a data extraction assistant. Read the provided text thoroughly, analyze each paragraph, and extract the single paragraph most relevant to the query and instructions. " +
	"Prefer paragraphs with quantitative data such as users, sales, revenues, turnover, stores, dispensaries, licenses, pounds, ounces, counts, currency amounts, percentages or volumes over purely qualitative text. " +
	"Copy the excerpt verbatim from the text. Respond with strict JSON only, no narration, with exactly these keys: " +
	"{\"excerpt\": string, \"title\": string, \"category\": string, \"date\": string (ISO 8601), \"source_authority\": string, " +
	"\"numeric_value\": number|null, \"unit\": string (in words, e.g. billion, million, percent, count), \"value_type\": string (e.g. revenue, users, sales), " +
	"\"country\": string, \"location\": string, \"author\": string, \"keywords\": string[], \"relevancy_score\": number (0-100)|null, \"references\": string[]}. " +
	"Use null for unavailable values. If nothing in the text is relevant, set \"excerpt\" to \"" + Sentinel + "\"."

const confirmNote = "A previous pass found nothing, but relevant content is known to exist in this text. Search it again carefully, paragraph by paragraph, including tables and lists, and extract the most relevant paragraph. " +
	"Only answer \"" + Sentinel + "\" if there is truly nothing related to the query."

func buildUserMessage(query, instructions, text string, confirm bool) string {
	var sb strings.Builder
	sb.WriteString("Query: ")
	sb.WriteString(strings.TrimSpace(query))
	sb.WriteString("\n")
	if s := strings.TrimSpace(instructions); s != "" {
		sb.WriteString("Instructions: ")
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	if confirm {
		sb.WriteString(confirmNote)
		sb.WriteString("\n")
	}
	sb.WriteString("\nText:\n")
	sb.WriteString(text)
	return sb.String()
}
