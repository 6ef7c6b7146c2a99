package llm

import (
	"strconv"
	"strings"

	"github.com/marquee-ai/marquee/pkg/models"
)

const promptTemplate = `You are a helpful movie expert. Use the following movie information to answer the question.
If you don't know the answer, just say you don't know.

Context: {context}

Question: {question}

Answer: `

// BuildContext renders movies as labelled blocks separated by blank lines.
// A zero year renders as N/A.
func BuildContext(movies []models.Movie) string {
	blocks := make([]string, 0, len(movies))
	for _, m := range movies {
		year := "N/A"
		if m.Year != 0 {
			year = strconv.Itoa(m.Year)
		}
		var b strings.Builder
		b.WriteString("Title: ")
		b.WriteString(m.Title)
		b.WriteString("\nPlot: ")
		b.WriteString(m.Plot)
		b.WriteString("\nYear: ")
		b.WriteString(year)
		b.WriteString("\nGenres: ")
		b.WriteString(strings.Join(m.Genres, ", "))
		b.WriteString("\n")
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// BuildPrompt fills the answer template with the movie context and the question.
func BuildPrompt(question string, movies []models.Movie) string {
	r := strings.NewReplacer("{context}", BuildContext(movies), "{question}", question)
	return r.Replace(promptTemplate)
}
