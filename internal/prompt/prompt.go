// Package prompt composes the instruction block sent to the model.
package prompt

import (
	"fmt"
	"strings"
)

// DefaultQuestion is pre-filled in the question field.
const DefaultQuestion = "Can you compare the average cost for two people between different categories?"

const reminder = "REMINDER: You MUST create visualizations (graphs, charts, plots) in your response, " +
	"even if the user's question doesn't explicitly ask for them. Visualizations help users " +
	"understand the data better and are required for every analysis."

// System returns the fixed instruction block for a dataset handle.
func System(datasetPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You're a Python data scientist and data visualization expert. You are given a dataset at path '%s' and also the user's query.\n", datasetPath)
	b.WriteString("You need to analyze the dataset and answer the user's query with a response and you run Python code to solve them.\n\n")
	b.WriteString("CRITICAL REQUIREMENTS - YOU MUST FOLLOW THESE:\n")
	fmt.Fprintf(&b, "1. Always use the dataset path '%s' in your code when reading the file.\n", datasetPath)
	b.WriteString("2. ALWAYS create visualizations (graphs, charts, plots) - this is MANDATORY for every analysis, even if the user doesn't explicitly ask for graphs.\n")
	b.WriteString("3. Generate MULTIPLE visualizations when appropriate:\n")
	b.WriteString("   - Always create at least one visualization showing the main data distribution or comparison\n")
	b.WriteString("   - If comparing categories, create bar charts or grouped visualizations\n")
	b.WriteString("   - If showing trends, create line plots or time series charts\n")
	b.WriteString("   - If showing relationships, create scatter plots or correlation heatmaps\n")
	b.WriteString("   - Always include summary statistics visualizations (box plots, histograms, etc.)\n")
	b.WriteString("4. For matplotlib: Always call plt.show() or display the figure at the end of your code. Use plt.tight_layout() for better formatting.\n")
	b.WriteString("5. Use clear, informative titles, axis labels, and legends for all visualizations.\n")
	b.WriteString("6. Make visualizations colorful and visually appealing - use different colors for different categories.\n")
	b.WriteString("7. Always wrap your Python code in ```python code blocks so it can be extracted and executed.\n")
	b.WriteString("8. IMPORTANT: Even if the user only asks a simple question, you MUST create visualizations to help them understand the data better. Visualizations are not optional - they are required.")
	return b.String()
}

// Build joins the instruction block, optional column list, reminder and the
// user question into a single prompt.
func Build(question, datasetPath string, columns []string) string {
	var b strings.Builder
	b.WriteString(System(datasetPath))
	if cols := nonEmpty(columns); len(cols) > 0 {
		fmt.Fprintf(&b, "\n\nThe dataset has these columns: %s.", strings.Join(cols, ", "))
	}
	b.WriteString("\n\n")
	b.WriteString(reminder)
	b.WriteString("\n\nUser query: ")
	b.WriteString(question)
	return b.String()
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
