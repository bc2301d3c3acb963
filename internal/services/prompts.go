package services

import (
	"fmt"
	"strings"

	"edulearn-backend/internal/models"
)

const imageTranscriptionPrompt = `Extract and transcribe all the text content from this image.
Include all visible text, keeping the original structure as much as possible.
If there are diagrams or figures, describe them briefly.
Return only the extracted text content.`

var difficultyInstructions = map[models.Difficulty]string{
	models.DifficultyEasy:   "Focus on basic recall and simple understanding. Questions should test direct facts from the content.",
	models.DifficultyMedium: "Include questions that require understanding relationships between concepts. Mix recall with comprehension questions.",
	models.DifficultyHard:   "Create challenging questions that require analysis, application, and critical thinking. Include questions that combine multiple concepts.",
}

func buildSummaryPrompt(title, text string) string {
	var b strings.Builder
	b.WriteString("You are an educational content summarizer. Write a clear, concise summary of the document below.\n\n")
	fmt.Fprintf(&b, "Document Title: %s\n\n", title)
	b.WriteString("Content:\n")
	b.WriteString(text)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("1. Identify the main topics and key points\n")
	b.WriteString("2. Keep it concise but comprehensive\n")
	b.WriteString("3. Use simple, clear language\n")
	b.WriteString("4. Write plain prose paragraphs. Do not use markdown, headings, bullet points or numbered lists\n\n")
	b.WriteString("Provide the summary now:")
	return b.String()
}

func buildPageInsightPrompt(title string, pageNumber, pageCount int, pageText string) string {
	var b strings.Builder
	b.WriteString("You are a study assistant reviewing one page of a document.\n\n")
	fmt.Fprintf(&b, "Document Title: %s\nPage %d of %d\n\n", title, pageNumber, pageCount)
	b.WriteString("Page content:\n")
	b.WriteString(pageText)
	b.WriteString("\n\nRespond with a single JSON object in exactly this format:\n")
	b.WriteString(`{"content": "2-4 sentence explanation of what this page teaches", "key_points": ["point 1", "point 2", "point 3"], "focus_topic": "the main topic of the page"}`)
	b.WriteString("\n\nRules:\n- At most 3 key points\n- focus_topic may be null if the page has no clear topic\n\n")
	b.WriteString("Return ONLY the JSON object:")
	return b.String()
}

func buildExplanationPrompt(title, text string) string {
	var b strings.Builder
	b.WriteString("You are a friendly teacher explaining complex topics to students.\n")
	b.WriteString("Take the following content and explain it in very simple terms that anyone can understand.\n\n")
	fmt.Fprintf(&b, "Document Title: %s\n\n", title)
	b.WriteString("Content:\n")
	b.WriteString(text)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("1. Use everyday language and simple words\n")
	b.WriteString("2. Include helpful analogies and examples\n")
	b.WriteString("3. Break down complex concepts step by step\n")
	b.WriteString("4. Use a conversational, friendly tone\n\n")
	b.WriteString("Provide the easy explanation now:")
	return b.String()
}

func buildConceptsPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Analyze the following educational content and identify the key concepts, terms, and topics.\n\n")
	b.WriteString("Content:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn a JSON array of key concepts. Example format:\n")
	b.WriteString(`["concept1", "concept2", "concept3"]`)
	b.WriteString("\n\nReturn ONLY the JSON array, nothing else:")
	return b.String()
}

func buildQuizPrompt(title string, difficulty models.Difficulty, count int, text string) string {
	instruction, ok := difficultyInstructions[difficulty]
	if !ok {
		instruction = difficultyInstructions[models.DifficultyMedium]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert quiz creator for educational content. Generate %d multiple-choice questions based on the following content.\n\n", count)
	fmt.Fprintf(&b, "Document Title: %s\n", title)
	fmt.Fprintf(&b, "Difficulty Level: %s\n", strings.ToUpper(string(difficulty)))
	b.WriteString(instruction)
	b.WriteString("\n\nContent:\n")
	b.WriteString(text)
	fmt.Fprintf(&b, "\n\nGenerate exactly %d questions in the following JSON format:\n", count)
	b.WriteString(`[
  {
    "question_text": "The question here?",
    "options": [
      {"option_id": "A", "option_text": "First option"},
      {"option_id": "B", "option_text": "Second option"},
      {"option_id": "C", "option_text": "Third option"},
      {"option_id": "D", "option_text": "Fourth option"}
    ],
    "correct_answer": "A",
    "explanation": "Brief explanation of why this is correct"
  }
]`)
	b.WriteString("\n\nImportant:\n")
	b.WriteString("- Each question must have exactly 4 options (A, B, C, D)\n")
	b.WriteString("- Provide clear, educational explanations\n")
	b.WriteString("- Make wrong answers plausible but clearly incorrect\n\n")
	b.WriteString("Return ONLY the JSON array:")
	return b.String()
}

func buildWeakTopicsPrompt(summary string, wrong []models.WrongAnswer) string {
	var b strings.Builder
	b.WriteString("Analyze the following incorrect quiz answers and identify the topics where the student needs improvement.\n\n")
	b.WriteString("Document Summary:\n")
	b.WriteString(summary)
	b.WriteString("\n\nIncorrect Answers:\n")
	for _, w := range wrong {
		selected := w.SelectedAnswer
		if selected == "" {
			selected = "(no answer)"
		}
		fmt.Fprintf(&b, "- Q: %s | Selected: %s | Correct: %s\n", w.QuestionText, selected, w.CorrectAnswer)
	}
	b.WriteString("\nBased on these wrong answers, identify 3-5 specific topics or concepts the student should review.\n")
	b.WriteString(`Return a JSON array of topic names. Example: ["Topic 1", "Topic 2", "Topic 3"]`)
	b.WriteString("\n\nReturn ONLY the JSON array:")
	return b.String()
}

func buildDocumentChatSystemPrompt(title, summary, excerpt string) string {
	var b strings.Builder
	b.WriteString("You are a patient tutor answering questions about a study document. ")
	b.WriteString("Answer only from the material below. If the answer is not in the material, say so.\n\n")
	fmt.Fprintf(&b, "Document Title: %s\n\n", title)
	b.WriteString("Summary:\n")
	b.WriteString(summary)
	if excerpt != "" {
		b.WriteString("\n\nExcerpt:\n")
		b.WriteString(excerpt)
	}
	return b.String()
}
