package llm

import (
	"fmt"
	"strings"
)

// TopicExtractionPrompt asks for at most maxTopics topics describing content,
// preferring the existing vocabulary.
func TopicExtractionPrompt(existing []string, content string, maxTopics int) string {
	vocabulary := "(none yet)"
	if len(existing) > 0 {
		vocabulary = strings.Join(existing, ", ")
	}

	return fmt.Sprintf(`You are a topic extraction system. Identify the most relevant topics for the given content.
First try to select from the list of existing topics. Only create a new topic if none of the existing ones fits.
Return %[1]d topics at most, fewer if appropriate.
Format your response as a comma-separated list of short lowercase topics with no explanation or other text.

EXISTING TOPICS: %[2]s

CONTENT: %[3]s

Based on the content above, provide the most relevant topics (maximum %[1]d). Prefer existing topics when possible.
Response format: topic1, topic2, topic3`, maxTopics, vocabulary, content)
}
