package summary

import "strings"

const mapPromptTemplate = `Extract the key information from this transcript section:
{text}

Return a brief summary focusing on the main points discussed.`

const combinePromptTemplate = `Create a structured summary of the video content from these summaries.
Format your response as a JSON object with the following structure:
{
    "main_topic": "Brief one-sentence description of the video's main topic",
    "key_points": [
        "First key point",
        "Second key point",
        "Third key point"
    ],
    "important_details": [
        "First important detail",
        "Second important detail",
        "Third important detail"
    ],
    "takeaways": [
        "First main takeaway",
        "Second main takeaway",
        "Third main takeaway"
    ]
}

Summaries to combine:
{text}

Remember to maintain valid JSON format and include all required fields.`

func mapPrompt(chunk string) string {
	return strings.Replace(mapPromptTemplate, "{text}", chunk, 1)
}

func combinePrompt(summaries []string) string {
	return strings.Replace(combinePromptTemplate, "{text}", strings.Join(summaries, "\n\n"), 1)
}
