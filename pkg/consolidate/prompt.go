package consolidate

import (
	"fmt"
	"strings"
	"time"
)

// Exchange is the latest question/response pair driving a consolidation run.
type Exchange struct {
	Question string
	Response string
}

// promptInput gathers everything the reasoning model sees.
type promptInput struct {
	CharacterName string
	Persona       string
	PriorMemories string // JSON array of current entries
	RecentHistory string
	SocialFacts   string
	LongHistory   string
	Exchange      Exchange
	Now           time.Time
}

// systemPrompt frames the model as a memory curator for one character.
func systemPrompt(characterName, persona string, maxEntries int) string {
	var b strings.Builder
	b.WriteString("You are an assistant dedicated to maintaining the important memories of an AI character. ")
	b.WriteString("Your task is to analyze the conversation, extract information worth keeping, and update the character's important-memory list. ")
	b.WriteString("Follow the given steps exactly and keep the output format strict.\n\n")
	fmt.Fprintf(&b, "Character name: %s\n\n", characterName)
	if persona != "" {
		fmt.Fprintf(&b, "Character persona:\n%s\n\n", persona)
	}
	b.WriteString("Criteria for importance:\n")
	b.WriteString("1. Personal information about the user and special events.\n")
	b.WriteString("2. Things with potential impact in the near future.\n")
	b.WriteString("3. Rare or unique details.\n")
	b.WriteString("4. Relevance to the character's core goals.\n")
	b.WriteString("5. Material relevant to the current question; extract the information before storing it.\n\n")
	fmt.Fprintf(&b, "Keep these factors in mind throughout the analysis, and never exceed %d entries. Output JSON in the required format.\n", maxEntries)
	return b.String()
}

// userPrompt lays out the memory state, the retrieved context, and the update
// steps.
func userPrompt(in promptInput, maxEntries int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Update the important-memory list for %s using the information below.\n\n", in.CharacterName)

	b.WriteString("Current important memories:\n```json\n")
	b.WriteString(in.PriorMemories)
	b.WriteString("\n```\n\n")

	b.WriteString("Recent conversation history:\n```\n")
	b.WriteString(in.RecentHistory)
	b.WriteString("\n```\n\n")

	fmt.Fprintf(&b, "Background facts possibly relevant to the latest exchange:\n```\n%s\n```\n\n", in.SocialFacts)
	fmt.Fprintf(&b, "Older conversation fragments possibly relevant to the latest exchange:\n```\n%s\n```\n\n", in.LongHistory)

	b.WriteString("Latest exchange:\n")
	fmt.Fprintf(&b, "Time: %s\n", in.Now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "User: %s\n", in.Exchange.Question)
	fmt.Fprintf(&b, "%s: %s\n\n", in.CharacterName, in.Exchange.Response)

	b.WriteString("Update the important memories through these steps:\n")
	b.WriteString("1. Check whether the latest exchange contains personal information about the user: name, occupation, age, interests, location, contact details, family, education, employer, social accounts, and the like.\n")
	b.WriteString("2. If personal information appears, record it as a permanent important memory.\n")
	b.WriteString("3. If a special event appears, record it as a permanent important memory.\n")
	b.WriteString("4. If something with near-future impact appears, record it as a permanent important memory.\n")
	b.WriteString("5. If something rare or unique appears, record it as a permanent important memory.\n")
	b.WriteString("6. Add the new important information to the memory list.\n")
	b.WriteString("7. If new information duplicates or contradicts old entries, merge or update them.\n")
	b.WriteString("8. If the list grows too long, drop or summarize the least important old entries.\n")
	fmt.Fprintf(&b, "9. Make sure the updated list has at most %d entries.\n\n", maxEntries)

	b.WriteString("Output the result as JSON in exactly this shape:\n\n")
	b.WriteString(`{
    "thought_process": [
        {"step": 1, "analysis": "analysis of the latest exchange"},
        {"step": 2, "evaluation": "evaluation of the important information"},
        {"step": 3, "addition": "how new entries were added"},
        {"step": 4, "merge_update": "how entries were merged or updated"},
        {"step": 5, "optimize": "how old entries were dropped or summarized"}
    ],
    "updated_important_memories": [
        "updated important memory 1",
        "updated important memory 2"
    ]
}`)
	b.WriteString("\n")
	return b.String()
}
