package composer

import "fmt"

// BuildToolPrompt wraps the user query and the assembled video context
// into the prompt the tool broker sends to the tool provider.
func BuildToolPrompt(query, videoContext string) string {
	return fmt.Sprintf(`**Context for Query Processing:**

A user is asking a question about a video. This video context details specific observations from the video, including described entities, actions, dialogue, sounds, visuals, and overall themes. The information in the video context may be useful to fully and best address the user query.

---

**User Query:**
%s

---

**Video Context:**
%s
---
`, query, videoContext)
}

// BuildSynthesisPrompt builds the final-answer prompt combining the
// video context with the tool result.
func BuildSynthesisPrompt(query, videoContext, toolResult string) string {
	return fmt.Sprintf(`**Task:**
Please answer the user query comprehensively by synthesizing relevant information from **both** the Video Context (details extracted directly from the video) and the relevant Internet Search Results provided below.

**Instructions:**
1.  Analyze the User Query to understand the core question.
2.  Review the Video Context (summary, themes, specific segments) for information directly observable in the video.
3.  Review the Internet Search Results for broader context, facts, or related information.
4.  Formulate a cohesive answer that integrates relevant details from both sources.
5.  Prioritize information from the Video Context when the query pertains to specific events or details *within* the video itself.
6.  Use the Internet Search Results to enrich the answer, provide background, clarify concepts, or address aspects of the query not covered by the video context alone.
7.  If the combined information is insufficient to answer the query fully, state what information is available and what is missing. Do not speculate beyond the provided contexts.
8.  Generate the response in plain text only, without any markdown formatting.
9.  Do NOT include citations.
10. You can optionally include timestamps or timestamp ranges WITHOUT milliseconds (only minutes and seconds) if they are helpful to the user. If you include timestamps, format them as "mm:ss" and timestamp ranges as "mm:ss-mm:ss".
11. Provide a clear and concise answer.

---

**User Query:**
%s

---

**Video Context:**
%s

---

**Internet Search Results:**
%s

---

**Final Answer:**
`, query, videoContext, toolResult)
}
