package constant

// Prompts for the review generation pipeline. Every prompt demands strict
// JSON output; pkg/review/llmgen extracts and validates the payload.

const (
	GenerateReviewPrompt = `
You are an experienced general practice trainer writing a structured case-based
discussion review for a trainee.

Case description:
"""
%s
"""

Selected capabilities (write one narrative block for EACH, keyed exactly by
these names, no more and no fewer):
%s

Instructions:
1. Write in the first person, as the trainee reflecting on their own case.
2. Keep clinical details consistent with the case description. Do not invent
   identifying patient details.
3. Output MUST be a single valid JSON object with exactly this shape:
{
  "case_title": "short human-readable case label",
  "sections": {
    "brief_description": "2-4 sentence factual summary of the case",
    "capabilities": { "<capability name>": "narrative block", ... },
    "reflection": "what went well, what was difficult, what you would change",
    "learning_needs": "concrete learning needs arising from the case"
  }
}
No markdown fences, no commentary outside the JSON.`

	ImproveReviewPrompt = `
You are revising a structured case-based discussion review.

Current review (full text):
"""
%s
"""

Capabilities that must keep their own narrative blocks (exact keys):
%s

Improvement instructions from the author:
"""
%s
"""

Rewrite the whole review applying the instructions. Output MUST be a single
valid JSON object with the same shape as the original:
{
  "case_title": "...",
  "sections": {
    "brief_description": "...",
    "capabilities": { "<capability name>": "...", ... },
    "reflection": "...",
    "learning_needs": "..."
  }
}
No markdown fences, no commentary outside the JSON.`

	ImproveSectionPrompt = `
You are revising ONE section of a case-based discussion review.

Section: %s
Current text:
"""
%s
"""

Improvement instructions:
"""
%s
"""

Rewrite only this section applying the instructions, keeping the same voice.
Output MUST be a single valid JSON object:
{"improved_content": "the rewritten section text"}
No markdown fences, no commentary outside the JSON.`

	SelectCapabilitiesPrompt = `
You are mapping a clinical case to training capabilities.

Case description:
"""
%s
"""

Available capabilities:
%s

Pick the 1 to 3 capabilities this case best demonstrates, most relevant first.
Use the exact names from the list. Output MUST be valid JSON:
{"capabilities": ["name", ...]}
No markdown fences, no commentary outside the JSON.`

	SelectExperienceGroupsPrompt = `
You are classifying a clinical case into experience groups.

Case description:
"""
%s
"""

Available groups:
%s

Pick every group the case belongs to, most relevant first. Use the exact
labels from the list. Output MUST be valid JSON:
{"experience_groups": ["label", ...]}
No markdown fences, no commentary outside the JSON.`
)
