package pipeline

import (
	"fmt"

	"video-rag-be/pkg/utils"
)

const labelPrompt = `Look at this image carefully. Provide a concise structural description of what you see.

Rules:
1. Be specific about the TYPE of content (e.g., "Python code in a dark IDE", "network topology diagram", "photograph of a circuit board")
2. Keep it under 15 words.
3. Do NOT interpret or analyze the content, just classify what it visually IS.
4. Return ONLY the description, nothing else.`

func sufficiencyPrompt(label, transcriptContext, query string) string {
	return fmt.Sprintf(`Given this transcript context and visual description, can you answer the user's question?

Visual: %s
Transcript: %s
Question: %s

Respond ONLY "YES" or "NO".`, label, utils.Truncate(transcriptContext, 500), query)
}

func supplementPrompt(label, query string) string {
	return fmt.Sprintf(`The user is watching a YouTube video and highlighted something that looks like: "%s".
Their question is: "%s"

The video transcript doesn't sufficiently explain this. Please provide a concise, factual explanation that would help answer their question.
Focus on technical accuracy. Keep it under 200 words.`, label, query)
}

func synthesisPrompt(st *State) string {
	in := st.Input()

	correction := ""
	if st.CorrectionAttempts > 0 {
		correction = fmt.Sprintf(`
CORRECTION ATTEMPT #%d
Your previous answer was flagged by the validation guardrail as potentially inaccurate.
Previous validation score: %.2f
Please RE-EXAMINE the images more carefully and provide a corrected answer.
Focus specifically on what the CROPPED IMAGE actually shows, not what you assume.`, st.CorrectionAttempts, st.ValidationScore)
	}

	supplementary := "None needed"
	if st.ToolData != "" {
		supplementary = utils.Truncate(st.ToolData, 500)
	}

	return fmt.Sprintf(`You are an expert AI assistant analyzing a YouTube video frame.

USER QUESTION: %s

VISUAL CONTEXT:
- Image 1 (FULL FRAME): The complete video frame for macro context
- Image 2 (CROPPED SNIPPET): The specific area the user highlighted at coordinates [x=%.0f, y=%.0f, w=%.0f, h=%.0f]
- Visual Classification: %s

TRANSCRIPT CONTEXT (what the video creator was saying):
%s

SUPPLEMENTARY DATA:
%s
%s

INSTRUCTIONS:
1. Focus your answer on what the CROPPED SNIPPET shows
2. Use the FULL FRAME for surrounding context (what else is on screen)
3. Use the TRANSCRIPT to understand what the creator was explaining at this moment
4. Be specific, technical, and accurate
5. If you're uncertain about any detail, say so explicitly
6. Keep the answer concise but comprehensive (under 250 words)`,
		in.Query,
		in.BBox.X, in.BBox.Y, in.BBox.W, in.BBox.H,
		st.VisualLabel,
		utils.Truncate(st.TranscriptContext, 1500),
		supplementary,
		correction,
	)
}
