package validate

import (
	"strings"

	"agentsurvey/internal/coerce"
	"agentsurvey/internal/question"
)

// Reply is a raw model reply split into the fields the schema checks
type Reply struct {
	Answer          any
	Comment         string
	GeneratedTokens string

	// AnswerLine is the text the answer was parsed from
	AnswerLine string
}

func (r Reply) object() map[string]any {
	return map[string]any{
		"answer":           r.Answer,
		"comment":          r.Comment,
		"generated_tokens": r.GeneratedTokens,
	}
}

// ParseReply reads a raw reply. A JSON object with an "answer" key is taken
// as-is. Otherwise the first line is the answer and the remaining lines the
// comment, unless the type uses the whole reply as its answer.
func ParseReply(raw string, t *question.Type, c question.Constraints) Reply {
	trimmed := strings.TrimSpace(raw)
	reply := Reply{GeneratedTokens: raw}

	if obj, ok := coerce.Scalar(trimmed).(map[string]any); ok {
		if answer, has := obj["answer"]; has {
			reply.Answer = answer
			reply.AnswerLine = coerce.Text(trimmed)
			if comment, ok := obj["comment"].(string); ok && c.IncludeComment {
				reply.Comment = comment
			}
			return reply
		}
	}

	if t.WholeReply {
		reply.AnswerLine = trimmed
		reply.Answer = t.Parse(trimmed, c)
		return reply
	}

	line, rest, _ := strings.Cut(trimmed, "\n")
	reply.AnswerLine = strings.TrimSpace(line)
	reply.Answer = t.Parse(reply.AnswerLine, c)
	if c.IncludeComment {
		reply.Comment = strings.TrimSpace(rest)
	}
	return reply
}
