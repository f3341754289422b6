package core

import "fmt"

// SystemMessage creates a system message with the given text.
func SystemMessage(text string) Message {
	return Message{Role: System, Parts: []Part{Text{Text: text}}}
}

// UserMessage creates a user message from the provided parts.
func UserMessage(parts ...Part) Message {
	clone := append([]Part(nil), parts...)
	return Message{Role: User, Parts: clone}
}

// AssistantMessage creates an assistant message with plain text.
func AssistantMessage(text string) Message {
	return Message{Role: Assistant, Parts: []Part{Text{Text: text}}}
}

// ToolMessage wraps tool results into a tool-role message.
func ToolMessage(parts ...Part) Message {
	clone := append([]Part(nil), parts...)
	return Message{Role: Tool, Parts: clone}
}

// TextPart is a convenience for constructing a text part.
func TextPart(text string) Text {
	return Text{Text: text}
}

// ImagePart builds an Image part from bytes.
func ImagePart(data []byte, mime string) Image {
	return Image{Source: BlobRef{Kind: BlobBytes, Bytes: data, MIME: mime, Size: int64(len(data))}}
}

// ImageURLPart builds an Image part referencing a URL.
func ImageURLPart(url, mime string) Image {
	return Image{Source: BlobRef{Kind: BlobURL, URL: url, MIME: mime}}
}

// FilePart builds a File part from bytes with a required media type.
func FilePart(data []byte, mime, name string) File {
	return File{Source: BlobRef{Kind: BlobBytes, Bytes: data, MIME: mime, Size: int64(len(data))}, Name: name}
}

// TextPrompt builds a single-user-message prompt.
func TextPrompt(text string) []Message {
	return []Message{UserMessage(TextPart(text))}
}

// ValidatePrompt checks message well-formedness plus the tool pairing
// invariant: every non-provider-executed tool call in an assistant message
// must be answered by a tool result with the same id, or denied via an
// approval response, before the next assistant message.
func ValidatePrompt(messages []Message) error {
	open := map[string]string{} // tool_call_id -> tool name
	approvalCall := map[string]string{}
	gated := map[string]bool{} // tool_call_id -> has approval request
	denied := map[string]bool{}

	for i, msg := range messages {
		if msg.Role == "" {
			return NewInvalidPrompt(fmt.Sprintf("message %d missing role", i))
		}
		if len(msg.Parts) == 0 {
			return NewInvalidPrompt(fmt.Sprintf("message %d missing parts", i))
		}
		if msg.Role == Assistant && len(open) > 0 {
			for id, name := range open {
				if denied[id] || gated[id] {
					continue
				}
				return NewInvalidPrompt(fmt.Sprintf("tool call %s (%s) has no tool result before the next assistant message", id, name))
			}
		}
		for j, part := range msg.Parts {
			switch p := part.(type) {
			case Text, Reasoning, Image, Source:
			case File:
				if p.Source.MIME == "" {
					return NewInvalidPrompt(fmt.Sprintf("message %d part %d: file part requires a media type", i, j))
				}
			case ToolCall:
				if msg.Role != Assistant {
					return NewInvalidPrompt(fmt.Sprintf("message %d part %d: tool call outside assistant message", i, j))
				}
				if !p.ProviderExecuted {
					open[p.ID] = p.Name
				}
			case ToolResult:
				delete(open, p.ID)
			case ToolApprovalRequest:
				approvalCall[p.ApprovalID] = p.ToolCallID
				gated[p.ToolCallID] = true
			case ToolApprovalResponse:
				if callID, ok := approvalCall[p.ApprovalID]; ok && !p.Approved {
					denied[callID] = true
					delete(open, callID)
				}
			default:
				return NewInvalidPrompt(fmt.Sprintf("message %d part %d has unsupported type %T", i, j, part))
			}
		}
	}
	for id, name := range open {
		if !denied[id] && !gated[id] {
			return NewInvalidPrompt(fmt.Sprintf("tool call %s (%s) is unanswered at end of prompt", id, name))
		}
	}
	return nil
}

// PromptText concatenates the text parts of a prompt for quick inspection.
func PromptText(messages []Message) string {
	out := ""
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(Text); ok {
				out += text.Text
			}
		}
	}
	return out
}
