package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Role identifies the author of a message.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
	Tool      Role = "tool"
)

// Message represents a single conversation turn.
type Message struct {
	Role     Role           `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartType identifies the type of content stored in a Part.
type PartType string

const (
	PartTypeText             PartType = "text"
	PartTypeReasoning        PartType = "reasoning"
	PartTypeImage            PartType = "image"
	PartTypeFile             PartType = "file"
	PartTypeSource           PartType = "source"
	PartTypeToolCall         PartType = "tool-call"
	PartTypeToolResult       PartType = "tool-result"
	PartTypeApprovalRequest  PartType = "tool-approval-request"
	PartTypeApprovalResponse PartType = "tool-approval-response"
)

// Part is the interface implemented by all message fragments.
type Part interface {
	PartType() PartType
}

// Text represents plain text content.
type Text struct {
	Text            string         `json:"text"`
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

func (t Text) PartType() PartType { return PartTypeText }

// Reasoning carries chain-of-thought text emitted by reasoning models.
type Reasoning struct {
	Text             string         `json:"text"`
	ProviderMetadata map[string]any `json:"provider_metadata,omitempty"`
}

func (r Reasoning) PartType() PartType { return PartTypeReasoning }

// Image references image content by bytes, base64 payload, or URL.
type Image struct {
	Source          BlobRef        `json:"source"`
	Alt             string         `json:"alt,omitempty"`
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

func (i Image) PartType() PartType { return PartTypeImage }

// File references document content. The media type is required.
type File struct {
	Source BlobRef `json:"source"`
	Name   string  `json:"name,omitempty"`
}

func (f File) PartType() PartType { return PartTypeFile }

// Source points to a citation surfaced by the model.
type Source struct {
	ID               string         `json:"id,omitempty"`
	URL              string         `json:"url,omitempty"`
	Title            string         `json:"title,omitempty"`
	ProviderMetadata map[string]any `json:"provider_metadata,omitempty"`
}

func (s Source) PartType() PartType { return PartTypeSource }

// ToolCall records a model-initiated tool invocation.
type ToolCall struct {
	ID               string         `json:"tool_call_id"`
	Name             string         `json:"tool_name"`
	Input            map[string]any `json:"input"`
	RawInput         string         `json:"raw_input,omitempty"`
	ProviderExecuted bool           `json:"provider_executed,omitempty"`
	ProviderMetadata map[string]any `json:"provider_metadata,omitempty"`
}

func (t ToolCall) PartType() PartType { return PartTypeToolCall }

// ToolOutputKind tags the shape of a tool result payload.
type ToolOutputKind string

const (
	ToolOutputText      ToolOutputKind = "text"
	ToolOutputJSON      ToolOutputKind = "json"
	ToolOutputErrorText ToolOutputKind = "error-text"
	ToolOutputErrorJSON ToolOutputKind = "error-json"
	ToolOutputContent   ToolOutputKind = "content"
)

// ToolOutputContentItem is an element of a content-style tool output. It is
// either inline text or a media reference by opaque file id.
type ToolOutputContentItem struct {
	Type      string `json:"type"` // "text" or "media"
	Text      string `json:"text,omitempty"`
	FileID    string `json:"file_id,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// ToolResultOutput is the tagged payload of a tool result.
type ToolResultOutput struct {
	Kind    ToolOutputKind          `json:"kind"`
	Text    string                  `json:"text,omitempty"`
	JSON    json.RawMessage         `json:"json,omitempty"`
	Content []ToolOutputContentItem `json:"content,omitempty"`
}

// IsError reports whether the output carries an error payload.
func (o ToolResultOutput) IsError() bool {
	return o.Kind == ToolOutputErrorText || o.Kind == ToolOutputErrorJSON
}

// TextOutput builds a plain-text tool output.
func TextOutput(text string) ToolResultOutput {
	return ToolResultOutput{Kind: ToolOutputText, Text: text}
}

// JSONOutput builds a JSON tool output from any serializable value.
func JSONOutput(value any) ToolResultOutput {
	data, err := json.Marshal(value)
	if err != nil {
		return ToolResultOutput{Kind: ToolOutputErrorText, Text: fmt.Sprintf("marshal tool output: %v", err)}
	}
	return ToolResultOutput{Kind: ToolOutputJSON, JSON: data}
}

// ErrorOutput builds an error-text tool output.
func ErrorOutput(err error) ToolResultOutput {
	if err == nil {
		return ToolResultOutput{Kind: ToolOutputErrorText}
	}
	return ToolResultOutput{Kind: ToolOutputErrorText, Text: err.Error()}
}

// ToolResult records the response to a tool invocation.
type ToolResult struct {
	ID               string           `json:"tool_call_id"`
	Name             string           `json:"tool_name"`
	Output           ToolResultOutput `json:"output"`
	ProviderExecuted bool             `json:"provider_executed,omitempty"`
	Preliminary      bool             `json:"preliminary,omitempty"`
}

func (t ToolResult) PartType() PartType { return PartTypeToolResult }

// ToolApprovalRequest asks the caller to approve a gated tool call.
type ToolApprovalRequest struct {
	ApprovalID string `json:"approval_id"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name,omitempty"`
}

func (t ToolApprovalRequest) PartType() PartType { return PartTypeApprovalRequest }

// ToolApprovalResponse carries the caller's decision for a prior approval request.
type ToolApprovalResponse struct {
	ApprovalID string `json:"approval_id"`
	Approved   bool   `json:"approved"`
	Reason     string `json:"reason,omitempty"`
}

func (t ToolApprovalResponse) PartType() PartType { return PartTypeApprovalResponse }

// BlobKind identifies how binary data is referenced.
type BlobKind string

const (
	BlobBytes    BlobKind = "bytes"
	BlobBase64   BlobKind = "base64"
	BlobPath     BlobKind = "path"
	BlobURL      BlobKind = "url"
	BlobProvider BlobKind = "provider"
)

// BlobRef points to binary data without forcing immediate loading.
type BlobRef struct {
	Kind BlobKind `json:"kind"`

	Bytes      []byte `json:"bytes,omitempty"`
	Base64Data string `json:"base64,omitempty"`
	Path       string `json:"path,omitempty"`
	URL        string `json:"url,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`

	MIME string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Validate ensures the blob reference is well-formed.
func (b BlobRef) Validate() error {
	switch b.Kind {
	case BlobBytes:
		if len(b.Bytes) == 0 {
			return errors.New("bytes kind requires data")
		}
	case BlobBase64:
		if b.Base64Data == "" {
			return errors.New("base64 kind requires data")
		}
	case BlobPath:
		if b.Path == "" {
			return errors.New("path kind requires path")
		}
	case BlobURL:
		if b.URL == "" {
			return errors.New("url kind requires URL")
		}
	case BlobProvider:
		if b.ProviderID == "" {
			return errors.New("provider kind requires provider ID")
		}
	case "":
		return errors.New("blob kind is required")
	default:
		return fmt.Errorf("unknown blob kind: %s", b.Kind)
	}
	return nil
}

// Base64 returns a base64 representation of the binary data when it is
// available without network access.
func (b BlobRef) Base64() (string, error) {
	switch b.Kind {
	case BlobBytes:
		return base64.StdEncoding.EncodeToString(b.Bytes), nil
	case BlobBase64:
		return b.Base64Data, nil
	default:
		return "", fmt.Errorf("base64 conversion unsupported for kind %s", b.Kind)
	}
}

// Read materializes the blob contents into memory.
func (b BlobRef) Read() ([]byte, error) {
	reader, err := b.Stream()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// Stream returns an io.ReadCloser for the blob contents. The caller is
// responsible for closing the returned reader. Network-based blobs use the
// default HTTP client.
func (b BlobRef) Stream() (io.ReadCloser, error) {
	switch b.Kind {
	case BlobBytes:
		buf := make([]byte, len(b.Bytes))
		copy(buf, b.Bytes)
		return io.NopCloser(bytes.NewReader(buf)), nil
	case BlobBase64:
		data, err := base64.StdEncoding.DecodeString(b.Base64Data)
		if err != nil {
			return nil, fmt.Errorf("decode base64 blob: %w", err)
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	case BlobPath:
		if b.Path == "" {
			return nil, errors.New("blob path is empty")
		}
		return os.Open(b.Path)
	case BlobURL:
		if b.URL == "" {
			return nil, errors.New("blob url is empty")
		}
		resp, err := http.Get(b.URL)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, fmt.Errorf("blob url returned status %s", resp.Status)
		}
		return resp.Body, nil
	case BlobProvider:
		return nil, errors.New("provider-managed blobs must be resolved by the provider")
	default:
		return nil, fmt.Errorf("unsupported blob kind %q", b.Kind)
	}
}
