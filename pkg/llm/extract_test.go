package llm

import (
	"strings"
	"testing"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	input := `{"name": "test", "value": 123}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != input {
		t.Errorf("expected %q, got %q", input, result)
	}
}

func TestExtractJSON_PlainArray(t *testing.T) {
	input := `[{"name": "test"}, {"name": "test2"}]`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != input {
		t.Errorf("expected %q, got %q", input, result)
	}
}

func TestExtractJSON_NestedArraysAndObjects(t *testing.T) {
	input := `{"columns": [{"nested": {"array": [1, 2, 3]}}]}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != input {
		t.Errorf("expected %q, got %q", input, result)
	}
}

func TestExtractJSON_WithThinkTags(t *testing.T) {
	input := `<think>
Let me analyze this request...
I should return a JSON object.
</think>
{"name": "test", "value": 123}`

	expected := `{"name": "test", "value": 123}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestExtractJSON_WithTextAroundJSON(t *testing.T) {
	input := `Here is the JSON response:
{"name": "test"}
Let me know if you need anything else.`

	expected := `{"name": "test"}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestExtractJSON_BracketsInStrings(t *testing.T) {
	input := `{"message": "Use {braces} and [brackets] in text", "count": 1}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != input {
		t.Errorf("expected %q, got %q", input, result)
	}
}

func TestExtractJSON_EscapedQuotesInStrings(t *testing.T) {
	input := `{"message": "He said \"hello\"", "valid": true}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != input {
		t.Errorf("expected %q, got %q", input, result)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	input := `This is just plain text with no JSON.`
	_, err := ExtractJSON(input)
	if err == nil {
		t.Error("expected error for input with no JSON")
	}
}

func TestExtractJSON_InvalidJSON(t *testing.T) {
	input := `{"unclosed": "object"`
	_, err := ExtractJSON(input)
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestExtractJSON_EmptyInput(t *testing.T) {
	input := ``
	_, err := ExtractJSON(input)
	if err == nil {
		t.Error("expected error for empty input")
	}
}

func TestParseJSONResponse_Object(t *testing.T) {
	type testStruct struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	input := `<think>thinking</think>{"name": "test", "value": 42}`
	result, err := ParseJSONResponse[testStruct](input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "test" {
		t.Errorf("expected name 'test', got %q", result.Name)
	}
	if result.Value != 42 {
		t.Errorf("expected value 42, got %d", result.Value)
	}
}

func TestParseJSONResponse_Array(t *testing.T) {
	type item struct {
		ID string `json:"id"`
	}

	input := `[{"id": "a"}, {"id": "b"}]`
	result, err := ParseJSONResponse[[]item](input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("expected 2 items, got %d", len(result))
	}
	if result[0].ID != "a" {
		t.Errorf("expected first id 'a', got %q", result[0].ID)
	}
}

func TestExtractThinking(t *testing.T) {
	input := `<think>reasoning about the schema</think>{"ok": true}`
	if got := ExtractThinking(input); got != "reasoning about the schema" {
		t.Errorf("ExtractThinking() = %q", got)
	}
	if got := ExtractThinking("no tags here"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestExtractCode_TaggedFence(t *testing.T) {
	input := "Here's the program:\n\n```go\npackage main\n\nfunc Generate(metadataJSON string, targetRows int) (string, error) {\n\treturn \"\", nil\n}\n```\n\nIt parses the metadata first."

	code, err := ExtractCode(input, "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(code, "package main") {
		t.Errorf("expected code to start with package clause, got %q", code)
	}
	if strings.Contains(code, "```") {
		t.Error("fences must be stripped")
	}
}

func TestExtractCode_PrefersMatchingLanguage(t *testing.T) {
	input := "```json\n{\"schema\": true}\n```\n\n```go\npackage main\n```"

	code, err := ExtractCode(input, "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "package main" {
		t.Errorf("expected the go block, got %q", code)
	}
}

func TestExtractCode_UntaggedFence(t *testing.T) {
	input := "```\npackage main\n\nvar x = 1\n```"

	code, err := ExtractCode(input, "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(code, "package main") {
		t.Errorf("expected fenced body, got %q", code)
	}
}

func TestExtractCode_BareSource(t *testing.T) {
	input := "package main\n\nfunc Generate(metadataJSON string, targetRows int) (string, error) { return \"\", nil }"

	code, err := ExtractCode(input, "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != input {
		t.Errorf("expected bare source passthrough, got %q", code)
	}
}

func TestExtractCode_StripsThinkTags(t *testing.T) {
	input := "<think>plan the generator</think>\n```go\npackage main\n```"

	code, err := ExtractCode(input, "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "package main" {
		t.Errorf("expected think tags stripped, got %q", code)
	}
}

func TestExtractCode_NoCode(t *testing.T) {
	_, err := ExtractCode("I cannot generate that program.", "go")
	if err == nil {
		t.Error("expected error for prose-only response")
	}
}
