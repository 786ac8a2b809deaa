package llm

import (
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
		wantVal string
		wantNil bool
	}{
		{
			name:    "Fenced block",
			content: "Here is my answer:\n```json\n{\"tool\": \"cli\"}\n```\nDone.",
			wantKey: "tool",
			wantVal: "cli",
		},
		{
			name:    "Fenced block without language tag",
			content: "```\n{\"tool\": \"file\"}\n```",
			wantKey: "tool",
			wantVal: "file",
		},
		{
			name:    "Bare object",
			content: `{"analysis": "went fine"}`,
			wantKey: "analysis",
			wantVal: "went fine",
		},
		{
			name:    "Bare object with whitespace",
			content: "  \n{\"analysis\": \"ok\"}\n  ",
			wantKey: "analysis",
			wantVal: "ok",
		},
		{
			name:    "Prose only",
			content: "I could not produce JSON, sorry.",
			wantNil: true,
		},
		{
			name:    "Broken fence falls through to whole-content parse",
			content: "```json\n{\"a\": \n```",
			wantNil: true,
		},
		{
			name:    "Empty",
			content: "",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.content)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected object, got nil")
			}
			if v, _ := got[tt.wantKey].(string); v != tt.wantVal {
				t.Errorf("key %q = %q, want %q", tt.wantKey, v, tt.wantVal)
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	obj := ExtractJSON(`{
		"tool": "cli",
		"success": true,
		"lessons_learned": ["one", 2, "three"],
		"params": {"command": "ls", "count": 3}
	}`)
	if obj == nil {
		t.Fatal("extract failed")
	}

	if got := JSONString(obj, "tool", "none"); got != "cli" {
		t.Errorf("JSONString = %q", got)
	}
	if got := JSONString(obj, "missing", "none"); got != "none" {
		t.Errorf("JSONString fallback = %q", got)
	}
	if !JSONBool(obj, "success", false) {
		t.Error("JSONBool should be true")
	}
	if JSONBool(obj, "missing", false) {
		t.Error("JSONBool fallback should be false")
	}

	lessons := JSONStringSlice(obj, "lessons_learned")
	if len(lessons) != 2 || lessons[0] != "one" || lessons[1] != "three" {
		t.Errorf("JSONStringSlice = %v", lessons)
	}

	params := JSONStringMap(obj, "params")
	if params["command"] != "ls" {
		t.Errorf("JSONStringMap command = %q", params["command"])
	}
	if params["count"] != "3" {
		t.Errorf("JSONStringMap count = %q", params["count"])
	}

	// Nil object is safe everywhere.
	if got := JSONString(nil, "k", "d"); got != "d" {
		t.Error("nil object should return fallback")
	}
	if JSONStringSlice(nil, "k") != nil {
		t.Error("nil object should return nil slice")
	}
}
