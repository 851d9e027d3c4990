package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantMsg  string
		wantKind Kind
	}{
		{
			name:     "load error",
			code:     "E201",
			wantMsg:  "Module failed to load",
			wantKind: KindLoad,
		},
		{
			name:     "validation error",
			code:     "E202",
			wantMsg:  "Not JSON-serializable",
			wantKind: KindValidation,
		},
		{
			name:     "enumeration error",
			code:     "E203",
			wantMsg:  "Invalid paths() result",
			wantKind: KindEnumeration,
		},
		{
			name:     "unknown error code",
			code:     "E999",
			wantMsg:  "Unknown error",
			wantKind: KindNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", err.Kind, tt.wantKind)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	err := New("E203").WithFile("src-api/users/[id].js").WithDetail("paths() must return an array")
	want := "E203: [module:src-api/users/[id].js] Invalid paths() result: paths() must return an array"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &Error{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}
}

func TestError_WrapSetsDetail(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := New("E201").Wrap(inner)

	if err.Detail != "boom" {
		t.Errorf("Detail = %q, want %q", err.Detail, "boom")
	}
	if !stderrors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	kept := New("E201").WithDetail("custom").Wrap(inner)
	if kept.Detail != "custom" {
		t.Errorf("Detail = %q, want %q", kept.Detail, "custom")
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("route /users/:id: %w", New("E202").WithLocator("$.cb"))
	if KindOf(wrapped) != KindValidation {
		t.Errorf("KindOf = %q, want %q", KindOf(wrapped), KindValidation)
	}
	if KindOf(fmt.Errorf("plain")) != KindNone {
		t.Error("plain errors have no kind")
	}
	if KindOf(nil) != KindNone {
		t.Error("nil has no kind")
	}
}

func TestError_WithLocation(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "index.ts")
	content := `export default {
  project: 'demo',
  broken: ,
  ok: true,
};
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New("E201").WithLocation(tmpFile, 3, 11)

	if err.Location == nil {
		t.Fatal("Location is nil")
	}
	if err.Location.Line != 3 || err.Location.Column != 11 {
		t.Errorf("Location = %v, want 3:11", err.Location)
	}
	if len(err.Context) == 0 {
		t.Error("Context should not be empty")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E204") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	se := New("E201")
	if FromError(fmt.Errorf("ctx: %w", se), "E204") != se {
		t.Error("FromError should return the coded error in the chain")
	}

	std := stderrors.New("disk full")
	result := FromError(std, "E204")
	if result.Wrapped != std {
		t.Error("Standard error should be wrapped")
	}
	if result.Kind != KindFilesystem {
		t.Errorf("Kind = %q, want %q", result.Kind, KindFilesystem)
	}
}

func TestLocation_String(t *testing.T) {
	tests := []struct {
		name string
		loc  *Location
		want string
	}{
		{name: "nil location", loc: nil, want: ""},
		{name: "with column", loc: &Location{File: "a.ts", Line: 10, Column: 5}, want: "a.ts:10:5"},
		{name: "without column", loc: &Location{File: "a.ts", Line: 10}, want: "a.ts:10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E202").
		WithFile("src-api/index.js").
		WithLocator("$.items[2].when").
		WithDetail("Only plain objects/arrays allowed (got Date)").
		WithSuggestion("Convert dates with toISOString()")

	formatted := err.Format()

	for _, want := range []string{
		"E202",
		"Not JSON-serializable",
		"src-api/index.js",
		"$.items[2].when",
		"Hint:",
		"Learn more:",
	} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Format should contain %q:\n%s", want, formatted)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("E201").WithFile("src-api/index.js").WithDetail("boom")
	want := "src-api/index.js: E201: Module failed to load: boom"
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("E203").WithParam("slug").WithDetail("must be non-empty")
	json := err.FormatJSON()

	for _, want := range []string{`"code":"E203"`, `"kind":"enumeration"`, `"param":"slug"`} {
		if !strings.Contains(json, want) {
			t.Errorf("JSON should contain %s: %s", want, json)
		}
	}
}

func TestGetTemplate(t *testing.T) {
	template, ok := GetTemplate("E204")
	if !ok {
		t.Fatal("E204 should exist")
	}
	if template.Kind != KindFilesystem {
		t.Errorf("Kind = %q, want %q", template.Kind, KindFilesystem)
	}
	if len(GetAllCodes()) == 0 {
		t.Error("GetAllCodes() should return codes")
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 10)
	for _, line := range lines {
		if len(line) > 10 {
			t.Errorf("line %q exceeds width", line)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should produce no lines")
	}
}
