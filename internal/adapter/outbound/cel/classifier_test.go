package cel

import (
	"net/http"
	"strings"
	"testing"

	"github.com/danubesoft/ifn-gateway/internal/domain/upstream"
)

func TestNewClassifier_ValidExpression(t *testing.T) {
	c, err := NewClassifier(`status == 403 || content_type.contains("text/html")`, nil)
	if err != nil {
		t.Fatalf("NewClassifier() error: %v", err)
	}
	if c == nil {
		t.Fatal("NewClassifier() returned nil")
	}
}

func TestNewClassifier_InvalidExpression(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string // substring expected in error
	}{
		{"empty", "", "empty"},
		{"syntax error", "this is not valid !!!", "invalid expression"},
		{"undefined var", "nonexistent_var == true", "invalid expression"},
		{"non-bool result", "status + 1", "must return bool"},
		{"too long", strings.Repeat("a", 1025), "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassifier(tt.expr, nil)
			if err == nil {
				t.Fatalf("NewClassifier(%q) expected error, got nil", tt.expr)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestClassifier_Classify(t *testing.T) {
	c, err := NewClassifier(
		`status in [401, 403] || body_prefix.contains("<html")`, nil)
	if err != nil {
		t.Fatalf("NewClassifier() error: %v", err)
	}

	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        upstream.Verdict
	}{
		{"xml ok", http.StatusOK, "application/xml", "<?xml version=\"1.0\"?>", upstream.VerdictValid},
		{"forbidden", http.StatusForbidden, "application/xml", "", upstream.VerdictSessionInvalid},
		{"unauthorized", http.StatusUnauthorized, "", "", upstream.VerdictSessionInvalid},
		{"html body", http.StatusOK, "application/xml", "<HTML><body>login</body>", upstream.VerdictSessionInvalid},
		{"405 not listed by expression", http.StatusMethodNotAllowed, "application/xml", "", upstream.VerdictValid},
		{"server error passes through", http.StatusInternalServerError, "application/xml", "<eroare/>", upstream.VerdictValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.status, tt.contentType, []byte(tt.body))
			if got != tt.want {
				t.Errorf("Classify(%d, %q, %q) = %v, want %v",
					tt.status, tt.contentType, tt.body, got, tt.want)
			}
		})
	}
}

func TestClassifier_BodyPrefixLowercased(t *testing.T) {
	// The expression only needs to match lowercase markers; the adapter
	// normalizes the prefix before evaluation.
	c, err := NewClassifier(`body_prefix.contains("<!doctype html")`, nil)
	if err != nil {
		t.Fatalf("NewClassifier() error: %v", err)
	}

	got := c.Classify(http.StatusOK, "application/xml", []byte("<!DOCTYPE HTML><html>"))
	if got != upstream.VerdictSessionInvalid {
		t.Errorf("uppercase DOCTYPE not matched, got %v", got)
	}
}

func TestClassifier_BootstrapUsesHeuristic(t *testing.T) {
	// The expression marks everything invalid; bootstrap acceptance must
	// still follow the heuristic rules.
	c, err := NewClassifier(`true`, nil)
	if err != nil {
		t.Fatalf("NewClassifier() error: %v", err)
	}

	if !c.BootstrapAccepted(http.StatusOK, "application/xml", nil) {
		t.Error("200 XML probe should be accepted")
	}
	if !c.BootstrapAccepted(http.StatusMethodNotAllowed, "application/xml", nil) {
		t.Error("405 probe should be accepted")
	}
	if c.BootstrapAccepted(http.StatusOK, "text/html", []byte("<html>")) {
		t.Error("HTML probe should be rejected")
	}
}

func TestClassifier_CustomBootstrapStatuses(t *testing.T) {
	c, err := NewClassifier(`status == 403`, []int{200})
	if err != nil {
		t.Fatalf("NewClassifier() error: %v", err)
	}

	if c.BootstrapAccepted(http.StatusMethodNotAllowed, "application/xml", nil) {
		t.Error("405 should be rejected when the allow list is only 200")
	}
}

func TestValidateExpression_NestingDepth(t *testing.T) {
	buildNested := func(depth int) string {
		return strings.Repeat("(", depth) + "true" + strings.Repeat(")", depth)
	}

	if err := ValidateExpression(buildNested(50)); err != nil {
		t.Errorf("expression at nesting limit should be valid, got: %v", err)
	}
	err := ValidateExpression(buildNested(51))
	if err == nil {
		t.Fatal("expected error for 51 levels of nesting")
	}
	if !strings.Contains(err.Error(), "nesting too deep") {
		t.Errorf("error %q should contain 'nesting too deep'", err.Error())
	}
}

func TestValidateNesting(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"no_nesting", "true", false},
		{"single_level", "(true)", false},
		{"interleaved_types", "([{true}])", false},
		{"only_openers", strings.Repeat("(", 60), true},
		{"deep_square_brackets", strings.Repeat("[", 51) + strings.Repeat("]", 51), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNesting(tt.expr)
			if tt.wantErr && err == nil {
				t.Errorf("validateNesting(%q) expected error, got nil", tt.expr)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateNesting(%q) unexpected error: %v", tt.expr, err)
			}
		})
	}
}
