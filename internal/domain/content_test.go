package domain_test

import (
	"bytes"
	"testing"

	"github.com/PabloGalante/docchat/internal/domain"
)

func TestRedactPart(t *testing.T) {
	cases := []struct {
		name string
		in   domain.Part
		want string
	}{
		{"text passes through", domain.TextPart("hello"), "hello"},
		{"blob becomes placeholder", domain.BlobPart("application/pdf", []byte("%PDF raw bytes")), domain.RedactedBlob},
		{"unknown becomes placeholder", domain.UnknownPart(), domain.RedactedUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Redact()
			if got.Kind != domain.PartText {
				t.Fatalf("expected text part, got %s", got.Kind)
			}
			if got.Text != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got.Text)
			}
			if got.Data != nil {
				t.Fatal("redacted part still carries data")
			}
		})
	}
}

func TestRedactHistoryPreservesShape(t *testing.T) {
	raw := []byte("%PDF-1.4 secret")
	history := []domain.Content{
		{Role: domain.RoleUser, Parts: []domain.Part{
			domain.TextPart("look at this"),
			domain.BlobPart("application/pdf", raw),
		}},
		{Role: domain.RoleModel, Parts: []domain.Part{
			domain.TextPart("looks like a PDF"),
		}},
	}

	redacted := domain.RedactHistory(history)

	if len(redacted) != len(history) {
		t.Fatalf("expected %d entries, got %d", len(history), len(redacted))
	}
	if redacted[0].Role != domain.RoleUser || redacted[1].Role != domain.RoleModel {
		t.Fatal("roles changed during redaction")
	}
	if redacted[0].Parts[1].Text != domain.RedactedBlob {
		t.Fatalf("expected placeholder, got %q", redacted[0].Parts[1].Text)
	}
	for _, c := range redacted {
		for _, p := range c.Parts {
			if bytes.Contains([]byte(p.Text), raw) {
				t.Fatal("raw bytes leaked through redaction")
			}
		}
	}

	// Source history is untouched.
	if history[0].Parts[1].Kind != domain.PartBlob {
		t.Fatal("redaction mutated the source history")
	}
}

func TestSessionSnapshotCopiesHistory(t *testing.T) {
	sess := &domain.Session{
		ID:      "s1",
		History: []domain.Content{{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart("hi")}}},
	}

	snap := sess.Snapshot()
	snap.History[0] = domain.Content{Role: domain.RoleModel}

	if sess.History[0].Role != domain.RoleUser {
		t.Fatal("snapshot shares history with the source session")
	}
}
