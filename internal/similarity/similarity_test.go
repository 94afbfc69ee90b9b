package similarity

import "testing"

func TestNormalize_CollapsesWhitespaceAndCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Austin rent trends", "austin rent trends"},
		{"austin   rent trends ", "austin rent trends"},
		{"  AUSTIN\tRent\nTrends  ", "austin rent trends"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("What is the average rent in Austin?", "You are a rental assistant.", "gpt-4o")
	b := Fingerprint("what is the  average rent in austin?", "You are a rental assistant.", "gpt-4o")
	if a != b {
		t.Error("fingerprints of normalization-equivalent prompts should match")
	}
}

func TestFingerprint_ModelChangesKey(t *testing.T) {
	a := Fingerprint("hello", "", "gpt-4o")
	b := Fingerprint("hello", "", "gpt-4o-mini")
	if a == b {
		t.Error("different models must produce different fingerprints")
	}
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	// Prompt/system split must be part of the hash, not just concatenation.
	a := Fingerprint("ab", "c", "m")
	b := Fingerprint("a", "bc", "m")
	if a == b {
		t.Error("prompt/system boundary should affect the fingerprint")
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "rent in austin", "rent in austin", 1.0},
		{"case and spacing", "Rent In Austin", "rent  in  austin", 1.0},
		{"disjoint", "rent austin", "lease chicago", 0.0},
		{"both empty", "", "", 1.0},
		{"one empty", "rent", "", 0.0},
		{"half overlap", "a b", "b c", 1.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Jaccard(tt.a, tt.b); got != tt.want {
				t.Errorf("Jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestJaccard_Symmetric(t *testing.T) {
	a := "what is the average rent in austin"
	b := "average rent austin right now"
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Error("Jaccard should be symmetric")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty prompt = %d tokens, want 0", got)
	}
	if got := EstimateTokens("ab"); got != 1 {
		t.Errorf("short prompt = %d tokens, want 1", got)
	}
	if got := EstimateTokens("12345678"); got != 2 {
		t.Errorf("8 chars = %d tokens, want 2", got)
	}
}
