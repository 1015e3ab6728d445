package domain

import (
	"testing"
)

func TestMetadata_Merge(t *testing.T) {
	original := Metadata{
		"statement_line": 42,
		MetaKeyReference: "stale_ref",
	}
	patch := Metadata{
		MetaKeyReference:  "braintree:2024-06-10:acme_gbp",
		MetaKeyConfidence: 0.95,
	}

	merged := original.Merge(patch)

	if merged["statement_line"] != 42 {
		t.Errorf("Expected unrelated key to survive, got %v", merged["statement_line"])
	}
	if merged[MetaKeyReference] != "braintree:2024-06-10:acme_gbp" {
		t.Errorf("Expected patch to win on conflict, got %v", merged[MetaKeyReference])
	}
	if merged[MetaKeyConfidence] != 0.95 {
		t.Errorf("Expected new key from patch, got %v", merged[MetaKeyConfidence])
	}

	// Neither input is mutated
	if original[MetaKeyReference] != "stale_ref" {
		t.Error("Merge must not mutate the receiver")
	}
	if _, ok := patch["statement_line"]; ok {
		t.Error("Merge must not mutate the patch")
	}
}

func TestMetadata_MergeFromNil(t *testing.T) {
	var original Metadata
	merged := original.Merge(Metadata{MetaKeyLevel: 1})

	if merged[MetaKeyLevel] != 1 {
		t.Errorf("Expected merge onto nil map to work, got %v", merged[MetaKeyLevel])
	}
}
