package peergroup

import "testing"

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry("batch-salt", []string{"sch-a", "sch-b", "sch-c"})

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	anon, ok := r.Anonymize("sch-a")
	if !ok || anon == "" {
		t.Fatalf("Anonymize(sch-a) = (%q, %v)", anon, ok)
	}
	if anon == "sch-a" {
		t.Error("anonymized id must not equal the real id")
	}

	real, ok := r.Resolve(anon)
	if !ok || real != "sch-a" {
		t.Errorf("Resolve() = (%q, %v), want (sch-a, true)", real, ok)
	}
}

func TestRegistryDeterministic(t *testing.T) {
	a := NewRegistry("salt", []string{"sch-a"})
	b := NewRegistry("salt", []string{"sch-a"})

	anonA, _ := a.Anonymize("sch-a")
	anonB, _ := b.Anonymize("sch-a")
	if anonA != anonB {
		t.Errorf("same salt must yield same anonymized id: %q vs %q", anonA, anonB)
	}
}

func TestRegistrySaltChangesIDs(t *testing.T) {
	a := NewRegistry("salt-1", []string{"sch-a"})
	b := NewRegistry("salt-2", []string{"sch-a"})

	anonA, _ := a.Anonymize("sch-a")
	anonB, _ := b.Anonymize("sch-a")
	if anonA == anonB {
		t.Error("different salts must yield different anonymized ids")
	}
}

func TestRegistryUnknownLookups(t *testing.T) {
	r := NewRegistry("salt", []string{"sch-a"})

	if _, ok := r.Anonymize("ghost"); ok {
		t.Error("Anonymize(unknown) should report not found")
	}
	if _, ok := r.Resolve("not-an-anon-id"); ok {
		t.Error("Resolve(unknown) should report not found")
	}
}
