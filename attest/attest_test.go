package attest

import (
	"testing"
	"time"
)

func TestGenerateAndVerify(t *testing.T) {
	a, err := Generate("task-1", "agent-1", "the result text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if a.Hash == "" || a.ResultDigest == "" || a.Nonce == "" {
		t.Fatalf("incomplete attestation: %+v", a)
	}
	if len(a.Nonce) != nonceBytes*2 {
		t.Errorf("Nonce hex length = %d, want %d", len(a.Nonce), nonceBytes*2)
	}
	if a.Workload < 0 || a.Workload >= 1000 {
		t.Errorf("Workload = %v, want [0, 1000)", a.Workload)
	}
	if !Verify(a) {
		t.Error("Verify = false for freshly generated attestation")
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	a, err := Generate("task-1", "agent-1", "the result text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	mutations := []struct {
		name   string
		mutate func(c Attestation) Attestation
	}{
		{"task id", func(c Attestation) Attestation { c.TaskID = "task-2"; return c }},
		{"executor id", func(c Attestation) Attestation { c.ExecutorID = "agent-2"; return c }},
		{"result digest", func(c Attestation) Attestation {
			c.ResultDigest = "00" + c.ResultDigest[2:]
			return c
		}},
		{"timestamp", func(c Attestation) Attestation {
			c.Timestamp = c.Timestamp.Add(time.Nanosecond)
			return c
		}},
		{"nonce", func(c Attestation) Attestation {
			if c.Nonce[0] == 'a' {
				c.Nonce = "b" + c.Nonce[1:]
			} else {
				c.Nonce = "a" + c.Nonce[1:]
			}
			return c
		}},
		{"hash", func(c Attestation) Attestation {
			if c.Hash[0] == 'a' {
				c.Hash = "b" + c.Hash[1:]
			} else {
				c.Hash = "a" + c.Hash[1:]
			}
			return c
		}},
	}
	for _, m := range mutations {
		mutated := m.mutate(*a)
		if Verify(&mutated) {
			t.Errorf("Verify = true after mutating %s", m.name)
		}
	}
}

func TestVerify_Nil(t *testing.T) {
	if Verify(nil) {
		t.Error("Verify(nil) = true")
	}
}

func TestGenerate_ResultTextChangesHash(t *testing.T) {
	a, err := Generate("task-1", "agent-1", "result A")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate("task-1", "agent-1", "result B")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a.ResultDigest == b.ResultDigest {
		t.Error("different result texts produced identical digests")
	}
	if a.Hash == b.Hash {
		t.Error("different result texts produced identical attestation hashes")
	}
}

func TestGenerate_FreshNonce(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		a, err := Generate("task-1", "agent-1", "same text")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if seen[a.Nonce] {
			t.Fatalf("nonce %q reused", a.Nonce)
		}
		seen[a.Nonce] = true
	}
}

func TestWorkloadFromHash(t *testing.T) {
	// ffffffff... maps just under 1000, 00000000... maps to 0.
	if got := workloadFromHash("ffffffff0000"); got >= 1000 || got < 999.9 {
		t.Errorf("workloadFromHash(ffffffff...) = %v, want just under 1000", got)
	}
	if got := workloadFromHash("000000000000"); got != 0 {
		t.Errorf("workloadFromHash(00000000...) = %v, want 0", got)
	}
}

func TestWorkload_DeterministicFromHash(t *testing.T) {
	a, err := Generate("task-1", "agent-1", "text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := workloadFromHash(a.Hash); got != a.Workload {
		t.Errorf("workload mismatch: %v vs %v", got, a.Workload)
	}
}
