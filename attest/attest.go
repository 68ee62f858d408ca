// Package attest produces and verifies tamper-evident records binding a
// task's result to a derived workload score.
//
// The workload value is a pseudo-random weight derived from the attestation
// hash, not evidence of computational effort: it gives each completed task a
// deterministic, tamper-evident score for incentive shaping, but it is not a
// proof-of-work scheme.
package attest

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const nonceBytes = 16

// Attestation is an immutable record of a successful execution. It is
// created once per completed task and never mutated.
type Attestation struct {
	TaskID       string    `json:"task_id"`
	ExecutorID   string    `json:"executor_id"`
	ResultDigest string    `json:"result_digest"`
	Timestamp    time.Time `json:"timestamp"`
	Nonce        string    `json:"nonce"`
	Hash         string    `json:"hash"`
	Workload     float64   `json:"workload"`
}

// Generate seals the given result into a new attestation. The nonce is
// fresh high-entropy randomness on every call.
func Generate(taskID, executorID, resultText string) (*Attestation, error) {
	digest := sha256.Sum256([]byte(resultText))

	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	a := &Attestation{
		TaskID:       taskID,
		ExecutorID:   executorID,
		ResultDigest: hex.EncodeToString(digest[:]),
		Timestamp:    time.Now().UTC(),
		Nonce:        hex.EncodeToString(nonce),
	}
	a.Hash = computeHash(a)
	a.Workload = workloadFromHash(a.Hash)
	return a, nil
}

// Verify recomputes the attestation hash from the stored fields and compares
// it in constant time. It returns false on any mismatch.
func Verify(a *Attestation) bool {
	if a == nil {
		return false
	}
	expected := computeHash(a)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(a.Hash)) == 1
}

// computeHash hashes the deterministic field-separated concatenation of the
// attestation's identifying fields.
func computeHash(a *Attestation) string {
	input := strings.Join([]string{
		a.TaskID,
		a.ExecutorID,
		a.ResultDigest,
		strconv.FormatInt(a.Timestamp.UnixNano(), 10),
		a.Nonce,
	}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// workloadFromHash derives the workload score in [0, 1000) from the first
// four bytes of the attestation hash.
func workloadFromHash(hashHex string) float64 {
	raw, err := hex.DecodeString(hashHex[:8])
	if err != nil || len(raw) < 4 {
		return 0
	}
	n := binary.BigEndian.Uint32(raw)
	return float64(n) / (1 << 32) * 1000
}
