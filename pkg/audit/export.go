package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Mindburn-Labs/agora/pkg/canonicalize"
	"github.com/Mindburn-Labs/agora/pkg/contracts"
	"github.com/Mindburn-Labs/agora/pkg/ledger"
)

// ErrLedgerNotConfigured is returned when export is invoked without a ledger.
var ErrLedgerNotConfigured = errors.New("audit: ledger not configured")

// Pack is an exported, self-verifying copy of the action log.
type Pack struct {
	GeneratedAt  time.Time            `json:"generated_at"`
	EntryCount   int                  `json:"entry_count"`
	ChainHead    string               `json:"chain_head,omitempty"`
	Verification ledger.Report        `json:"verification"`
	Checksum     string               `json:"checksum"` // over the canonical entries
	Entries      []contracts.LogEntry `json:"entries"`
}

// Export reads the full action log, verifies it and computes a checksum.
func Export(ctx context.Context, l *ledger.Ledger, now time.Time) (*Pack, error) {
	if l == nil {
		return nil, ErrLedgerNotConfigured
	}
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}
	checksum, err := canonicalize.CanonicalHash(entries)
	if err != nil {
		return nil, fmt.Errorf("audit: checksum: %w", err)
	}

	pack := &Pack{
		GeneratedAt:  now.UTC(),
		EntryCount:   len(entries),
		Verification: ledger.VerifyChain(entries),
		Checksum:     checksum,
		Entries:      entries,
	}
	if len(entries) > 0 {
		pack.ChainHead = entries[len(entries)-1].Hash
	}
	return pack, nil
}

// VerifyPack re-checks a pack's checksum and chain.
func VerifyPack(p *Pack) error {
	checksum, err := canonicalize.CanonicalHash(p.Entries)
	if err != nil {
		return fmt.Errorf("audit: checksum: %w", err)
	}
	if checksum != p.Checksum {
		return errors.New("audit: pack checksum mismatch")
	}
	if report := ledger.VerifyChain(p.Entries); !report.Valid {
		return fmt.Errorf("audit: chain invalid at %v", report.InvalidIndices)
	}
	return nil
}

// WriteZip writes the pack as a zip archive with entries.json, manifest.json
// and a README, returning the sha256 of the archive bytes.
func WriteZip(p *Pack, w io.Writer) (string, error) {
	entriesJSON, err := json.MarshalIndent(p.Entries, "", "  ")
	if err != nil {
		return "", err
	}
	manifest := map[string]any{
		"generated_at": p.GeneratedAt,
		"entry_count":  p.EntryCount,
		"chain_head":   p.ChainHead,
		"checksum":     p.Checksum,
		"verification": p.Verification,
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("audit: failed to marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	files := []struct {
		name string
		data []byte
	}{
		{"entries.json", entriesJSON},
		{"manifest.json", manifestJSON},
		{"README.txt", []byte(fmt.Sprintf("Action log export\nGenerated at %s\nEntries: %d\n",
			p.GeneratedAt.Format(time.RFC3339), p.EntryCount))},
	}
	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return "", err
		}
		if _, err := fw.Write(f.data); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	zipBytes := buf.Bytes()
	if _, err := w.Write(zipBytes); err != nil {
		return "", err
	}
	return canonicalize.HashBytes(zipBytes), nil
}
