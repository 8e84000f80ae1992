// Package ledgerfile reads and writes YAML ledger documents: reference data,
// rules and optionally transactions, used to seed a ledger and to move rule
// sets between ledgers.
package ledgerfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/ledger"
	"github.com/Veraticus/tithe/internal/model"
)

// Version is the document format written by Write.
const Version = 1

// Document is the YAML shape of a ledger file. Every section is optional.
type Document struct {
	Settings        *model.Settings            `yaml:"settings,omitempty"`
	Accounts        []model.Account            `yaml:"accounts,omitempty"`
	Collections     []model.Collection         `yaml:"collections,omitempty"`
	Categories      []model.Category           `yaml:"categories,omitempty"`
	SubCategories   []model.SubCategory        `yaml:"sub_categories,omitempty"`
	Payees          []model.Payee              `yaml:"payees,omitempty"`
	Tags            []model.Tag                `yaml:"tags,omitempty"`
	Rules           []model.ClassificationRule `yaml:"rules,omitempty"`
	AllocationRules []model.AllocationRule     `yaml:"allocation_rules,omitempty"`
	Transactions    []model.Transaction        `yaml:"transactions,omitempty"`
	Version         int                        `yaml:"version"`
}

// Section selects which parts of a snapshot Export copies.
type Section int

// Export sections.
const (
	SectionReference Section = 1 << iota
	SectionRules
	SectionAllocationRules
	SectionTransactions

	SectionAll = SectionReference | SectionRules | SectionAllocationRules | SectionTransactions
)

// Export builds a document from snap holding the requested sections.
// Archived rules are left out.
func Export(snap *ledger.Snapshot, sections Section) *Document {
	doc := &Document{Version: Version}
	if sections&SectionReference != 0 {
		settings := snap.Settings
		doc.Settings = &settings
		doc.Accounts = snap.Accounts
		doc.Collections = snap.Collections
		doc.Categories = snap.Categories
		doc.SubCategories = snap.SubCategories
		doc.Payees = snap.Payees
		doc.Tags = snap.Tags
	}
	if sections&SectionRules != 0 {
		for _, r := range snap.Rules {
			if !r.Archived {
				doc.Rules = append(doc.Rules, r)
			}
		}
	}
	if sections&SectionAllocationRules != 0 {
		for _, r := range snap.AllocationRules {
			if !r.Archived {
				doc.AllocationRules = append(doc.AllocationRules, r)
			}
		}
	}
	if sections&SectionTransactions != 0 {
		doc.Transactions = snap.Transactions
	}
	return doc
}

// Read decodes a document, rejecting unknown fields and newer versions.
func Read(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty ledger file: %w", common.ErrInvalidFile)
		}
		return nil, fmt.Errorf("failed to parse ledger file: %w: %w", common.ErrInvalidFile, err)
	}
	if doc.Version > Version {
		return nil, fmt.Errorf("ledger file version %d is newer than %d: %w", doc.Version, Version, common.ErrInvalidFile)
	}
	return &doc, nil
}

// ReadFile reads the document at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is supplied by the user on purpose
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	return Read(bytes.NewReader(data))
}

// Write encodes doc as YAML.
func Write(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode ledger file: %w", err)
	}
	return enc.Close()
}

// WriteFile writes doc to path, replacing any existing file.
func WriteFile(path string, doc *Document) error {
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return nil
}
