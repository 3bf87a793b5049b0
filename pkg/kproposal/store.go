package kproposal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kaiza-dev/kaiza/pkg/kerr"
	"github.com/kaiza-dev/kaiza/pkg/kpath"
)

// Store persists proposals to the index file and their human-readable
// Markdown rendering, and projects approvals onto them. It never touches
// code, plans, or configuration.
type Store struct {
	resolver *kpath.Resolver
}

// NewStore returns a Store rooted at resolver's locked workspace.
func NewStore(resolver *kpath.Resolver) *Store {
	return &Store{resolver: resolver}
}

// Create validates p, assigns it a fresh ID and PENDING status, and
// writes both the index line and the Markdown document. It is the only
// way new proposal content comes into existence; Approve only appends to
// a separate approvals log.
func (s *Store) Create(p Proposal, isStale StalenessChecker) (*Proposal, error) {
	p.ProposalID = NewProposalID()
	p.Status = StatusPending
	p.CreatedAt = time.Now().UTC()

	if err := ValidateAgainstPlan(&p, isStale); err != nil {
		return nil, err
	}

	indexPath, err := s.resolver.ProposalsIndexPath()
	if err != nil {
		return nil, err
	}
	if err := appendJSONLine(indexPath, p); err != nil {
		return nil, err
	}

	proposalsDir, err := s.resolver.ProposalsDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(proposalsDir, 0o755); err != nil {
		return nil, kerr.New(kerr.CodeFileWriteFailed, "cannot create proposals directory", kerr.WithCause(err))
	}
	mdPath := filepath.Join(proposalsDir, fmt.Sprintf("PROPOSAL_%s.md", p.ProposalID))
	if err := os.WriteFile(mdPath, []byte(Render(&p)), 0o644); err != nil {
		return nil, kerr.New(kerr.CodeFileWriteFailed, "cannot write proposal document", kerr.WithCause(err))
	}

	return &p, nil
}

// List returns every proposal with approvals folded in, in index file
// order, which is creation order, oldest first (callers sort if needed).
func (s *Store) List() ([]Proposal, error) {
	indexPath, err := s.resolver.ProposalsIndexPath()
	if err != nil {
		return nil, err
	}
	proposals, err := readProposalIndex(indexPath)
	if err != nil {
		return nil, err
	}

	approvalsPath, err := s.resolver.ProposalApprovalsPath()
	if err != nil {
		return nil, err
	}
	approvals, err := readApprovals(approvalsPath)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*approvalRecord, len(approvals))
	for i := range approvals {
		byID[approvals[i].ProposalID] = &approvals[i]
	}

	for i := range proposals {
		if rec, ok := byID[proposals[i].ProposalID]; ok {
			proposals[i].Status = rec.Status
			proposals[i].ApprovedAt = &rec.DecidedAt
			proposals[i].ApprovedBy = rec.DecidedBy
		}
	}
	return proposals, nil
}

// Get returns the single proposal with id, approvals folded in.
func (s *Store) Get(id string) (*Proposal, error) {
	proposals, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range proposals {
		if proposals[i].ProposalID == id {
			return &proposals[i], nil
		}
	}
	return nil, kerr.New(kerr.CodeFileNotFound, "no proposal with this id")
}

// approvalRecord is one append-only decision in proposal-approvals.jsonl.
type approvalRecord struct {
	ProposalID string    `json:"proposal_id"`
	Status     Status    `json:"status"`
	DecidedBy  string    `json:"decided_by"`
	DecidedAt  time.Time `json:"decided_at"`
}

// Approve transitions a PENDING proposal to APPROVED or REJECTED. Once a
// proposal has already been decided, this refuses: status is immutable
// once set.
func (s *Store) Approve(id string, approve bool, approverID string) (*Proposal, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return nil, kerr.New(kerr.CodeInvalidInputValue, "proposal is already "+string(p.Status)+"; decisions are immutable")
	}

	status := StatusRejected
	if approve {
		status = StatusApproved
	}
	rec := approvalRecord{ProposalID: id, Status: status, DecidedBy: approverID, DecidedAt: time.Now().UTC()}

	approvalsPath, err := s.resolver.ProposalApprovalsPath()
	if err != nil {
		return nil, err
	}
	if err := appendJSONLine(approvalsPath, rec); err != nil {
		return nil, err
	}

	p.Status = status
	p.ApprovedBy = approverID
	p.ApprovedAt = &rec.DecidedAt
	return p, nil
}

func appendJSONLine(path string, v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return kerr.New(kerr.CodeInternalError, "cannot marshal proposal record", kerr.WithCause(err))
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return kerr.New(kerr.CodeFileWriteFailed, "cannot open proposal log", kerr.WithCause(err))
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return kerr.New(kerr.CodeFileWriteFailed, "cannot append proposal record", kerr.WithCause(err))
	}
	return f.Sync()
}

func readProposalIndex(path string) ([]Proposal, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	proposals := make([]Proposal, 0, len(lines))
	for _, line := range lines {
		var p Proposal
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, kerr.New(kerr.CodeInternalError, "corrupt proposal index line", kerr.WithCause(err))
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

func readApprovals(path string) ([]approvalRecord, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	records := make([]approvalRecord, 0, len(lines))
	for _, line := range lines {
		var rec approvalRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, kerr.New(kerr.CodeInternalError, "corrupt proposal approval line", kerr.WithCause(err))
		}
		records = append(records, rec)
	}
	return records, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, kerr.New(kerr.CodeFileReadFailed, "cannot open proposal log", kerr.WithCause(err))
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, kerr.New(kerr.CodeFileReadFailed, "cannot scan proposal log", kerr.WithCause(err))
	}
	return lines, nil
}
