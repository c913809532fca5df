package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/crosscheck/internal/services/review/domain"
)

// SchemaVersion is the current session document schema.
const SchemaVersion = 1

// sessionDocument is the persisted shape of a session. The files mapping is
// an explicit key/value object so arbitrary path keys round-trip; file_order
// preserves insertion order separately.
type sessionDocument struct {
	SchemaVersion         int                     `json:"schema_version"`
	ID                    string                  `json:"id"`
	Target                string                  `json:"target"`
	Requirements          string                  `json:"requirements"`
	WorkingDir            string                  `json:"working_dir"`
	Status                string                  `json:"status"`
	CurrentRound          int                     `json:"current_round"`
	RoundBudget           int                     `json:"round_budget"`
	Files                 map[string]fileDocument `json:"files"`
	FileOrder             []string                `json:"file_order"`
	Issues                []issueDocument         `json:"issues"`
	Rounds                []roundDocument         `json:"rounds"`
	Checkpoints           []checkpointDocument    `json:"checkpoints"`
	MediatorInterventions int                     `json:"mediator_interventions"`
	CreatedAtUnixMs       int64                   `json:"created_at_unix_ms"`
	UpdatedAtUnixMs       int64                   `json:"updated_at_unix_ms"`
}

type fileDocument struct {
	Content         string   `json:"content"`
	References      []string `json:"references,omitempty"`
	Layer           string   `json:"layer"`
	DiscoveredRound int      `json:"discovered_round,omitempty"`
	VerifiedRound   int      `json:"verified_round,omitempty"`
}

type issueDocument struct {
	ID              string `json:"id"`
	Category        string `json:"category"`
	Severity        string `json:"severity"`
	Summary         string `json:"summary,omitempty"`
	Description     string `json:"description,omitempty"`
	Evidence        string `json:"evidence,omitempty"`
	Location        string `json:"location,omitempty"`
	RaisedBy        string `json:"raised_by"`
	RaisedRound     int    `json:"raised_round"`
	Status          string `json:"status"`
	ResolvedRound   int    `json:"resolved_round,omitempty"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

type roundDocument struct {
	Number          int      `json:"number"`
	Role            string   `json:"role"`
	Output          string   `json:"output"`
	IssuesRaised    []string `json:"issues_raised,omitempty"`
	IssuesResolved  []string `json:"issues_resolved,omitempty"`
	ContextExpanded bool     `json:"context_expanded,omitempty"`
	NewFiles        []string `json:"new_files,omitempty"`
	TimestampUnixMs int64    `json:"timestamp_unix_ms"`
}

type checkpointDocument struct {
	Round           int             `json:"round"`
	TimestampUnixMs int64           `json:"timestamp_unix_ms"`
	ContextPaths    []string        `json:"context_paths,omitempty"`
	Issues          []issueDocument `json:"issues,omitempty"`
	CanRollback     bool            `json:"can_rollback"`
}

// EncodeSession serializes a session into its versioned document form.
func EncodeSession(session *domain.Session) ([]byte, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}

	doc := sessionDocument{
		SchemaVersion:         SchemaVersion,
		ID:                    session.ID,
		Target:                session.Target,
		Requirements:          session.Requirements,
		WorkingDir:            session.WorkingDir,
		Status:                string(session.Status),
		CurrentRound:          session.CurrentRound,
		RoundBudget:           session.RoundBudget,
		Files:                 map[string]fileDocument{},
		FileOrder:             session.Context.Paths(),
		MediatorInterventions: session.MediatorInterventions,
		CreatedAtUnixMs:       session.CreatedAt.UTC().UnixMilli(),
		UpdatedAtUnixMs:       session.UpdatedAt.UTC().UnixMilli(),
	}

	for _, path := range session.Context.Paths() {
		fc := session.Context.Get(path)
		doc.Files[path] = fileDocument{
			Content:         fc.Content,
			References:      fc.References,
			Layer:           string(fc.Layer),
			DiscoveredRound: fc.DiscoveredRound,
			VerifiedRound:   fc.VerifiedRound,
		}
	}

	doc.Issues = encodeIssues(session.Issues)

	for _, round := range session.Rounds {
		doc.Rounds = append(doc.Rounds, roundDocument{
			Number:          round.Number,
			Role:            string(round.Role),
			Output:          round.Output,
			IssuesRaised:    round.IssuesRaised,
			IssuesResolved:  round.IssuesResolved,
			ContextExpanded: round.ContextExpanded,
			NewFiles:        round.NewFiles,
			TimestampUnixMs: round.Timestamp.UTC().UnixMilli(),
		})
	}

	for _, cp := range session.Checkpoints {
		doc.Checkpoints = append(doc.Checkpoints, checkpointDocument{
			Round:           cp.Round,
			TimestampUnixMs: cp.Timestamp.UTC().UnixMilli(),
			ContextPaths:    cp.ContextPaths,
			Issues:          encodeIssues(cp.Issues),
			CanRollback:     cp.CanRollback,
		})
	}

	return json.Marshal(doc)
}

func encodeIssues(issues []domain.Issue) []issueDocument {
	out := make([]issueDocument, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issueDocument{
			ID:              issue.ID,
			Category:        string(issue.Category),
			Severity:        string(issue.Severity),
			Summary:         issue.Summary,
			Description:     issue.Description,
			Evidence:        issue.Evidence,
			Location:        issue.Location,
			RaisedBy:        string(issue.RaisedBy),
			RaisedRound:     issue.RaisedRound,
			Status:          string(issue.Status),
			ResolvedRound:   issue.ResolvedRound,
			ResolutionNotes: issue.ResolutionNotes,
		})
	}
	return out
}

// DecodeSession parses and validates a stored document. Every load path goes
// through this schema-on-read gate and fails closed: any structural problem
// returns ErrMalformed rather than a partially-typed session.
func DecodeSession(id string, payload []byte) (*domain.Session, error) {
	var doc sessionDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validateDocument(id, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	session := &domain.Session{
		ID:                    doc.ID,
		Target:                doc.Target,
		Requirements:          doc.Requirements,
		WorkingDir:            doc.WorkingDir,
		Status:                domain.Status(doc.Status),
		CurrentRound:          doc.CurrentRound,
		RoundBudget:           doc.RoundBudget,
		Context:               domain.NewVerificationContext(),
		MediatorInterventions: doc.MediatorInterventions,
		CreatedAt:             time.UnixMilli(doc.CreatedAtUnixMs).UTC(),
		UpdatedAt:             time.UnixMilli(doc.UpdatedAtUnixMs).UTC(),
	}

	for _, path := range doc.FileOrder {
		fd := doc.Files[path]
		session.Context.Add(&domain.FileContext{
			Path:            path,
			Content:         fd.Content,
			References:      fd.References,
			Layer:           domain.Layer(fd.Layer),
			DiscoveredRound: fd.DiscoveredRound,
			VerifiedRound:   fd.VerifiedRound,
		})
	}

	session.Issues = decodeIssues(doc.Issues)

	for _, rd := range doc.Rounds {
		session.Rounds = append(session.Rounds, domain.Round{
			Number:          rd.Number,
			Role:            domain.Role(rd.Role),
			Output:          rd.Output,
			IssuesRaised:    rd.IssuesRaised,
			IssuesResolved:  rd.IssuesResolved,
			ContextExpanded: rd.ContextExpanded,
			NewFiles:        rd.NewFiles,
			Timestamp:       time.UnixMilli(rd.TimestampUnixMs).UTC(),
		})
	}

	for _, cd := range doc.Checkpoints {
		session.Checkpoints = append(session.Checkpoints, domain.Checkpoint{
			Round:        cd.Round,
			Timestamp:    time.UnixMilli(cd.TimestampUnixMs).UTC(),
			ContextPaths: cd.ContextPaths,
			Issues:       decodeIssues(cd.Issues),
			CanRollback:  cd.CanRollback,
		})
	}

	return session, nil
}

func decodeIssues(docs []issueDocument) []domain.Issue {
	var out []domain.Issue
	for _, d := range docs {
		out = append(out, domain.Issue{
			ID:              d.ID,
			Category:        domain.Category(d.Category),
			Severity:        domain.Severity(d.Severity),
			Summary:         d.Summary,
			Description:     d.Description,
			Evidence:        d.Evidence,
			Location:        d.Location,
			RaisedBy:        domain.Role(d.RaisedBy),
			RaisedRound:     d.RaisedRound,
			Status:          domain.IssueStatus(d.Status),
			ResolvedRound:   d.ResolvedRound,
			ResolutionNotes: d.ResolutionNotes,
		})
	}
	return out
}

// validateDocument enforces the structural invariants a trusted session must
// hold before any code operates on it.
func validateDocument(id string, doc *sessionDocument) error {
	if doc.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema version %d is not supported", doc.SchemaVersion)
	}
	if !domain.ValidSessionID(doc.ID) {
		return fmt.Errorf("document id %q fails identifier validation", doc.ID)
	}
	if id != "" && doc.ID != id {
		return fmt.Errorf("document id %q does not match record id %q", doc.ID, id)
	}
	if !domain.Status(doc.Status).Valid() {
		return fmt.Errorf("unknown status %q", doc.Status)
	}
	if doc.RoundBudget < 1 {
		return fmt.Errorf("round budget %d is below 1", doc.RoundBudget)
	}
	if doc.CurrentRound != len(doc.Rounds) {
		return fmt.Errorf("current round %d does not match round log length %d", doc.CurrentRound, len(doc.Rounds))
	}
	for i, round := range doc.Rounds {
		if round.Number != i+1 {
			return fmt.Errorf("round %d has number %d", i, round.Number)
		}
		if !domain.Role(round.Role).Valid() {
			return fmt.Errorf("round %d has unknown role %q", round.Number, round.Role)
		}
	}
	if len(doc.FileOrder) != len(doc.Files) {
		return fmt.Errorf("file order lists %d paths but files map holds %d", len(doc.FileOrder), len(doc.Files))
	}
	for _, path := range doc.FileOrder {
		fd, ok := doc.Files[path]
		if !ok {
			return fmt.Errorf("file order references %q which is absent from files", path)
		}
		layer := domain.Layer(fd.Layer)
		if layer != domain.LayerBase && layer != domain.LayerDiscovered {
			return fmt.Errorf("file %q has unknown layer %q", path, fd.Layer)
		}
	}
	seenIssues := map[string]struct{}{}
	for _, issue := range doc.Issues {
		if issue.ID == "" {
			return fmt.Errorf("issue with empty id")
		}
		if _, dup := seenIssues[issue.ID]; dup {
			return fmt.Errorf("duplicate issue id %q", issue.ID)
		}
		seenIssues[issue.ID] = struct{}{}
		if !domain.IssueStatus(issue.Status).Valid() {
			return fmt.Errorf("issue %q has unknown status %q", issue.ID, issue.Status)
		}
		if !domain.Severity(issue.Severity).Valid() {
			return fmt.Errorf("issue %q has unknown severity %q", issue.ID, issue.Severity)
		}
	}
	for _, cp := range doc.Checkpoints {
		if cp.Round < 0 || cp.Round > len(doc.Rounds) {
			return fmt.Errorf("checkpoint at round %d is outside the round log", cp.Round)
		}
	}
	return nil
}
