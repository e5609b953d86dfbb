package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/dyfi-induced-db/internal/adapter/geojson"
	"github.com/couchcryptid/dyfi-induced-db/internal/config"
	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func newValidateCmd(a *app) *cobra.Command {
	var collatePath, profilePath string
	cmd := &cobra.Command{
		Use:   "validate <events.geojson>",
		Short: "Check the integrity of a built event file",
		Long: `Check that every event carries the fields collation needs, that event ids
are unique, and that every collated event really matches the candidate record
it was annotated with. Tolerances and the malformed-line policy come from the
same COLLATE_* environment as the build; --profile overrides the tolerances.
With --collate, annotations are also checked against the line numbers of the
collate file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tol := a.cfg.Tolerances
			if profilePath != "" {
				profile, err := config.LoadProfile(profilePath)
				if err != nil {
					return err
				}
				tol = profile.Apply(tol)
			}
			if err := tol.Validate(); err != nil {
				return fmt.Errorf("invalid collation tolerances: %w", err)
			}

			events, err := geojson.ReadFile(args[0])
			if err != nil {
				return err
			}

			var candidates []domain.CandidateRecord
			if collatePath != "" {
				f, err := os.Open(collatePath)
				if err != nil {
					return err
				}
				defer f.Close()
				res, err := domain.ReadCandidates(f, a.cfg.MalformedPolicy, a.logger)
				if err != nil {
					return err
				}
				candidates = res.Candidates
			}

			return runValidation(cmd.OutOrStdout(), events, candidates, tol)
		},
	}
	cmd.Flags().StringVar(&collatePath, "collate", "", "Collate file the events were built from")
	cmd.Flags().StringVar(&profilePath, "profile", "", "YAML collation profile the events were built with")
	return cmd
}

func runValidation(w io.Writer, events []*domain.CatalogEvent, candidates []domain.CandidateRecord, tol domain.Tolerances) error {
	phases := []*phase{
		validateSchema(events),
		validateUniqueIDs(events),
		validateAnnotations(events, tol),
	}
	if candidates != nil {
		phases = append(phases, validateLineNumbers(events, candidates))
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}

	collated := 0
	for _, ev := range events {
		if ev.IsCollated() {
			collated++
		}
	}
	fmt.Fprintf(w, "\nEvents: %d, collated: %d, candidates: %d\n", len(events), collated, len(candidates))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if !allPassed {
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintln(w, "\nAll validations passed.")
	return nil
}

func validateSchema(events []*domain.CatalogEvent) *phase {
	p := &phase{name: "Event schema"}
	for i, ev := range events {
		if ev == nil {
			p.errorf("feature %d: null", i)
			continue
		}
		if ev.ID == "" {
			p.errorf("feature %d: missing id", i)
		}
		if err := ev.Validate(); err != nil {
			p.errorf("feature %d: %v", i, err)
		}
	}
	return p
}

func validateUniqueIDs(events []*domain.CatalogEvent) *phase {
	p := &phase{name: "Unique event ids"}
	seen := make(map[string]int, len(events))
	for i, ev := range events {
		if ev == nil || ev.ID == "" {
			continue
		}
		if first, ok := seen[ev.ID]; ok {
			p.errorf("event %s at features %d and %d", ev.ID, first, i)
			continue
		}
		seen[ev.ID] = i
	}
	return p
}

func validateAnnotations(events []*domain.CatalogEvent, tol domain.Tolerances) *phase {
	p := &phase{name: "Collation annotations"}
	m := domain.NewMatcher(tol)
	for _, ev := range events {
		if ev == nil {
			continue
		}
		seq, line := ev.Properties.LineCollated, ev.Properties.Collated
		switch {
		case seq == nil && line == nil:
			continue
		case seq == nil || line == nil:
			p.errorf("event %s: line_collated and collated must be set together", ev.ID)
			continue
		case *seq < 1:
			p.errorf("event %s: line_collated %d is not a 1-based index", ev.ID, *seq)
		}

		rec, err := domain.ParseCandidate(*line)
		if err != nil {
			p.errorf("event %s: %v", ev.ID, err)
			continue
		}
		if v := m.Evaluate(ev, rec); !v.Matched {
			p.errorf("event %s: does not match its collated record (time diff %ds)", ev.ID, v.TimeDiff)
		}
	}
	return p
}

func validateLineNumbers(events []*domain.CatalogEvent, candidates []domain.CandidateRecord) *phase {
	p := &phase{name: "Collate file line numbers"}
	for _, ev := range events {
		// Half-set annotations are reported by the annotation phase.
		if ev == nil || ev.Properties.LineCollated == nil || ev.Properties.Collated == nil {
			continue
		}
		seq := *ev.Properties.LineCollated
		if seq < 1 || seq > len(candidates) {
			p.errorf("event %s: line_collated %d outside collate file (%d records)", ev.ID, seq, len(candidates))
			continue
		}
		if candidates[seq-1].Line != *ev.Properties.Collated {
			p.errorf("event %s: record %d of the collate file differs from the annotation", ev.ID, seq)
		}
	}
	return p
}
