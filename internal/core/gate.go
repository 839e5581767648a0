package core

// HasErrors reports whether any finding blocks progression.
// Warnings never block.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Summarize counts findings by severity.
func Summarize(findings []Finding) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		}
	}
	s.Blocking = s.Errors > 0
	return s
}

// FindingsFor returns the findings raised against the table at index idx.
func FindingsFor(findings []Finding, idx int) []Finding {
	out := []Finding{}
	for _, f := range findings {
		if f.TableIndex == idx {
			out = append(out, f)
		}
	}
	return out
}

// FindingsAt returns the findings for one row of one table. Table-level
// findings are included for every row of their table.
func FindingsAt(findings []Finding, idx, row int) []Finding {
	out := []Finding{}
	for _, f := range findings {
		if f.TableIndex == idx && (f.TableLevel || f.Row == row) {
			out = append(out, f)
		}
	}
	return out
}
