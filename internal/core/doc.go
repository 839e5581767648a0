// Package core turns uploaded spreadsheets into typed tables and validates
// them against each other.
//
// The package holds no process-wide mutable state. Callers own the tables
// and re-run the engine after every edit; findings carry no identity and
// are recomputed from scratch each time.
//
// # Architecture
//
//   - Catalog: the static, per-kind rule set (identity column, required
//     fields, skill columns, filename keywords). See [DefaultCatalog].
//   - Normalizer: file bytes to [Table]. CSV and XLSX are supported; any
//     other extension yields an empty table of the inferred kind.
//   - Engine: ordered tables to ordered findings, see validation.go.
//   - Gate: [HasErrors] and [Summarize] decide whether a user may move on.
//     Errors block, warnings do not.
//
// # Normalizing
//
//	n := core.NewNormalizer(core.DefaultCatalog(), core.WithMaxFileSize(25<<20))
//	res := n.NormalizeBatch(ctx, files)
//	for _, fe := range res.Failures {
//	    log.Printf("%s: %s", fe.Name, core.FormatUserError(fe.Err))
//	}
//
// # Validating
//
//	e := core.NewEngine(core.DefaultCatalog(), core.DefaultCheckOptions())
//	findings := e.Validate(res.Tables)
//	if core.HasErrors(findings) {
//	    // stay on the data step
//	}
//
// # Cell values
//
// Every cell is a [Value]: absent, null, text, number or bool. Coercions
// are explicit. [Value.Float] and [Value.Time] are the readings used by the
// numeric and date checks.
//
// # Error Handling
//
// The engine never returns errors; malformed data becomes a [Finding].
// Only unreadable files fail normalization, one file at a time. Technical
// errors are mapped to user-facing messages with [MapError]:
//
//   - FILE001-FILE004: size, format and upload count problems
//   - UPL001-UPL004: busy, cancelled, timed out, malformed requests
//   - SES001-SES003: editing session lookups
//   - RUL001: rules document validation
package core
