package core

// Finding codes, quoted to support staff alongside the message.
const (
	CodeMissingIDColumn = "STR001"
	CodeDuplicateID     = "INT001"
	CodeUncoveredSkill  = "INT002"
	CodeInvalidNumber   = "INT003"
	CodeInvalidDate     = "INT004"
	CodeEmptyRequired   = "QLT001"
	CodeTextTooLong     = "QLT002"
)

type findingCode struct {
	severity Severity
	category Category
}

var findingCodes = map[string]findingCode{
	CodeMissingIDColumn: {SeverityError, CategoryStructural},
	CodeDuplicateID:     {SeverityError, CategoryIntegrity},
	CodeUncoveredSkill:  {SeverityError, CategoryIntegrity},
	CodeInvalidNumber:   {SeverityError, CategoryIntegrity},
	CodeInvalidDate:     {SeverityError, CategoryIntegrity},
	CodeEmptyRequired:   {SeverityWarning, CategoryQuality},
	CodeTextTooLong:     {SeverityWarning, CategoryQuality},
}
